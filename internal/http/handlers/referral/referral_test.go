package referral

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/talepify/entitlement-service/internal/http/middlewarectx"
	"github.com/talepify/entitlement-service/internal/http/response"
	"github.com/talepify/entitlement-service/internal/i18n"
	"github.com/talepify/entitlement-service/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) GenerateUserReferralCode(ctx context.Context, userID string) (*models.ReferralCode, error) {
	args := m.Called(ctx, userID)
	res, _ := args.Get(0).(*models.ReferralCode)
	return res, args.Error(1)
}

func (m *MockService) ValidateReferralCode(code string) bool {
	return m.Called(code).Bool(0)
}

func (m *MockService) ProcessReferral(ctx context.Context, code, referredUserID string) (*models.Referral, error) {
	args := m.Called(ctx, code, referredUserID)
	res, _ := args.Get(0).(*models.Referral)
	return res, args.Error(1)
}

func (m *MockService) ClaimReferralReward(ctx context.Context, code, referredUserID string) (*models.ClaimResult, error) {
	args := m.Called(ctx, code, referredUserID)
	res, _ := args.Get(0).(*models.ClaimResult)
	return res, args.Error(1)
}

func (m *MockService) GetUserReferralStats(ctx context.Context, userID string) (*models.ReferralStats, error) {
	args := m.Called(ctx, userID)
	res, _ := args.Get(0).(*models.ReferralStats)
	return res, args.Error(1)
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newHandler(t *testing.T, svc Service) *Handler {
	t.Helper()
	tr, err := i18n.New("tr-TR")
	require.NoError(t, err)
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, tr)
}

func newRequest(method, target, body, locale string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if locale != "" {
		req.Header.Set("Accept-Language", locale)
	}
	return req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, "friend"))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestProcess(t *testing.T) {
	referral, err := models.NewReferral("referrer", "friend", "ABCD1234", 30, now)
	require.NoError(t, err)

	tests := []struct {
		name       string
		body       string
		locale     string
		setupMock  func(*MockService)
		wantStatus int
		wantMsg    string
		wantErr    string
	}{
		{
			name: "код применён, код приводится к верхнему регистру",
			body: `{"code":" abcd1234 "}`,
			setupMock: func(m *MockService) {
				m.On("ProcessReferral", mock.Anything, "ABCD1234", "friend").Return(referral, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantMsg:    "Referans kodu başarıyla uygulandı",
		},
		{
			name:   "собственный код",
			body:   `{"code":"ABCD1234"}`,
			locale: "en-US",
			setupMock: func(m *MockService) {
				m.On("ProcessReferral", mock.Anything, "ABCD1234", "friend").Return(nil, models.ErrSelfReferral).Once()
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    "You cannot use your own referral code",
		},
		{
			name:   "уже приглашён",
			body:   `{"code":"ABCD1234"}`,
			locale: "en-GB,en;q=0.8",
			setupMock: func(m *MockService) {
				m.On("ProcessReferral", mock.Anything, "ABCD1234", "friend").Return(nil, models.ErrAlreadyReferred).Once()
			},
			wantStatus: http.StatusConflict,
			wantErr:    "A referral code has already been used for this account",
		},
		{
			name:   "код не найден",
			body:   `{"code":"ZZZZ9999"}`,
			locale: "tr",
			setupMock: func(m *MockService) {
				m.On("ProcessReferral", mock.Anything, "ZZZZ9999", "friend").Return(nil, models.ErrReferralCodeNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
			wantErr:    "Referans kodu bulunamadı",
		},
		{
			name:       "пустой код",
			body:       `{"code":""}`,
			setupMock:  func(_ *MockService) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantErr:    "field Code is a required field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			rec := httptest.NewRecorder()

			newHandler(t, svc).Process(rec, newRequest(http.MethodPost, "/referral/process", tt.body, tt.locale))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode(t, rec)
			assert.Equal(t, tt.wantMsg, resp.Message)
			assert.Equal(t, tt.wantErr, resp.Error)
			svc.AssertExpectations(t)
		})
	}
}

func TestClaim(t *testing.T) {
	referral, err := models.NewReferral("referrer", "friend", "ABCD1234", 30, now)
	require.NoError(t, err)
	require.NoError(t, referral.Complete(now))

	tests := []struct {
		name       string
		result     *models.ClaimResult
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "награда начислена",
			result:     &models.ClaimResult{Referral: referral, RewardDays: 30, RewardGranted: true},
			wantStatus: http.StatusOK,
			wantMsg:    "Referral reward granted: 30 days",
		},
		{
			name:       "начисление отложено",
			result:     &models.ClaimResult{Referral: referral, RewardDays: 30},
			wantStatus: http.StatusOK,
			wantMsg:    "Referral completed, the 30-day reward will be applied shortly",
		},
		{
			name:       "повторный claim",
			err:        models.ErrReferralAlreadyCompleted,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "приглашённый ещё не оплатил",
			err:        models.ErrPurchaseRequired,
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("ClaimReferralReward", mock.Anything, "ABCD1234", "friend").Return(tt.result, tt.err).Once()
			rec := httptest.NewRecorder()

			newHandler(t, svc).Claim(rec, newRequest(http.MethodPost, "/referral/claim", `{"code":"ABCD1234"}`, "en-US"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decode(t, rec).Message)
			svc.AssertExpectations(t)
		})
	}
}

func TestGenerateValidateStats(t *testing.T) {
	svc := new(MockService)
	svc.On("GenerateUserReferralCode", mock.Anything, "friend").
		Return(&models.ReferralCode{Code: "FRND1234", UserID: "friend", CreatedAt: now}, nil).Once()
	svc.On("ValidateReferralCode", "FRND1234").Return(true).Once()
	svc.On("GetUserReferralStats", mock.Anything, "friend").
		Return(&models.ReferralStats{TotalReferrals: 2, CompletedReferrals: 1, TotalRewardDays: 30, ReferralCode: "FRND1234"}, nil).Once()
	h := newHandler(t, svc)

	rec := httptest.NewRecorder()
	h.GenerateCode(rec, newRequest(http.MethodPost, "/referral/code", "", "en-US"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"FRND1234"`)

	req := newRequest(http.MethodGet, "/referral/validate/frnd1234", "", "")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("code", "frnd1234")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec = httptest.NewRecorder()
	h.Validate(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)

	rec = httptest.NewRecorder()
	h.Stats(rec, newRequest(http.MethodGet, "/referral/stats", "", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalRewardDays":30`)

	svc.AssertExpectations(t)
}
