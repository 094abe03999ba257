// Package referral HTTP-обработчики реферальной программы.
package referral

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/talepify/entitlement-service/internal/http/middlewarectx"
	"github.com/talepify/entitlement-service/internal/http/response"
	"github.com/talepify/entitlement-service/internal/i18n"
	"github.com/talepify/entitlement-service/internal/models"
)

// Service бизнес-логика приглашений.
type Service interface {
	GenerateUserReferralCode(ctx context.Context, userID string) (*models.ReferralCode, error)
	ValidateReferralCode(code string) bool
	ProcessReferral(ctx context.Context, code, referredUserID string) (*models.Referral, error)
	ClaimReferralReward(ctx context.Context, code, referredUserID string) (*models.ClaimResult, error)
	GetUserReferralStats(ctx context.Context, userID string) (*models.ReferralStats, error)
}

// Handler обработчики /referral.
type Handler struct {
	log      *slog.Logger
	service  Service
	tr       *i18n.Translator
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service, tr *i18n.Translator) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		tr:       tr,
		validate: validator.New(),
	}
}

// CodeRequest тело POST /referral/process и /referral/claim.
type CodeRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request, op string) (string, *slog.Logger, bool) {
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user id not found in context")
		response.Send(w, r, http.StatusUnauthorized,
			response.Error(h.tr.Sprintf(response.Locale(r), i18n.KeyErrorUnauthorized)))
		return "", log, false
	}
	return userID, log.With(slog.String("user_id", userID)), true
}

// GenerateCode godoc
// @Summary Код приглашения пользователя
// @Description Возвращает код пользователя, создавая его при первом вызове.
// @Tags Referral
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /referral/code [post]
func (h *Handler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	userID, log, ok := h.user(w, r, "handlers.referral.GenerateCode")
	if !ok {
		return
	}
	code, err := h.service.GenerateUserReferralCode(r.Context(), userID)
	if err != nil {
		response.Fail(w, r, h.tr, log, "failed to generate referral code", err)
		return
	}
	response.Send(w, r, http.StatusOK, response.OKWithMessage(
		h.tr.Sprintf(response.Locale(r), i18n.KeyReferralCodeGenerated), code))
}

// Validate godoc
// @Summary Проверить формат кода
// @Tags Referral
// @Produce json
// @Security BearerAuth
// @Param code path string true "Код приглашения"
// @Success 200 {object} response.Response
// @Router /referral/validate/{code} [get]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
	response.Send(w, r, http.StatusOK, response.OK(map[string]any{
		"code":  code,
		"valid": h.service.ValidateReferralCode(code),
	}))
}

// Process godoc
// @Summary Применить код приглашения
// @Tags Referral
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CodeRequest true "Код приглашения"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный или собственный код"
// @Failure 404 {object} response.ErrorResponse "Код не найден"
// @Failure 409 {object} response.ErrorResponse "Пользователь уже приглашён"
// @Router /referral/process [post]
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	userID, log, ok := h.user(w, r, "handlers.referral.Process")
	if !ok {
		return
	}
	var req CodeRequest
	if !response.Bind(w, r, h.tr, h.validate, &req) {
		log.Warn("invalid request body")
		return
	}

	ref, err := h.service.ProcessReferral(r.Context(), strings.ToUpper(strings.TrimSpace(req.Code)), userID)
	if err != nil {
		response.Fail(w, r, h.tr, log, "failed to process referral", err)
		return
	}
	response.Send(w, r, http.StatusOK, response.OKWithMessage(
		h.tr.Sprintf(response.Locale(r), i18n.KeyReferralProcessed), ref))
}

// Claim godoc
// @Summary Завершить приглашение после покупки
// @Description Вызывается приглашённым после первой покупки. Пригласивший получает бонусные дни.
// @Tags Referral
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CodeRequest true "Код приглашения"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Награда уже начислялась"
// @Router /referral/claim [post]
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	userID, log, ok := h.user(w, r, "handlers.referral.Claim")
	if !ok {
		return
	}
	var req CodeRequest
	if !response.Bind(w, r, h.tr, h.validate, &req) {
		log.Warn("invalid request body")
		return
	}

	res, err := h.service.ClaimReferralReward(r.Context(), strings.ToUpper(strings.TrimSpace(req.Code)), userID)
	if err != nil {
		response.Fail(w, r, h.tr, log, "failed to claim referral reward", err)
		return
	}
	key := i18n.KeyReferralRewardGranted
	if !res.RewardGranted {
		key = i18n.KeyReferralRewardPending
	}
	response.Send(w, r, http.StatusOK, response.OKWithMessage(
		h.tr.Sprintf(response.Locale(r), key, res.RewardDays), res))
}

// Stats godoc
// @Summary Статистика приглашений
// @Tags Referral
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /referral/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, log, ok := h.user(w, r, "handlers.referral.Stats")
	if !ok {
		return
	}
	stats, err := h.service.GetUserReferralStats(r.Context(), userID)
	if err != nil {
		response.Fail(w, r, h.tr, log, "failed to get referral stats", err)
		return
	}
	response.Send(w, r, http.StatusOK, response.OK(stats))
}
