// Package trial HTTP-обработчики пробного периода. Все ручки работают
// в рамках установки приложения из заголовка X-Installation-ID.
package trial

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/talepify/entitlement-service/internal/http/middlewarectx"
	"github.com/talepify/entitlement-service/internal/http/response"
	"github.com/talepify/entitlement-service/internal/i18n"
	"github.com/talepify/entitlement-service/internal/models"
	trialsvc "github.com/talepify/entitlement-service/internal/services/trial"
)

// Service бизнес-логика пробного периода.
type Service interface {
	StartTrial(ctx context.Context, installationID, phone string) (*trialsvc.StartResult, error)
	GetTrialStatus(ctx context.Context, installationID string) (*models.TrialStatusView, error)
	EndTrial(ctx context.Context, installationID string) error
	CanUseTrial(ctx context.Context, phone string) (bool, error)
	CheckTrialExpiry(ctx context.Context, installationID string) (*models.TrialExpiryCheck, error)
	ClearTrialData(ctx context.Context, installationID string) error
}

// Handler обработчики /trial.
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

// StartRequest тело POST /trial/start.
type StartRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,max=32"`
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Start godoc
// @Summary Запустить пробный период
// @Tags Trial
// @Accept json
// @Produce json
// @Param X-Installation-ID header string true "Идентификатор установки"
// @Param request body StartRequest true "Номер телефона"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Номер уже использовал пробный период"
// @Router /trial/start [post]
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trial.Start"
	log := h.logger(r, op)

	var req StartRequest
	if !response.Bind(w, r, h.tr, h.validate, &req) {
		log.Warn("invalid request body")
		return
	}
	installationID, _ := middlewarectx.InstallationFrom(r.Context())

	res, err := h.service.StartTrial(r.Context(), installationID, req.PhoneNumber)
	if errors.Is(err, models.ErrTrialAlreadyUsed) {
		log.Info("trial already used", slog.String("installation_id", installationID))
		response.Send(w, r, http.StatusConflict, response.ErrorWithData(
			h.tr.Error(response.Locale(r), err),
			map[string]any{"canUseTrial": false},
		))
		return
	}
	if err != nil {
		response.Fail(w, r, h.tr, log, "failed to start trial", err)
		return
	}

	days := res.Trial.DaysRemaining(res.Trial.StartDate)
	response.Send(w, r, http.StatusOK, response.OKWithMessage(
		h.tr.Sprintf(response.Locale(r), i18n.KeyTrialStarted, days),
		res,
	))
}

// Status godoc
// @Summary Состояние пробного периода
// @Tags Trial
// @Produce json
// @Param X-Installation-ID header string true "Идентификатор установки"
// @Success 200 {object} response.Response
// @Router /trial/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trial.Status"
	installationID, _ := middlewarectx.InstallationFrom(r.Context())

	view, err := h.service.GetTrialStatus(r.Context(), installationID)
	if err != nil {
		response.Fail(w, r, h.tr, h.logger(r, op), "failed to get trial status", err)
		return
	}
	response.Send(w, r, http.StatusOK, response.OK(view))
}

// End godoc
// @Summary Завершить пробный период
// @Tags Trial
// @Produce json
// @Param X-Installation-ID header string true "Идентификатор установки"
// @Success 200 {object} response.Response
// @Router /trial/end [post]
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trial.End"
	installationID, _ := middlewarectx.InstallationFrom(r.Context())

	if err := h.service.EndTrial(r.Context(), installationID); err != nil {
		response.Fail(w, r, h.tr, h.logger(r, op), "failed to end trial", err)
		return
	}
	response.Send(w, r, http.StatusOK, response.OKWithMessage(
		h.tr.Sprintf(response.Locale(r), i18n.KeyTrialEnded), nil))
}

// Eligibility godoc
// @Summary Может ли номер использовать пробный период
// @Tags Trial
// @Produce json
// @Param X-Installation-ID header string true "Идентификатор установки"
// @Param phone query string true "Номер телефона"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /trial/eligibility [get]
func (h *Handler) Eligibility(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trial.Eligibility"
	ok, err := h.service.CanUseTrial(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		response.Fail(w, r, h.tr, h.logger(r, op), "failed to check eligibility", err)
		return
	}
	response.Send(w, r, http.StatusOK, response.OK(map[string]any{"canUseTrial": ok}))
}

// CheckExpiry godoc
// @Summary Проверить и закрыть истёкший пробный период
// @Tags Trial
// @Produce json
// @Param X-Installation-ID header string true "Идентификатор установки"
// @Success 200 {object} response.Response
// @Router /trial/check-expiry [post]
func (h *Handler) CheckExpiry(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trial.CheckExpiry"
	installationID, _ := middlewarectx.InstallationFrom(r.Context())

	check, err := h.service.CheckTrialExpiry(r.Context(), installationID)
	if err != nil {
		response.Fail(w, r, h.tr, h.logger(r, op), "failed to check trial expiry", err)
		return
	}
	msg := ""
	if check.MessageKey != "" {
		msg = h.tr.Sprintf(response.Locale(r), check.MessageKey)
	}
	response.Send(w, r, http.StatusOK, response.OKWithMessage(msg, check))
}

// Clear godoc
// @Summary Удалить данные пробного периода установки
// @Tags Trial
// @Produce json
// @Param X-Installation-ID header string true "Идентификатор установки"
// @Success 200 {object} response.Response
// @Router /trial [delete]
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trial.Clear"
	installationID, _ := middlewarectx.InstallationFrom(r.Context())

	if err := h.service.ClearTrialData(r.Context(), installationID); err != nil {
		response.Fail(w, r, h.tr, h.logger(r, op), "failed to clear trial data", err)
		return
	}
	response.Send(w, r, http.StatusOK, response.OKWithMessage(
		h.tr.Sprintf(response.Locale(r), i18n.KeyTrialCleared), nil))
}
