// Package subscription HTTP-обработчики подписки текущего пользователя.
//
// Пользователь берётся из контекста, куда его кладёт JWTMiddleware.
// Ошибки сервиса переводятся в локализованные сообщения.
package subscription

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/talepify/entitlement-service/internal/http/middlewarectx"
	"github.com/talepify/entitlement-service/internal/http/response"
	"github.com/talepify/entitlement-service/internal/i18n"
	"github.com/talepify/entitlement-service/internal/models"
	subsvc "github.com/talepify/entitlement-service/internal/services/subscription"
)

// dateLayout формат даты в сообщениях.
const dateLayout = "02.01.2006"

// Service бизнес-логика подписок.
type Service interface {
	GetCurrentSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	GetSubscriptionSummary(ctx context.Context, userID string) (*models.SubscriptionSummary, error)
	Purchase(ctx context.Context, userID string, planID models.PlanID, paymentMethod string) (*models.Subscription, error)
	UpgradePlan(ctx context.Context, userID string, newPlanID models.PlanID) (*models.Subscription, error)
	CancelSubscription(ctx context.Context, userID string) (*subsvc.CancelResult, error)
	RenewSubscription(ctx context.Context, userID string) (*subsvc.RenewResult, error)
	CheckFeatureAccess(ctx context.Context, userID string, feature string) (bool, error)
}

// Handler обработчики /subscription.
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

// PurchaseRequest тело POST /subscription/purchase.
type PurchaseRequest struct {
	PlanID        string `json:"planId" validate:"required,oneof=monthly quarterly semiannual yearly"`
	PaymentMethod string `json:"paymentMethod" validate:"max=64"`
}

// UpgradeRequest тело POST /subscription/upgrade.
type UpgradeRequest struct {
	PlanID string `json:"planId" validate:"required,oneof=monthly quarterly semiannual yearly"`
}

// user достаёт пользователя из контекста. Если его нет, ответ уже записан.
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

// Current godoc
// @Summary Текущая подписка
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Подписки нет"
// @Router /subscription [get]
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	userID, log, ok := h.user(w, r, "handlers.subscription.Current")
	if !ok {
		return
	}
	sub, err := h.service.GetCurrentSubscription(r.Context(), userID)
	if err != nil {
		response.Fail(w, r, h.tr, log, "failed to get subscription", err)
		return
	}
	response.Send(w, r, http.StatusOK, response.OK(sub))
}

// Summary godoc
// @Summary Сводка подписки
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /subscription/summary [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, log, ok := h.user(w, r, "handlers.subscription.Summary")
	if !ok {
		return
	}
	summary, err := h.service.GetSubscriptionSummary(r.Context(), userID)
	if err != nil {
		response.Fail(w, r, h.tr, log, "failed to get subscription summary", err)
		return
	}
	response.Send(w, r, http.StatusOK, response.OK(summary))
}

// Purchase godoc
// @Summary Оформить подписку
// @Tags Subscription
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PurchaseRequest true "Тариф и способ оплаты"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /subscription/purchase [post]
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, log, ok := h.user(w, r, "handlers.subscription.Purchase")
	if !ok {
		return
	}
	var req PurchaseRequest
	if !response.Bind(w, r, h.tr, h.validate, &req) {
		log.Warn("invalid request body")
		return
	}

	sub, err := h.service.Purchase(r.Context(), userID, models.PlanID(req.PlanID), req.PaymentMethod)
	if err != nil {
		response.Fail(w, r, h.tr, log, "failed to purchase subscription", err)
		return
	}
	log.Info("subscription purchased", slog.String("plan_id", req.PlanID))
	response.Send(w, r, http.StatusOK, response.OKWithMessage(
		h.tr.Sprintf(response.Locale(r), i18n.KeySubscriptionPurchased), sub))
}

// Upgrade godoc
// @Summary Сменить тариф
// @Tags Subscription
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpgradeRequest true "Новый тариф"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Подписку нельзя повысить"
// @Router /subscription/upgrade [post]
func (h *Handler) Upgrade(w http.ResponseWriter, r *http.Request) {
	userID, log, ok := h.user(w, r, "handlers.subscription.Upgrade")
	if !ok {
		return
	}
	var req UpgradeRequest
	if !response.Bind(w, r, h.tr, h.validate, &req) {
		log.Warn("invalid request body")
		return
	}

	sub, err := h.service.UpgradePlan(r.Context(), userID, models.PlanID(req.PlanID))
	if err != nil {
		response.Fail(w, r, h.tr, log, "failed to upgrade subscription", err)
		return
	}
	name := req.PlanID
	if plan, ok := sub.Plan(); ok {
		name = plan.Name
	}
	response.Send(w, r, http.StatusOK, response.OKWithMessage(
		h.tr.Sprintf(response.Locale(r), i18n.KeySubscriptionUpgraded, name), sub))
}

// Cancel godoc
// @Summary Отменить автопродление
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Нет активной подписки"
// @Router /subscription/cancel [post]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, log, ok := h.user(w, r, "handlers.subscription.Cancel")
	if !ok {
		return
	}
	res, err := h.service.CancelSubscription(r.Context(), userID)
	if err != nil {
		response.Fail(w, r, h.tr, log, "failed to cancel subscription", err)
		return
	}
	response.Send(w, r, http.StatusOK, response.OKWithMessage(
		h.tr.Sprintf(response.Locale(r), i18n.KeySubscriptionCancelled, res.ExpiresAt.Format(dateLayout)), res))
}

// Renew godoc
// @Summary Включить автопродление
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /subscription/renew [post]
func (h *Handler) Renew(w http.ResponseWriter, r *http.Request) {
	userID, log, ok := h.user(w, r, "handlers.subscription.Renew")
	if !ok {
		return
	}
	res, err := h.service.RenewSubscription(r.Context(), userID)
	if err != nil {
		response.Fail(w, r, h.tr, log, "failed to renew subscription", err)
		return
	}
	key := i18n.KeySubscriptionRenewed
	if res.AlreadyRenewing {
		key = i18n.KeySubscriptionAlreadyRenewing
	}
	response.Send(w, r, http.StatusOK, response.OKWithMessage(h.tr.Sprintf(response.Locale(r), key), res))
}

// Feature godoc
// @Summary Доступ к функции
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Param feature path string true "Функция"
// @Success 200 {object} response.Response
// @Router /subscription/features/{feature} [get]
func (h *Handler) Feature(w http.ResponseWriter, r *http.Request) {
	userID, log, ok := h.user(w, r, "handlers.subscription.Feature")
	if !ok {
		return
	}
	feature := chi.URLParam(r, "feature")
	allowed, err := h.service.CheckFeatureAccess(r.Context(), userID, feature)
	if err != nil {
		response.Fail(w, r, h.tr, log, "failed to check feature access", err)
		return
	}
	response.Send(w, r, http.StatusOK, response.OK(map[string]any{
		"feature": feature,
		"allowed": allowed,
	}))
}
