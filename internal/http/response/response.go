// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков: {"success": true, ...}
// при успехе и {"success": false, "error": ...} при ошибке.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/talepify/entitlement-service/internal/i18n"
	"github.com/talepify/entitlement-service/internal/lib/sl"
	"github.com/talepify/entitlement-service/internal/models"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Error   string `json:"error" example:"Geçersiz istek"`
}

// OK успешный ответ с данными.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// OKWithMessage успешный ответ с локализованным сообщением.
func OKWithMessage(msg string, data any) Response {
	return Response{Success: true, Message: msg, Data: data}
}

// Error ответ с ошибкой.
func Error(msg string) Response {
	return Response{Success: false, Error: msg}
}

// ErrorWithData ответ с ошибкой и данными, например canUseTrial при отказе.
func ErrorWithData(msg string, data any) Response {
	return Response{Success: false, Error: msg, Data: data}
}

// ValidationError формирует ответ на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "alphanum":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only numbers and letters", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of %s", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too long", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Success: false,
		Error:   strings.Join(errsMsgs, ", "),
	}
}

// StatusFor HTTP-статус для ошибки сервиса.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidPhone),
		errors.Is(err, models.ErrInvalidReferralCode),
		errors.Is(err, models.ErrUnknownPlan),
		errors.Is(err, models.ErrInvalidRewardDays),
		errors.Is(err, models.ErrSelfReferral):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoSubscription),
		errors.Is(err, models.ErrReferralCodeNotFound),
		errors.Is(err, models.ErrReferralNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrTrialAlreadyUsed),
		errors.Is(err, models.ErrAlreadyReferred),
		errors.Is(err, models.ErrReferralAlreadyCompleted),
		errors.Is(err, models.ErrReferralExpired),
		errors.Is(err, models.ErrPurchaseRequired),
		errors.Is(err, models.ErrNoActiveSubscription),
		errors.Is(err, models.ErrCannotUpgrade),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrRewardNotClaimable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Send пишет статус и тело ответа.
func Send(w http.ResponseWriter, r *http.Request, status int, resp Response) {
	render.Status(r, status)
	render.JSON(w, r, resp)
}

// Locale язык клиента из Accept-Language.
func Locale(r *http.Request) string {
	return r.Header.Get("Accept-Language")
}

// Fail пишет ошибку в лог и отвечает локализованным сообщением. Ожидаемые
// ошибки логируются на уровне info, неожиданные на error и превращаются
// в общее сообщение.
func Fail(w http.ResponseWriter, r *http.Request, tr *i18n.Translator, log *slog.Logger, msg string, err error) {
	if i18n.IsExpected(err) {
		log.Info(msg, sl.Err(err))
	} else {
		log.Error(msg, sl.Err(err))
	}
	Send(w, r, StatusFor(err), Error(tr.Error(Locale(r), err)))
}

// Bind читает JSON-тело в v и проверяет его валидатором.
// При ошибке ответ уже записан и возвращается false.
func Bind(w http.ResponseWriter, r *http.Request, tr *i18n.Translator, validate *validator.Validate, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Send(w, r, http.StatusBadRequest, Error(tr.Sprintf(Locale(r), i18n.KeyErrorInvalidRequest)))
		return false
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			Send(w, r, http.StatusUnprocessableEntity, ValidationError(verrs))
			return false
		}
		Send(w, r, http.StatusBadRequest, Error(tr.Sprintf(Locale(r), i18n.KeyErrorInvalidRequest)))
		return false
	}
	return true
}
