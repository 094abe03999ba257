// Package middlewarectx содержит HTTP middleware сервиса.
//
// JWTMiddleware проверяет bearer-токен и кладёт идентификатор пользователя в контекст,
// InstallationMiddleware требует заголовок X-Installation-ID для ручек пробного периода,
// RateLimitMiddleware ограничивает частоту запросов одного клиента.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/talepify/entitlement-service/internal/http/response"
	"github.com/talepify/entitlement-service/internal/i18n"
	jwtlib "github.com/talepify/entitlement-service/internal/lib/jwt"
	"github.com/talepify/entitlement-service/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserID ключ идентификатора пользователя в контексте
	UserID Key = "user_id"
	// Installation ключ идентификатора установки приложения в контексте
	Installation Key = "installation_id"
)

// HeaderInstallationID заголовок с идентификатором установки.
const HeaderInstallationID = "X-Installation-ID"

// TokenParser разбирает bearer-токен.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwtlib.Claims, error)
}

// UserIDFrom идентификатор пользователя, положенный JWTMiddleware.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserID).(string)
	return id, ok && id != ""
}

// InstallationFrom идентификатор установки, положенный InstallationMiddleware.
func InstallationFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(Installation).(string)
	return id, ok && id != ""
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
// При ошибке отвечает 401 Unauthorized.
func JWTMiddleware(parser TokenParser, tr *i18n.Translator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
			msg := tr.Sprintf(r.Header.Get("Accept-Language"), i18n.KeyErrorUnauthorized)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				response.Send(w, r, http.StatusUnauthorized, response.Error(msg))
				return
			}

			claims, err := parser.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Warn("invalid or expired token", sl.Err(err))
				response.Send(w, r, http.StatusUnauthorized, response.Error(msg))
				return
			}
			ctx := context.WithValue(r.Context(), UserID, claims.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
