package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/talepify/entitlement-service/internal/http/response"
	"github.com/talepify/entitlement-service/internal/i18n"
)

const maxInstallationIDLen = 128

// InstallationMiddleware требует непустой X-Installation-ID и кладёт его в контекст.
func InstallationMiddleware(tr *i18n.Translator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderInstallationID))
			if id == "" || len(id) > maxInstallationIDLen {
				log.Warn("installation id missing or too long", slog.Int("len", len(id)))
				response.Send(w, r, http.StatusBadRequest,
					response.Error(tr.Sprintf(r.Header.Get("Accept-Language"), i18n.KeyErrorInstallation)))
				return
			}
			ctx := context.WithValue(r.Context(), Installation, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
