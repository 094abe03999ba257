// Package health проверка готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/talepify/entitlement-service/internal/http/response"
	"github.com/talepify/entitlement-service/internal/lib/sl"
)

// Checker зависимость, доступность которой проверяется.
type Checker interface {
	Ping(ctx context.Context) error
}

// Handler отвечает 200, если все зависимости доступны.
type Handler struct {
	log      *slog.Logger
	checkers map[string]Checker
}

// New создаёт Handler. checkers по имени зависимости, например "postgres" или "redis".
func New(log *slog.Logger, checkers map[string]Checker) *Handler {
	return &Handler{
		log:      log,
		checkers: checkers,
	}
}

// ServeHTTP godoc
// @Summary Проверка готовности
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.checkers))
	healthy := true
	for name, c := range h.checkers {
		if err := c.Ping(ctx); err != nil {
			h.log.Error("dependency is unavailable", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			status[name] = "unavailable"
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		response.Send(w, r, http.StatusServiceUnavailable, response.Response{Success: false, Data: status})
		return
	}
	response.Send(w, r, http.StatusOK, response.OK(status))
}
