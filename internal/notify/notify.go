// Package notify доставка локальных уведомлений пользователю.
// Отправка всегда best-effort: вызывающий код логирует ошибку и продолжает работу.
package notify

import (
	"context"
	"log/slog"

	"github.com/talepify/entitlement-service/internal/models"
)

// Dispatcher отправляет уведомление.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) error
}

// LogDispatcher пишет уведомления в лог. Используется без брокера.
type LogDispatcher struct {
	log *slog.Logger
}

// NewLogDispatcher создаёт LogDispatcher.
func NewLogDispatcher(log *slog.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	d.log.Info("notification",
		slog.String("user_id", n.UserID),
		slog.String("channel", n.Channel),
		slog.String("title", n.Title),
		slog.String("message", n.Message),
	)
	return nil
}
