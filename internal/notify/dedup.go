package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/talepify/entitlement-service/internal/kvstore"
	"github.com/talepify/entitlement-service/internal/lib/sl"
	"github.com/talepify/entitlement-service/internal/models"
)

// DedupKey ключ вида {type}_notification_{itemId}_{dayCount}.
func DedupKey(kind, itemID string, dayCount int) string {
	return fmt.Sprintf("%s_notification_%s_%d", kind, itemID, dayCount)
}

// Deduper отправляет уведомление не больше одного раза на ключ.
type Deduper struct {
	store kvstore.Store
	next  Dispatcher
	log   *slog.Logger
	now   func() time.Time
}

// NewDeduper оборачивает диспетчер. Отметки об отправке хранятся в store.
func NewDeduper(store kvstore.Store, next Dispatcher, log *slog.Logger) *Deduper {
	return &Deduper{store: store, next: next, log: log, now: time.Now}
}

// DispatchOnce отправляет n, если по ключу ещё ничего не отправлялось.
// Возвращает true, когда уведомление ушло в этом вызове.
func (d *Deduper) DispatchOnce(ctx context.Context, kind, itemID string, dayCount int, n models.Notification) (bool, error) {
	const op = "notify.Deduper.DispatchOnce"
	key := DedupKey(kind, itemID, dayCount)

	_, sent, err := d.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if sent {
		return false, nil
	}
	if err := d.next.Dispatch(ctx, n); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	// отметка после успешной отправки: при сбое записи возможен повтор, но не потеря
	if err := d.store.Set(ctx, key, d.now().UTC().Format(time.RFC3339)); err != nil {
		d.log.Warn("failed to store notification mark", slog.String("key", key), sl.Err(err))
	}
	return true, nil
}
