// Package scheduler фоновые задачи: истечение подписок, напоминания об окончании,
// закрытие устаревших приглашений и повтор неначисленных наград.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/talepify/entitlement-service/internal/i18n"
	"github.com/talepify/entitlement-service/internal/lib/days"
	"github.com/talepify/entitlement-service/internal/lib/sl"
	"github.com/talepify/entitlement-service/internal/models"
)

// NotificationKind тип уведомления в ключе дедупликации.
const NotificationKind = "subscription"

// Subscriptions операции подписок, нужные планировщику.
type Subscriptions interface {
	ExpireOverdue(ctx context.Context) (int, error)
	ListExpiring(ctx context.Context, within time.Duration, limit int) ([]models.ExpiringSubscription, error)
	Now() time.Time
}

// Referrals операции реферальной программы, нужные планировщику.
type Referrals interface {
	ExpireStaleReferrals(ctx context.Context) (int, error)
	RetryUnclaimedRewards(ctx context.Context, limit int) (int, error)
}

// Notifier отправка с дедупликацией по ключу.
type Notifier interface {
	DispatchOnce(ctx context.Context, kind, itemID string, dayCount int, n models.Notification) (bool, error)
}

// Options настройки планировщика.
type Options struct {
	Interval     time.Duration
	ReminderDays []int
	BatchSize    int
	Locale       string
}

// Service планировщик.
type Service struct {
	subs      Subscriptions
	referrals Referrals
	notifier  Notifier
	tr        *i18n.Translator
	opts      Options
	log       *slog.Logger
}

// New создаёт планировщик. Пороги напоминаний сортируются по возрастанию.
func New(subs Subscriptions, referrals Referrals, notifier Notifier, tr *i18n.Translator, opts Options, log *slog.Logger) *Service {
	opts.ReminderDays = slices.Clone(opts.ReminderDays)
	slices.Sort(opts.ReminderDays)
	opts.ReminderDays = slices.DeleteFunc(opts.ReminderDays, func(d int) bool { return d <= 0 })
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	return &Service{subs: subs, referrals: referrals, notifier: notifier, tr: tr, opts: opts, log: log}
}

// Run выполняет задачи сразу и затем с интервалом до отмены ctx.
func (s *Service) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce один проход всех задач. Ошибка одной задачи не останавливает остальные.
func (s *Service) RunOnce(ctx context.Context) {
	if n, err := s.subs.ExpireOverdue(ctx); err != nil {
		s.log.Error("failed to expire subscriptions", sl.Err(err))
	} else if n > 0 {
		s.log.Info("subscriptions expired", slog.Int("count", n))
	}

	if n, err := s.RemindExpiring(ctx); err != nil {
		s.log.Error("failed to send expiry reminders", sl.Err(err))
	} else if n > 0 {
		s.log.Info("expiry reminders sent", slog.Int("count", n))
	}

	if n, err := s.referrals.ExpireStaleReferrals(ctx); err != nil {
		s.log.Error("failed to expire stale referrals", sl.Err(err))
	} else if n > 0 {
		s.log.Info("stale referrals expired", slog.Int("count", n))
	}

	if n, err := s.referrals.RetryUnclaimedRewards(ctx, s.opts.BatchSize); err != nil {
		s.log.Error("failed to retry referral rewards", sl.Err(err))
	} else if n > 0 {
		s.log.Info("referral rewards repaired", slog.Int("count", n))
	}
}

// threshold наименьший порог, в который попадает остаток days.
func (s *Service) threshold(left int) (int, bool) {
	for _, t := range s.opts.ReminderDays {
		if left <= t {
			return t, true
		}
	}
	return 0, false
}

// RemindExpiring отправляет по одному напоминанию на подписку и порог.
func (s *Service) RemindExpiring(ctx context.Context) (int, error) {
	const op = "scheduler.RemindExpiring"
	if len(s.opts.ReminderDays) == 0 {
		return 0, nil
	}
	horizon := days.Day * time.Duration(s.opts.ReminderDays[len(s.opts.ReminderDays)-1])
	expiring, err := s.subs.ListExpiring(ctx, horizon, s.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	now := s.subs.Now()
	sent := 0
	for _, sub := range expiring {
		left := days.Remaining(sub.EndDate, now)
		t, ok := s.threshold(left)
		if !ok || left == 0 {
			continue
		}
		n := models.Notification{
			UserID:  sub.UserID,
			Title:   s.tr.Sprintf(s.opts.Locale, i18n.KeySubscriptionReminderTitle),
			Message: s.tr.Sprintf(s.opts.Locale, i18n.KeySubscriptionReminderBody, left),
			Channel: models.ChannelSubscription,
			Data: map[string]any{
				"type":           "subscription_expiring",
				"subscriptionId": sub.SubscriptionID,
				"daysLeft":       left,
			},
		}
		ok, err := s.notifier.DispatchOnce(ctx, NotificationKind, sub.SubscriptionID, t, n)
		if err != nil {
			s.log.Warn("failed to send reminder", slog.String("subscription_id", sub.SubscriptionID), sl.Err(err))
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}
