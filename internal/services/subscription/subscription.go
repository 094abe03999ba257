// Package subscription бизнес-логика подписки пользователя: покупка, повышение тарифа,
// отмена, продление, бонусные дни и проверка доступа к функциям.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talepify/entitlement-service/internal/config"
	"github.com/talepify/entitlement-service/internal/i18n"
	"github.com/talepify/entitlement-service/internal/lib/days"
	"github.com/talepify/entitlement-service/internal/lib/lock"
	"github.com/talepify/entitlement-service/internal/lib/sl"
	"github.com/talepify/entitlement-service/internal/metrics"
	"github.com/talepify/entitlement-service/internal/models"
)

// Repository хранилище подписок.
type Repository interface {
	// GetCurrent последняя запись пользователя. models.ErrNotFound, если записей нет.
	GetCurrent(ctx context.Context, userID string) (*models.Subscription, error)
	// Save создаёт или обновляет запись.
	Save(ctx context.Context, sub *models.Subscription) error
	// Replace обновляет прежнюю запись и создаёт новую в одной транзакции.
	Replace(ctx context.Context, prev, next *models.Subscription) error
	// ApplyReward сохраняет запись и ключ начисления атомарно.
	// Если ключ уже записан, ничего не меняет и возвращает false.
	ApplyReward(ctx context.Context, sub *models.Subscription, key string, days int) (bool, error)
	// ListExpiring активные записи с окончанием в [from, to).
	ListExpiring(ctx context.Context, from, to time.Time, limit int) ([]models.ExpiringSubscription, error)
	// ExpireOverdue переводит активные записи с прошедшей датой окончания в expired
	// и возвращает идентификаторы затронутых пользователей.
	ExpireOverdue(ctx context.Context, now time.Time) ([]string, error)
}

// Cache кеш текущей подписки.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Options настройки сервиса.
type Options struct {
	RenewalMode string
	CacheTTL    time.Duration
}

// CancelResult результат отмены.
type CancelResult struct {
	Subscription *models.Subscription `json:"subscription"`
	ExpiresAt    time.Time            `json:"expiresAt"`
}

// RenewResult результат продления. AlreadyRenewing означает, что автопродление уже было включено.
type RenewResult struct {
	Subscription    *models.Subscription `json:"subscription"`
	AlreadyRenewing bool                 `json:"alreadyRenewing"`
}

// Service управляет подписками.
type Service struct {
	repo    Repository
	cache   Cache
	locker  lock.Locker
	opts    Options
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New создаёт сервис подписок.
func New(repo Repository, cache Cache, locker lock.Locker, opts Options, log *slog.Logger, m *metrics.Metrics) *Service {
	if opts.RenewalMode == "" {
		opts.RenewalMode = config.RenewalFlagOnly
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		locker:  locker,
		opts:    opts,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func cacheKey(userID string) string {
	return "subscription:" + userID
}

func lockKey(userID string) string {
	return "subscription-user:" + userID
}

// GetCurrentSubscription текущая подписка пользователя или models.ErrNoSubscription.
func (s *Service) GetCurrentSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "subscription.GetCurrentSubscription"
	sub, err := s.current(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub == nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNoSubscription)
	}
	return sub, nil
}

// current читает из кеша, затем из репозитория. Отсутствие подписки это (nil, nil).
func (s *Service) current(ctx context.Context, userID string) (*models.Subscription, error) {
	key := cacheKey(userID)
	var cached models.Subscription
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read subscription from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	sub, err := s.repo.GetCurrent(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.store(ctx, sub)
	return sub, nil
}

// currentFresh читает мимо кеша. Используется под блокировкой перед изменением.
func (s *Service) currentFresh(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := s.repo.GetCurrent(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return sub, err
}

func (s *Service) store(ctx context.Context, sub *models.Subscription) {
	key := cacheKey(sub.UserID)
	if err := s.cache.Set(ctx, key, sub, s.opts.CacheTTL); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", key), sl.Err(err))
	}
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	key := cacheKey(userID)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to invalidate subscription cache", slog.String("key", key), sl.Err(err))
	}
}

// mutate выполняет fn под блокировкой пользователя и сбрасывает кеш после неё.
func (s *Service) mutate(ctx context.Context, name, userID string, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, lockKey(userID))
	if err != nil {
		return err
	}
	defer unlock()

	err = fn()
	s.metrics.Subscription(name, metrics.Result(err, i18n.IsExpected(err)))
	if err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Purchase оформляет подписку на тариф с текущего момента.
// Ожидающая оплаты или пробная запись активируется на месте, любая другая заменяется новой.
func (s *Service) Purchase(ctx context.Context, userID string, planID models.PlanID, paymentMethod string) (*models.Subscription, error) {
	const op = "subscription.Purchase"
	plan, ok := models.LookupPlan(planID)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", op, models.ErrUnknownPlan, planID)
	}

	var result *models.Subscription
	err := s.mutate(ctx, "purchase", userID, func() error {
		now := s.now()
		prev, err := s.currentFresh(ctx, userID)
		if err != nil {
			return err
		}
		tx := models.Transaction{Kind: models.TransactionPurchase, Amount: plan.Price, Currency: plan.Currency, Days: plan.Duration, CreatedAt: now}

		if prev != nil && (prev.Status == models.SubscriptionPending || prev.Status == models.SubscriptionTrial) {
			activated := prev.Clone()
			if err := activated.TransitionTo(models.SubscriptionActive, now); err != nil {
				return err
			}
			activated.PlanID = plan.ID
			activated.StartDate = now
			activated.EndDate = days.Add(now, plan.Duration)
			activated.AutoRenew = true
			activated.PaymentMethod = paymentMethod
			activated.AddTransaction(tx)
			if err := s.repo.Save(ctx, activated); err != nil {
				return err
			}
			result = activated
			return nil
		}

		next, err := models.NewSubscription(models.SubscriptionParams{
			UserID:        userID,
			PlanID:        plan.ID,
			StartDate:     now,
			AutoRenew:     true,
			PaymentMethod: paymentMethod,
			Now:           now,
		})
		if err != nil {
			return err
		}
		next.AddTransaction(tx)

		if prev == nil {
			err = s.repo.Save(ctx, next)
		} else {
			err = s.repo.Replace(ctx, supersede(prev, now), next)
		}
		if err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription purchased",
		slog.String("user_id", userID),
		slog.String("plan", string(planID)),
		slog.Time("end_date", result.EndDate),
	)
	return result, nil
}

// supersede закрывает прежнюю запись, когда её место занимает новая.
func supersede(prev *models.Subscription, now time.Time) *models.Subscription {
	old := prev.Clone()
	if old.Status == models.SubscriptionActive {
		_ = old.TransitionTo(models.SubscriptionCancelled, now)
	}
	old.AutoRenew = false
	old.UpdatedAt = now
	return old
}

// UpgradePlan переводит активную подписку на другой тариф. Новая запись начинается сейчас,
// остаток прежнего периода не переносится.
func (s *Service) UpgradePlan(ctx context.Context, userID string, newPlanID models.PlanID) (*models.Subscription, error) {
	const op = "subscription.UpgradePlan"
	var result *models.Subscription
	err := s.mutate(ctx, "upgrade", userID, func() error {
		now := s.now()
		prev, err := s.currentFresh(ctx, userID)
		if err != nil {
			return err
		}
		if prev == nil {
			return models.ErrNoSubscription
		}
		if !prev.CanUpgrade(now) {
			return models.ErrCannotUpgrade
		}
		plan, ok := models.LookupPlan(newPlanID)
		if !ok {
			return fmt.Errorf("%w: %s", models.ErrUnknownPlan, newPlanID)
		}

		next, err := models.NewSubscription(models.SubscriptionParams{
			UserID:        userID,
			PlanID:        plan.ID,
			StartDate:     now,
			AutoRenew:     true,
			PaymentMethod: prev.PaymentMethod,
			Now:           now,
		})
		if err != nil {
			return err
		}
		next.AddTransaction(models.Transaction{
			Kind:      models.TransactionUpgrade,
			Amount:    plan.Price,
			Currency:  plan.Currency,
			Days:      plan.Duration,
			CreatedAt: now,
		})
		if err := s.repo.Replace(ctx, supersede(prev, now), next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription upgraded", slog.String("user_id", userID), slog.String("plan", string(newPlanID)))
	return result, nil
}

// CancelSubscription отключает автопродление. Доступ сохраняется до прежней даты окончания.
func (s *Service) CancelSubscription(ctx context.Context, userID string) (*CancelResult, error) {
	const op = "subscription.CancelSubscription"
	var result *CancelResult
	err := s.mutate(ctx, "cancel", userID, func() error {
		now := s.now()
		sub, err := s.currentFresh(ctx, userID)
		if err != nil {
			return err
		}
		if sub == nil || !sub.IsActive(now) {
			return models.ErrNoActiveSubscription
		}
		if err := sub.TransitionTo(models.SubscriptionCancelled, now); err != nil {
			return err
		}
		sub.AutoRenew = false
		if err := s.repo.Save(ctx, sub); err != nil {
			return err
		}
		result = &CancelResult{Subscription: sub, ExpiresAt: sub.EndDate}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// RenewSubscription включает автопродление. В режиме immediate_extend дата окончания
// сразу сдвигается на период тарифа от max(now, endDate).
func (s *Service) RenewSubscription(ctx context.Context, userID string) (*RenewResult, error) {
	const op = "subscription.RenewSubscription"
	var result *RenewResult
	err := s.mutate(ctx, "renew", userID, func() error {
		now := s.now()
		sub, err := s.currentFresh(ctx, userID)
		if err != nil {
			return err
		}
		if sub == nil {
			return models.ErrNoSubscription
		}
		if sub.AutoRenew {
			result = &RenewResult{Subscription: sub, AlreadyRenewing: true}
			return nil
		}
		if err := sub.TransitionTo(models.SubscriptionActive, now); err != nil {
			return err
		}
		sub.AutoRenew = true
		sub.UpdatedAt = now

		if s.opts.RenewalMode == config.RenewalImmediateExtend {
			plan, ok := sub.Plan()
			if !ok {
				return fmt.Errorf("%w: %s", models.ErrUnknownPlan, sub.PlanID)
			}
			base := sub.EndDate
			if now.After(base) {
				base = now
			}
			sub.EndDate = days.Add(base, plan.Duration)
			sub.AddTransaction(models.Transaction{
				Kind:      models.TransactionRenewal,
				Amount:    plan.Price,
				Currency:  plan.Currency,
				Days:      plan.Duration,
				CreatedAt: now,
			})
		}
		if err := s.repo.Save(ctx, sub); err != nil {
			return err
		}
		result = &RenewResult{Subscription: sub}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// AddReferralRewardDays добавляет дни к текущей дате окончания подписки.
// Повтор с тем же ключом возвращает запись без изменений.
func (s *Service) AddReferralRewardDays(ctx context.Context, userID string, n int, idempotencyKey string) (*models.Subscription, error) {
	const op = "subscription.AddReferralRewardDays"
	if n <= 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidRewardDays)
	}

	var result *models.Subscription
	err := s.mutate(ctx, "reward", userID, func() error {
		now := s.now()
		sub, err := s.currentFresh(ctx, userID)
		if err != nil {
			return err
		}
		if sub == nil {
			return models.ErrNoSubscription
		}
		extended := sub.Clone()
		extended.ExtendDays(n, models.TransactionReferralReward, now)

		applied, err := s.repo.ApplyReward(ctx, extended, idempotencyKey, n)
		if err != nil {
			return err
		}
		if !applied {
			s.log.Info("reward already applied", slog.String("user_id", userID), slog.String("key", idempotencyKey))
			result = sub
			return nil
		}
		s.metrics.RewardDays(n)
		result = extended
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// HasActivePurchase оплачена ли текущая подписка пользователя. Читает мимо кеша,
// так как вызывается сразу после покупки.
func (s *Service) HasActivePurchase(ctx context.Context, userID string) (bool, error) {
	const op = "subscription.HasActivePurchase"
	sub, err := s.currentFresh(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if sub == nil {
		return false, nil
	}
	return sub.IsPurchased(s.now()), nil
}

// CheckFeatureAccess входит ли функция в тариф текущей подписки.
func (s *Service) CheckFeatureAccess(ctx context.Context, userID string, feature string) (bool, error) {
	const op = "subscription.CheckFeatureAccess"
	sub, err := s.current(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if sub == nil {
		return false, nil
	}
	plan, ok := sub.Plan()
	if !ok {
		return false, nil
	}
	return plan.HasFeature(feature), nil
}

// GetSubscriptionSummary сводка для экрана подписки.
// Без подписки возвращается месячный тариф со статусом none.
func (s *Service) GetSubscriptionSummary(ctx context.Context, userID string) (*models.SubscriptionSummary, error) {
	const op = "subscription.GetSubscriptionSummary"
	sub, err := s.current(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub == nil {
		return &models.SubscriptionSummary{
			HasSubscription: false,
			Plan:            models.DefaultPlan(),
			Status:          models.SubscriptionStatusNone,
		}, nil
	}
	now := s.now()
	plan, ok := sub.Plan()
	if !ok {
		plan = models.DefaultPlan()
	}
	return &models.SubscriptionSummary{
		HasSubscription: true,
		Plan:            plan,
		Status:          string(sub.Status),
		DaysUntilExpiry: sub.DaysUntilExpiry(now),
		CanUpgrade:      sub.CanUpgrade(now),
		CanDowngrade:    sub.CanDowngrade(now),
	}, nil
}

// ExpireOverdue переводит просроченные активные подписки в expired.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	const op = "subscription.ExpireOverdue"
	users, err := s.repo.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	for _, userID := range users {
		s.invalidate(ctx, userID)
	}
	s.metrics.Subscription("expire", metrics.ResultOK)
	return len(users), nil
}

// ListExpiring активные подписки, которые закончатся в ближайшие within.
func (s *Service) ListExpiring(ctx context.Context, within time.Duration, limit int) ([]models.ExpiringSubscription, error) {
	const op = "subscription.ListExpiring"
	now := s.now()
	subs, err := s.repo.ListExpiring(ctx, now, now.Add(within), limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// Now текущее время сервиса.
func (s *Service) Now() time.Time {
	return s.now()
}
