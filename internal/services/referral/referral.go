// Package referral реферальная программа: коды приглашений, учёт приглашённых
// и начисление бонусных дней пригласившему после первой покупки приглашённого.
package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/talepify/entitlement-service/internal/i18n"
	"github.com/talepify/entitlement-service/internal/lib/sl"
	"github.com/talepify/entitlement-service/internal/metrics"
	"github.com/talepify/entitlement-service/internal/models"
	"github.com/talepify/entitlement-service/internal/reward"
)

const maxCodeAttempts = 5

// ErrCodeAllocation не удалось подобрать свободный код.
var ErrCodeAllocation = errors.New("could not allocate unique referral code")

// Repository хранилище кодов и реферальных записей.
type Repository interface {
	// CreateCode сохраняет код. models.ErrDuplicate, если код занят или у пользователя код уже есть.
	CreateCode(ctx context.Context, code models.ReferralCode) error
	GetCode(ctx context.Context, code string) (*models.ReferralCode, error)
	GetCodeByUser(ctx context.Context, userID string) (*models.ReferralCode, error)
	// CreateReferral models.ErrAlreadyReferred, если у приглашённого уже есть запись.
	CreateReferral(ctx context.Context, r *models.Referral) error
	// CompleteReferral атомарно переводит запись (code, referredID) из pending в completed.
	CompleteReferral(ctx context.Context, code, referredID string, now time.Time) (*models.Referral, error)
	MarkRewardClaimed(ctx context.Context, id string) error
	// RecordGrantFailure увеличивает счётчик неудачных начислений и запоминает время попытки.
	RecordGrantFailure(ctx context.Context, id string, at time.Time) error
	Stats(ctx context.Context, referrerID string) (models.ReferralStats, error)
	// ListUnclaimed завершённые записи без начисленной награды. Первыми идут записи
	// без попыток начисления, затем с самой давней попыткой.
	ListUnclaimed(ctx context.Context, limit int) ([]*models.Referral, error)
	// ExpirePending переводит ожидающие записи, созданные до before, в expired.
	ExpirePending(ctx context.Context, before time.Time) (int, error)
}

// Notifier отправляет уведомление не больше одного раза на ключ (kind, itemID, dayCount).
type Notifier interface {
	DispatchOnce(ctx context.Context, kind, itemID string, dayCount int, n models.Notification) (bool, error)
}

// NotificationKind тип уведомления пригласившему для ключа повторов.
const NotificationKind = "referral"

// Options настройки программы.
type Options struct {
	RewardDays    int
	PendingTTL    time.Duration
	GrantRetries  uint64
	RetryInterval time.Duration
	// Locale язык уведомлений пригласившему.
	Locale string
}

// Service реферальная программа.
type Service struct {
	repo      Repository
	granter   reward.Granter
	purchases reward.PurchaseChecker
	notifier  Notifier
	tr        *i18n.Translator
	opts      Options
	log       *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	generate  func(userID string, now time.Time) string
}

// New создаёт сервис.
func New(
	repo Repository,
	granter reward.Granter,
	purchases reward.PurchaseChecker,
	notifier Notifier,
	tr *i18n.Translator,
	opts Options,
	log *slog.Logger,
	m *metrics.Metrics,
) *Service {
	if opts.RewardDays <= 0 {
		opts.RewardDays = models.DefaultRewardDays
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 200 * time.Millisecond
	}
	return &Service{
		repo:      repo,
		granter:   granter,
		purchases: purchases,
		notifier:  notifier,
		tr:        tr,
		opts:      opts,
		log:       log,
		metrics:   m,
		now:       time.Now,
		generate:  GenerateReferralCode,
	}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GenerateUserReferralCode возвращает код пользователя, создавая его при первом обращении.
func (s *Service) GenerateUserReferralCode(ctx context.Context, userID string) (*models.ReferralCode, error) {
	const op = "referral.GenerateUserReferralCode"
	code, err := s.userCode(ctx, userID)
	s.metrics.Referral("generate_code", metrics.Result(err, false))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return code, nil
}

func (s *Service) userCode(ctx context.Context, userID string) (*models.ReferralCode, error) {
	existing, err := s.repo.GetCodeByUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	for range maxCodeAttempts {
		now := s.now()
		code := models.ReferralCode{Code: s.generate(userID, now), UserID: userID, CreatedAt: now}
		err := s.repo.CreateCode(ctx, code)
		if err == nil {
			s.log.Info("referral code created", slog.String("user_id", userID), slog.String("code", code.Code))
			return &code, nil
		}
		if !errors.Is(err, models.ErrDuplicate) {
			return nil, err
		}
		// код мог появиться у пользователя в параллельном запросе
		if existing, err := s.repo.GetCodeByUser(ctx, userID); err == nil {
			return existing, nil
		}
	}
	return nil, ErrCodeAllocation
}

// ValidateReferralCode проверяет формат кода.
func (s *Service) ValidateReferralCode(code string) bool {
	return ValidateReferralCode(code)
}

// ProcessReferral регистрирует приглашение при регистрации приглашённого.
func (s *Service) ProcessReferral(ctx context.Context, code, referredUserID string) (*models.Referral, error) {
	const op = "referral.ProcessReferral"
	r, err := s.processReferral(ctx, code, referredUserID)
	s.metrics.Referral("process", metrics.Result(err, i18n.IsExpected(err)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("referral registered",
		slog.String("referral_id", r.ID),
		slog.String("referrer_id", r.ReferrerID),
		slog.String("referred_id", r.ReferredID),
	)
	return r, nil
}

func (s *Service) processReferral(ctx context.Context, code, referredUserID string) (*models.Referral, error) {
	if !ValidateReferralCode(code) {
		return nil, models.ErrInvalidReferralCode
	}
	owner, err := s.repo.GetCode(ctx, code)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrReferralCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	r, err := models.NewReferral(owner.UserID, referredUserID, code, s.opts.RewardDays, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateReferral(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ClaimReferralReward завершает приглашение после первой покупки приглашённого
// и начисляет пригласившему бонусные дни. Запись завершается ровно один раз.
// Без оплаченной подписки у приглашённого возвращается models.ErrPurchaseRequired,
// запись остаётся pending.
// Если начислить не удалось, результат содержит RewardGranted=false,
// и начисление повторит RetryUnclaimedRewards с тем же ключом.
func (s *Service) ClaimReferralReward(ctx context.Context, code, referredUserID string) (*models.ClaimResult, error) {
	const op = "referral.ClaimReferralReward"
	if !ValidateReferralCode(code) {
		s.metrics.Referral("claim", metrics.ResultRejected)
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidReferralCode)
	}
	r, err := s.complete(ctx, code, referredUserID)
	s.metrics.Referral("claim", metrics.Result(err, i18n.IsExpected(err)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	granted := s.grant(ctx, r)
	return &models.ClaimResult{Referral: r, RewardDays: r.RewardDays, RewardGranted: granted}, nil
}

func (s *Service) complete(ctx context.Context, code, referredUserID string) (*models.Referral, error) {
	paid, err := s.purchases.HasActivePurchase(ctx, referredUserID)
	if err != nil {
		return nil, err
	}
	if !paid {
		return nil, models.ErrPurchaseRequired
	}
	return s.repo.CompleteReferral(ctx, code, referredUserID, s.now())
}

// grant начисляет награду с повторами и уведомляет пригласившего.
func (s *Service) grant(ctx context.Context, r *models.Referral) bool {
	log := s.log.With(
		slog.String("referral_id", r.ID),
		slog.String("referrer_id", r.ReferrerID),
	)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.opts.GrantRetries), ctx)

	err := backoff.Retry(func() error {
		_, err := s.granter.AddReferralRewardDays(ctx, r.ReferrerID, r.RewardDays, r.GrantKey())
		if errors.Is(err, models.ErrNoSubscription) || errors.Is(err, models.ErrInvalidRewardDays) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		s.metrics.Referral("grant", metrics.ResultError)
		log.Warn("referral reward not granted", sl.Err(err))
		if err := s.repo.RecordGrantFailure(ctx, r.ID, s.now()); err != nil {
			log.Warn("failed to record grant attempt", sl.Err(err))
		}
		return false
	}
	s.metrics.Referral("grant", metrics.ResultOK)

	if err := s.repo.MarkRewardClaimed(ctx, r.ID); err != nil {
		log.Warn("failed to mark reward claimed", sl.Err(err))
	} else {
		r.RewardClaimed = true
	}
	s.notifyReferrer(ctx, r)
	log.Info("referral reward granted", slog.Int("days", r.RewardDays))
	return true
}

func (s *Service) notifyReferrer(ctx context.Context, r *models.Referral) {
	n := models.Notification{
		UserID:  r.ReferrerID,
		Title:   s.tr.Sprintf(s.opts.Locale, i18n.KeyReferralNotificationTitle),
		Message: s.tr.Sprintf(s.opts.Locale, i18n.KeyReferralNotificationBody, r.RewardDays),
		Channel: models.ChannelReferral,
		Data: map[string]any{
			"type":       "referral_reward",
			"referralId": r.ID,
			"rewardDays": r.RewardDays,
		},
	}
	// повторное начисление после сбоя MarkRewardClaimed не должно уведомлять ещё раз
	if _, err := s.notifier.DispatchOnce(ctx, NotificationKind, r.ID, 0, n); err != nil {
		s.log.Warn("failed to dispatch referral notification", slog.String("referral_id", r.ID), sl.Err(err))
	}
}

// GetUserReferralStats сводка приглашений пользователя.
func (s *Service) GetUserReferralStats(ctx context.Context, userID string) (*models.ReferralStats, error) {
	const op = "referral.GetUserReferralStats"
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &stats, nil
}

// RetryUnclaimedRewards повторяет начисление по завершённым записям без награды.
// Возвращает число записей, по которым награда начислена.
func (s *Service) RetryUnclaimedRewards(ctx context.Context, limit int) (int, error) {
	const op = "referral.RetryUnclaimedRewards"
	pending, err := s.repo.ListUnclaimed(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	granted := 0
	for _, r := range pending {
		if ctx.Err() != nil {
			return granted, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		if s.grant(ctx, r) {
			granted++
		}
	}
	return granted, nil
}

// ExpireStaleReferrals закрывает ожидающие записи старше PendingTTL.
func (s *Service) ExpireStaleReferrals(ctx context.Context) (int, error) {
	const op = "referral.ExpireStaleReferrals"
	if s.opts.PendingTTL <= 0 {
		return 0, nil
	}
	n, err := s.repo.ExpirePending(ctx, s.now().Add(-s.opts.PendingTTL))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
