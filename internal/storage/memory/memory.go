// Package memory хранилище подписок и реферальных записей в памяти процесса.
// Используется при storage_driver=memory и в тестах сервисов.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/talepify/entitlement-service/internal/models"
)

type storedSubscription struct {
	sub *models.Subscription
	seq int
}

// Storage реализует репозитории подписок и рефералов.
type Storage struct {
	mu sync.Mutex

	seq           int
	subscriptions map[string]*storedSubscription // по ID
	grants        map[string]struct{}

	codes      map[string]models.ReferralCode // по коду
	userCodes  map[string]string              // пользователь -> код
	referrals  map[string]*models.Referral    // по ID
	referredBy map[string]string              // приглашённый -> ID записи
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		subscriptions: make(map[string]*storedSubscription),
		grants:        make(map[string]struct{}),
		codes:         make(map[string]models.ReferralCode),
		userCodes:     make(map[string]string),
		referrals:     make(map[string]*models.Referral),
		referredBy:    make(map[string]string),
	}
}

// ===== SUBSCRIPTIONS =====

func (s *Storage) GetCurrent(ctx context.Context, userID string) (*models.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *storedSubscription
	for _, st := range s.subscriptions {
		if st.sub.UserID != userID {
			continue
		}
		if latest == nil || st.sub.CreatedAt.After(latest.sub.CreatedAt) ||
			(st.sub.CreatedAt.Equal(latest.sub.CreatedAt) && st.seq > latest.seq) {
			latest = st
		}
	}
	if latest == nil {
		return nil, models.ErrNotFound
	}
	return latest.sub.Clone(), nil
}

func (s *Storage) Save(ctx context.Context, sub *models.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(sub)
	return nil
}

func (s *Storage) put(sub *models.Subscription) {
	if st, ok := s.subscriptions[sub.ID]; ok {
		st.sub = sub.Clone()
		return
	}
	s.seq++
	s.subscriptions[sub.ID] = &storedSubscription{sub: sub.Clone(), seq: s.seq}
}

func (s *Storage) Replace(ctx context.Context, prev, next *models.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(prev)
	s.put(next)
	return nil
}

func (s *Storage) ApplyReward(ctx context.Context, sub *models.Subscription, key string, _ int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if key != "" {
		if _, ok := s.grants[key]; ok {
			return false, nil
		}
		s.grants[key] = struct{}{}
	}
	s.put(sub)
	return true, nil
}

func (s *Storage) ListExpiring(ctx context.Context, from, to time.Time, limit int) ([]models.ExpiringSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ExpiringSubscription
	for _, st := range s.subscriptions {
		sub := st.sub
		if sub.Status != models.SubscriptionActive || sub.EndDate.Before(from) || !sub.EndDate.Before(to) {
			continue
		}
		out = append(out, models.ExpiringSubscription{
			SubscriptionID: sub.ID,
			UserID:         sub.UserID,
			PlanID:         sub.PlanID,
			EndDate:        sub.EndDate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Storage) ExpireOverdue(ctx context.Context, now time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []string
	for _, st := range s.subscriptions {
		if st.sub.Status == models.SubscriptionActive && !now.Before(st.sub.EndDate) {
			st.sub.Status = models.SubscriptionExpired
			st.sub.UpdatedAt = now
			users = append(users, st.sub.UserID)
		}
	}
	return users, nil
}

// ===== REFERRALS =====

func (s *Storage) CreateCode(ctx context.Context, code models.ReferralCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code.Code]; ok {
		return models.ErrDuplicate
	}
	if _, ok := s.userCodes[code.UserID]; ok {
		return models.ErrDuplicate
	}
	s.codes[code.Code] = code
	s.userCodes[code.UserID] = code.Code
	return nil
}

func (s *Storage) GetCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

func (s *Storage) GetCodeByUser(ctx context.Context, userID string) (*models.ReferralCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.userCodes[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := s.codes[code]
	return &c, nil
}

func (s *Storage) CreateReferral(ctx context.Context, r *models.Referral) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.referredBy[r.ReferredID]; ok {
		return models.ErrAlreadyReferred
	}
	c := *r
	s.referrals[r.ID] = &c
	s.referredBy[r.ReferredID] = r.ID
	return nil
}

func (s *Storage) CompleteReferral(ctx context.Context, code, referredID string, now time.Time) (*models.Referral, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.referredBy[referredID]
	if !ok {
		return nil, models.ErrReferralNotFound
	}
	r := s.referrals[id]
	if r.ReferralCode != code {
		return nil, models.ErrReferralNotFound
	}
	if err := r.Complete(now); err != nil {
		return nil, err
	}
	c := *r
	return &c, nil
}

func (s *Storage) MarkRewardClaimed(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.referrals[id]
	if !ok {
		return models.ErrReferralNotFound
	}
	return r.MarkRewardClaimed()
}

func (s *Storage) RecordGrantFailure(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.referrals[id]
	if !ok {
		return models.ErrReferralNotFound
	}
	r.GrantAttempts++
	r.LastGrantAttemptAt = &at
	return nil
}

func (s *Storage) Stats(ctx context.Context, referrerID string) (models.ReferralStats, error) {
	if err := ctx.Err(); err != nil {
		return models.ReferralStats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats models.ReferralStats
	for _, r := range s.referrals {
		if r.ReferrerID != referrerID {
			continue
		}
		stats.TotalReferrals++
		if r.Status == models.ReferralCompleted {
			stats.CompletedReferrals++
			stats.TotalRewardDays += r.RewardDays
		}
	}
	stats.ReferralCode = s.userCodes[referrerID]
	return stats, nil
}

func (s *Storage) ListUnclaimed(ctx context.Context, limit int) ([]*models.Referral, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Referral
	for _, r := range s.referrals {
		if r.Status == models.ReferralCompleted && !r.RewardClaimed {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return unclaimedLess(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// unclaimedLess порядок очереди повторов: без попыток, затем давняя попытка, затем старая запись.
func unclaimedLess(a, b *models.Referral) bool {
	switch {
	case a.LastGrantAttemptAt == nil && b.LastGrantAttemptAt != nil:
		return true
	case a.LastGrantAttemptAt != nil && b.LastGrantAttemptAt == nil:
		return false
	case a.LastGrantAttemptAt != nil && !a.LastGrantAttemptAt.Equal(*b.LastGrantAttemptAt):
		return a.LastGrantAttemptAt.Before(*b.LastGrantAttemptAt)
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (s *Storage) ExpirePending(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.referrals {
		if r.Status == models.ReferralPending && r.CreatedAt.Before(before) {
			r.Status = models.ReferralExpired
			n++
		}
	}
	return n, nil
}
