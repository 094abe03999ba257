// Package trial одноразовый пробный период для установки приложения.
//
// Состояние хранится в kvstore: запись trial_status своя у каждой установки,
// список использованных номеров trial_phone_numbers общий и только растёт.
package trial

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/talepify/entitlement-service/internal/i18n"
	"github.com/talepify/entitlement-service/internal/kvstore"
	"github.com/talepify/entitlement-service/internal/lib/lock"
	"github.com/talepify/entitlement-service/internal/metrics"
	"github.com/talepify/entitlement-service/internal/models"
)

// StartResult результат StartTrial.
type StartResult struct {
	Trial       *models.TrialState `json:"trialData,omitempty"`
	CanUseTrial bool               `json:"canUseTrial"`
}

// Service управляет пробными периодами.
type Service struct {
	store     kvstore.Store
	locker    lock.Locker
	trialDays int
	log       *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New создаёт сервис. trialDays длина пробного периода в сутках.
func New(store kvstore.Store, locker lock.Locker, trialDays int, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:     store,
		locker:    locker,
		trialDays: trialDays,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// scope хранилище установки. Пустой идентификатор означает общий слот без префикса.
func (s *Service) scope(installationID string) *kvstore.ScopedStore {
	prefix := ""
	if installationID != "" {
		prefix = kvstore.InstallationPrefix(installationID)
	}
	return kvstore.Scoped(s.store, prefix, kvstore.KeyTrialPhoneNumbers)
}

// StartTrial запускает пробный период для номера телефона.
// Если номер уже использовался, состояние не меняется и возвращается ErrTrialAlreadyUsed.
func (s *Service) StartTrial(ctx context.Context, installationID, phone string) (*StartResult, error) {
	const op = "trial.StartTrial"
	res, err := s.startTrial(ctx, installationID, phone)
	s.metrics.Trial("start", metrics.Result(err, i18n.IsExpected(err)))
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func (s *Service) startTrial(ctx context.Context, installationID, phone string) (*StartResult, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return &StartResult{}, models.ErrInvalidPhone
	}
	store := s.scope(installationID)

	// порядок захвата: список номеров, затем слот установки
	unlockPhones, err := s.locker.Lock(ctx, store.Key(kvstore.KeyTrialPhoneNumbers))
	if err != nil {
		return nil, err
	}
	defer unlockPhones()
	unlockSlot, err := s.locker.Lock(ctx, store.Key(kvstore.KeyTrialStatus))
	if err != nil {
		return nil, err
	}
	defer unlockSlot()

	used, err := s.usedPhones(ctx, store)
	if err != nil {
		return nil, err
	}
	if slices.Contains(used, phone) {
		return &StartResult{CanUseTrial: false}, models.ErrTrialAlreadyUsed
	}

	state := models.NewTrialState(phone, s.now(), s.trialDays)
	if err := s.saveState(ctx, store, state); err != nil {
		return nil, err
	}
	data, err := json.Marshal(append(used, phone))
	if err != nil {
		return nil, err
	}
	if err := store.Set(ctx, kvstore.KeyTrialPhoneNumbers, string(data)); err != nil {
		return nil, err
	}

	s.log.Info("trial started",
		slog.String("installation_id", installationID),
		slog.Time("end_date", state.EndDate),
	)
	return &StartResult{Trial: &state, CanUseTrial: true}, nil
}

// GetTrialStatus текущее состояние пробного периода установки.
func (s *Service) GetTrialStatus(ctx context.Context, installationID string) (*models.TrialStatusView, error) {
	const op = "trial.GetTrialStatus"
	view, err := s.status(ctx, s.scope(installationID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return view, nil
}

func (s *Service) status(ctx context.Context, store kvstore.Store) (*models.TrialStatusView, error) {
	state, err := s.loadState(ctx, store)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &models.TrialStatusView{}, nil
	}
	remaining := state.DaysRemaining(s.now())
	// запись уже есть, значит номер свой пробный период израсходовал
	return &models.TrialStatusView{
		HasTrial:      true,
		IsActive:      state.IsActive && remaining > 0,
		DaysRemaining: remaining,
		CanUseTrial:   false,
		Trial:         state,
	}, nil
}

// EndTrial завершает пробный период. Повторный вызов и отсутствие записи ошибкой не считаются.
func (s *Service) EndTrial(ctx context.Context, installationID string) error {
	const op = "trial.EndTrial"
	store := s.scope(installationID)
	unlock, err := s.locker.Lock(ctx, store.Key(kvstore.KeyTrialStatus))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	err = s.endTrial(ctx, store)
	s.metrics.Trial("end", metrics.Result(err, false))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) endTrial(ctx context.Context, store kvstore.Store) error {
	state, err := s.loadState(ctx, store)
	if err != nil || state == nil {
		return err
	}
	state.Expire()
	return s.saveState(ctx, store, *state)
}

// CanUseTrial номер ещё не использовал пробный период.
func (s *Service) CanUseTrial(ctx context.Context, phone string) (bool, error) {
	const op = "trial.CanUseTrial"
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return false, fmt.Errorf("%s: %w", op, models.ErrInvalidPhone)
	}
	used, err := s.usedPhones(ctx, s.scope(""))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return !slices.Contains(used, phone), nil
}

// CheckTrialExpiry завершает пробный период, если дни закончились.
func (s *Service) CheckTrialExpiry(ctx context.Context, installationID string) (*models.TrialExpiryCheck, error) {
	const op = "trial.CheckTrialExpiry"
	store := s.scope(installationID)
	unlock, err := s.locker.Lock(ctx, store.Key(kvstore.KeyTrialStatus))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	view, err := s.status(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if view.HasTrial && view.DaysRemaining <= 0 {
		if err := s.endTrial(ctx, store); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.metrics.Trial("expire", metrics.ResultOK)
		return &models.TrialExpiryCheck{Expired: true, MessageKey: i18n.KeyTrialExpired}, nil
	}
	return &models.TrialExpiryCheck{DaysRemaining: view.DaysRemaining}, nil
}

// ClearTrialData удаляет запись пробного периода. Список номеров не трогается.
func (s *Service) ClearTrialData(ctx context.Context, installationID string) error {
	const op = "trial.ClearTrialData"
	store := s.scope(installationID)
	unlock, err := s.locker.Lock(ctx, store.Key(kvstore.KeyTrialStatus))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	if err := store.Remove(ctx, kvstore.KeyTrialStatus); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) loadState(ctx context.Context, store kvstore.Store) (*models.TrialState, error) {
	raw, ok, err := store.Get(ctx, kvstore.KeyTrialStatus)
	if err != nil || !ok {
		return nil, err
	}
	var state models.TrialState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode trial state: %w", err)
	}
	return &state, nil
}

func (s *Service) saveState(ctx context.Context, store kvstore.Store, state models.TrialState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return store.Set(ctx, kvstore.KeyTrialStatus, string(data))
}

func (s *Service) usedPhones(ctx context.Context, store kvstore.Store) ([]string, error) {
	raw, ok, err := store.Get(ctx, kvstore.KeyTrialPhoneNumbers)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []string{}, nil
	}
	var phones []string
	if err := json.Unmarshal([]byte(raw), &phones); err != nil {
		return nil, fmt.Errorf("decode used phone list: %w", err)
	}
	return phones, nil
}
