// Package models содержит доменные структуры сервиса: пробный период, тарифы,
// подписки, реферальные записи и уведомления. Производные признаки подписки
// (активность, остаток дней) вычисляются относительно переданного момента now,
// поэтому записи можно свободно восстанавливать из хранилища и кеша.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talepify/entitlement-service/internal/lib/days"
)

// SubscriptionStatus статус подписки.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionTrial     SubscriptionStatus = "trial"
)

// Transition допустимый переход статуса.
type Transition struct {
	From SubscriptionStatus
	To   SubscriptionStatus
}

// Из expired выхода нет: возобновление возможно только новой записью.
var validTransitions = map[Transition]bool{
	{SubscriptionPending, SubscriptionActive}:   true, // первая оплата
	{SubscriptionTrial, SubscriptionActive}:     true, // переход с пробного
	{SubscriptionActive, SubscriptionCancelled}: true, // отмена до конца периода
	{SubscriptionActive, SubscriptionExpired}:   true, // плановое истечение
	{SubscriptionCancelled, SubscriptionActive}: true, // повторное включение автопродления
}

// CanTransition проверяет переход from -> to.
func CanTransition(from, to SubscriptionStatus) bool {
	return validTransitions[Transition{From: from, To: to}]
}

// TransactionKind тип операции в истории подписки.
type TransactionKind string

const (
	TransactionPurchase       TransactionKind = "purchase"
	TransactionUpgrade        TransactionKind = "upgrade"
	TransactionReferralReward TransactionKind = "referral_reward"
	TransactionRenewal        TransactionKind = "renewal"
)

// Transaction запись истории подписки.
type Transaction struct {
	ID        string          `json:"id"`
	Kind      TransactionKind `json:"kind"`
	Amount    float64         `json:"amount"`
	Currency  string          `json:"currency,omitempty"`
	Days      int             `json:"days,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Subscription один экземпляр подписки пользователя.
type Subscription struct {
	ID            string             `json:"id"`
	UserID        string             `json:"userId"`
	PlanID        PlanID             `json:"planId"`
	Status        SubscriptionStatus `json:"status"`
	StartDate     time.Time          `json:"startDate"`
	EndDate       time.Time          `json:"endDate"`
	AutoRenew     bool               `json:"autoRenew"`
	PaymentMethod string             `json:"paymentMethod,omitempty"`
	Transactions  []Transaction      `json:"transactions"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// SubscriptionParams параметры конструктора. Если EndDate пустая,
// она выводится как StartDate + срок тарифа.
type SubscriptionParams struct {
	ID            string
	UserID        string
	PlanID        PlanID
	Status        SubscriptionStatus
	StartDate     time.Time
	EndDate       time.Time
	AutoRenew     bool
	PaymentMethod string
	Now           time.Time
}

// NewSubscription собирает запись подписки и проверяет тариф.
func NewSubscription(p SubscriptionParams) (*Subscription, error) {
	const op = "models.NewSubscription"
	plan, ok := LookupPlan(p.PlanID)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrUnknownPlan, p.PlanID)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = SubscriptionActive
	}
	if p.Now.IsZero() {
		p.Now = p.StartDate
	}
	end := p.EndDate
	if end.IsZero() {
		end = days.Add(p.StartDate, plan.Duration)
	}
	return &Subscription{
		ID:            p.ID,
		UserID:        p.UserID,
		PlanID:        p.PlanID,
		Status:        p.Status,
		StartDate:     p.StartDate,
		EndDate:       end,
		AutoRenew:     p.AutoRenew,
		PaymentMethod: p.PaymentMethod,
		Transactions:  []Transaction{},
		CreatedAt:     p.Now,
		UpdatedAt:     p.Now,
	}, nil
}

// Plan возвращает тариф из каталога. Для неизвестного тарифа ok=false.
func (s *Subscription) Plan() (Plan, bool) {
	return LookupPlan(s.PlanID)
}

// IsActive подписка оплачена и её период ещё не закончился.
func (s *Subscription) IsActive(now time.Time) bool {
	return s.Status == SubscriptionActive && now.Before(s.EndDate)
}

// IsPurchased период подписки ещё идёт и она была оплачена покупкой или повышением тарифа.
// Отменённая подписка остаётся оплаченной до даты окончания.
func (s *Subscription) IsPurchased(now time.Time) bool {
	if s.Status != SubscriptionActive && s.Status != SubscriptionCancelled {
		return false
	}
	if !now.Before(s.EndDate) {
		return false
	}
	for _, tx := range s.Transactions {
		if tx.Kind == TransactionPurchase || tx.Kind == TransactionUpgrade {
			return true
		}
	}
	return false
}

// IsExpired период подписки закончился, независимо от статуса.
func (s *Subscription) IsExpired(now time.Time) bool {
	return !now.Before(s.EndDate)
}

// DaysUntilExpiry остаток в сутках, округлённый вверх. Может быть отрицательным.
func (s *Subscription) DaysUntilExpiry(now time.Time) int {
	return days.Until(s.EndDate, now)
}

// CanUpgrade повышение возможно только с активной подписки ниже годовой.
func (s *Subscription) CanUpgrade(now time.Time) bool {
	return s.IsActive(now) && s.PlanID != PlanYearly
}

// CanDowngrade понижение возможно с активной подписки выше месячной.
func (s *Subscription) CanDowngrade(now time.Time) bool {
	return s.IsActive(now) && s.PlanID != PlanMonthly
}

// TransitionTo меняет статус, если переход разрешён.
func (s *Subscription) TransitionTo(to SubscriptionStatus, now time.Time) error {
	if s.Status == to {
		return nil
	}
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}

// ExtendDays добавляет дни к текущей дате окончания, а не к дате начала.
func (s *Subscription) ExtendDays(n int, kind TransactionKind, now time.Time) {
	s.EndDate = days.Add(s.EndDate, n)
	s.UpdatedAt = now
	s.AddTransaction(Transaction{Kind: kind, Days: n, CreatedAt: now})
}

// AddTransaction дописывает операцию в конец истории.
func (s *Subscription) AddTransaction(tx Transaction) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	s.Transactions = append(s.Transactions, tx)
}

// Clone глубокая копия, чтобы кеш и вызывающий код не делили историю операций.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.Transactions = append([]Transaction(nil), s.Transactions...)
	return &c
}

// ToJSON сериализует запись.
func (s *Subscription) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// SubscriptionFromJSON восстанавливает запись из ToJSON.
// Пустая дата окончания выводится из тарифа так же, как в NewSubscription.
func SubscriptionFromJSON(data []byte) (*Subscription, error) {
	const op = "models.SubscriptionFromJSON"
	var s Subscription
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.EndDate.IsZero() {
		plan, ok := s.Plan()
		if !ok {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrUnknownPlan, s.PlanID)
		}
		s.EndDate = days.Add(s.StartDate, plan.Duration)
	}
	if s.Transactions == nil {
		s.Transactions = []Transaction{}
	}
	return &s, nil
}

// SubscriptionSummary проекция для экрана подписки.
type SubscriptionSummary struct {
	HasSubscription bool   `json:"hasSubscription"`
	Plan            Plan   `json:"plan"`
	Status          string `json:"status"`
	DaysUntilExpiry int    `json:"daysUntilExpiry"`
	CanUpgrade      bool   `json:"canUpgrade"`
	CanDowngrade    bool   `json:"canDowngrade"`
}

// SubscriptionStatusNone статус в сводке, когда подписки нет.
const SubscriptionStatusNone = "none"

// ExpiringSubscription запись для напоминаний об окончании.
type ExpiringSubscription struct {
	SubscriptionID string    `json:"subscriptionId"`
	UserID         string    `json:"userId"`
	PlanID         PlanID    `json:"planId"`
	EndDate        time.Time `json:"endDate"`
}
