package models

import (
	"time"

	"github.com/talepify/entitlement-service/internal/lib/days"
)

// TrialStatus статус пробного периода.
type TrialStatus string

const (
	TrialStatusActive  TrialStatus = "active"
	TrialStatusExpired TrialStatus = "expired"
)

// TrialState единственная запись о пробном периоде установки приложения.
// Хранится в ключе trial_status и перезаписывается целиком.
type TrialState struct {
	IsActive    bool        `json:"isActive"`
	StartDate   time.Time   `json:"startDate"`
	EndDate     time.Time   `json:"endDate"`
	PhoneNumber string      `json:"phoneNumber"`
	Status      TrialStatus `json:"status"`
}

// NewTrialState создаёт активный пробный период длиной trialDays суток, начиная с now.
func NewTrialState(phone string, now time.Time, trialDays int) TrialState {
	return TrialState{
		IsActive:    true,
		StartDate:   now,
		EndDate:     days.Add(now, trialDays),
		PhoneNumber: phone,
		Status:      TrialStatusActive,
	}
}

// DaysRemaining остаток в сутках, округлённый вверх и не меньше нуля.
func (t TrialState) DaysRemaining(now time.Time) int {
	return days.Remaining(t.EndDate, now)
}

// Expire переводит пробный период в статус expired.
func (t *TrialState) Expire() {
	t.IsActive = false
	t.Status = TrialStatusExpired
}

// TrialStatusView проекция для клиента, которую возвращает GetTrialStatus.
type TrialStatusView struct {
	HasTrial      bool        `json:"hasTrial"`
	IsActive      bool        `json:"isActive"`
	DaysRemaining int         `json:"daysRemaining"`
	CanUseTrial   bool        `json:"canUseTrial"`
	Trial         *TrialState `json:"trialData,omitempty"`
}

// TrialExpiryCheck результат CheckTrialExpiry.
type TrialExpiryCheck struct {
	Expired       bool   `json:"expired"`
	DaysRemaining int    `json:"daysRemaining"`
	MessageKey    string `json:"-"`
}
