package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultRewardDays бонусные дни за одно успешное приглашение.
const DefaultRewardDays = 30

// ReferralStatus статус реферальной записи.
type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
	ReferralExpired   ReferralStatus = "expired"
)

// ReferralCode код приглашения, принадлежащий пользователю. У пользователя один код.
type ReferralCode struct {
	Code      string    `json:"code"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Referral связь пригласившего и приглашённого.
// pending -> completed ровно один раз, при первой покупке приглашённого.
type Referral struct {
	ID                    string         `json:"id"`
	ReferrerID            string         `json:"referrerId"`
	ReferredID            string         `json:"referredId"`
	ReferralCode          string         `json:"referralCode"`
	Status                ReferralStatus `json:"status"`
	RewardClaimed         bool           `json:"rewardClaimed"`
	SubscriptionPurchased bool           `json:"subscriptionPurchased"`
	CreatedAt             time.Time      `json:"createdAt"`
	CompletedAt           *time.Time     `json:"completedAt,omitempty"`
	RewardDays            int            `json:"rewardDays"`
	// GrantAttempts неудачные попытки начислить награду.
	GrantAttempts      int        `json:"grantAttempts"`
	LastGrantAttemptAt *time.Time `json:"lastGrantAttemptAt,omitempty"`
}

// NewReferral создаёт ожидающую запись. Самоприглашение запрещено.
func NewReferral(referrerID, referredID, code string, rewardDays int, now time.Time) (*Referral, error) {
	if referrerID == referredID {
		return nil, ErrSelfReferral
	}
	if rewardDays <= 0 {
		rewardDays = DefaultRewardDays
	}
	return &Referral{
		ID:           uuid.NewString(),
		ReferrerID:   referrerID,
		ReferredID:   referredID,
		ReferralCode: code,
		Status:       ReferralPending,
		CreatedAt:    now,
		RewardDays:   rewardDays,
	}, nil
}

// Complete переводит запись pending -> completed.
func (r *Referral) Complete(now time.Time) error {
	switch r.Status {
	case ReferralPending:
	case ReferralCompleted:
		return ErrReferralAlreadyCompleted
	case ReferralExpired:
		return ErrReferralExpired
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTransition, r.Status)
	}
	r.Status = ReferralCompleted
	r.CompletedAt = &now
	r.SubscriptionPurchased = true
	return nil
}

// MarkRewardClaimed отмечает выплату награды.
func (r *Referral) MarkRewardClaimed() error {
	if r.Status != ReferralCompleted {
		return ErrRewardNotClaimable
	}
	r.RewardClaimed = true
	return nil
}

// GrantKey ключ идемпотентности начисления бонусных дней по записи.
func (r *Referral) GrantKey() string {
	return "referral:" + r.ID
}

// ReferralStats сводка по приглашениям пользователя.
type ReferralStats struct {
	TotalReferrals     int    `json:"totalReferrals"`
	CompletedReferrals int    `json:"completedReferrals"`
	TotalRewardDays    int    `json:"totalRewardDays"`
	ReferralCode       string `json:"referralCode"`
}

// ClaimResult результат ClaimReferralReward. RewardGranted=false означает,
// что запись завершена, а дни будут начислены фоновым повтором.
type ClaimResult struct {
	Referral      *Referral `json:"referralRecord"`
	RewardDays    int       `json:"rewardDays"`
	RewardGranted bool      `json:"rewardGranted"`
}
