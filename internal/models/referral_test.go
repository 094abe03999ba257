package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReferral(t *testing.T) {
	_, err := NewReferral("u1", "u1", "CODE1234", 30, testNow)
	assert.ErrorIs(t, err, ErrSelfReferral)

	r, err := NewReferral("u1", "u2", "CODE1234", 0, testNow)
	require.NoError(t, err)
	assert.Equal(t, ReferralPending, r.Status)
	assert.Equal(t, DefaultRewardDays, r.RewardDays)
	assert.False(t, r.RewardClaimed)
	assert.Equal(t, "referral:"+r.ID, r.GrantKey())
}

func TestReferral_CompleteOnce(t *testing.T) {
	r, err := NewReferral("u1", "u2", "CODE1234", 30, testNow)
	require.NoError(t, err)

	require.ErrorIs(t, r.MarkRewardClaimed(), ErrRewardNotClaimable)

	at := testNow.Add(time.Hour)
	require.NoError(t, r.Complete(at))
	assert.Equal(t, ReferralCompleted, r.Status)
	assert.True(t, r.SubscriptionPurchased)
	require.NotNil(t, r.CompletedAt)
	assert.Equal(t, at, *r.CompletedAt)

	assert.ErrorIs(t, r.Complete(at), ErrReferralAlreadyCompleted)

	require.NoError(t, r.MarkRewardClaimed())
	assert.True(t, r.RewardClaimed)
}

func TestReferral_CompleteExpired(t *testing.T) {
	r, err := NewReferral("u1", "u2", "CODE1234", 30, testNow)
	require.NoError(t, err)
	r.Status = ReferralExpired

	assert.ErrorIs(t, r.Complete(testNow), ErrReferralExpired)
}

func TestTrialState(t *testing.T) {
	trial := NewTrialState("+905551234567", testNow, 7)
	assert.True(t, trial.IsActive)
	assert.Equal(t, TrialStatusActive, trial.Status)
	assert.Equal(t, 7, trial.DaysRemaining(testNow))
	assert.Equal(t, 0, trial.DaysRemaining(testNow.Add(8*24*time.Hour)))

	trial.Expire()
	assert.False(t, trial.IsActive)
	assert.Equal(t, TrialStatusExpired, trial.Status)
}
