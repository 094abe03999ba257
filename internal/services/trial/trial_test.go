package trial

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talepify/entitlement-service/internal/kvstore"
	"github.com/talepify/entitlement-service/internal/lib/lock"
	"github.com/talepify/entitlement-service/internal/models"
)

const phone = "+905551234567"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newService(t *testing.T) (*Service, *clock, kvstore.Store) {
	t.Helper()
	c := &clock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	store := kvstore.NewMemory()
	svc := New(store, lock.NewMemory(), 7, newNoopLogger(), nil).WithClock(c.Now)
	return svc, c, store
}

func TestStartTrial(t *testing.T) {
	ctx := context.Background()
	svc, c, _ := newService(t)

	res, err := svc.StartTrial(ctx, "inst-1", phone)
	require.NoError(t, err)
	assert.True(t, res.CanUseTrial)
	require.NotNil(t, res.Trial)
	assert.True(t, res.Trial.IsActive)
	assert.Equal(t, models.TrialStatusActive, res.Trial.Status)
	assert.Equal(t, c.Now(), res.Trial.StartDate)
	assert.Equal(t, c.Now().Add(7*24*time.Hour), res.Trial.EndDate)
}

func TestStartTrial_SecondCallKeepsDates(t *testing.T) {
	ctx := context.Background()
	svc, c, _ := newService(t)

	first, err := svc.StartTrial(ctx, "inst-1", phone)
	require.NoError(t, err)

	c.Advance(3 * time.Hour)
	second, err := svc.StartTrial(ctx, "inst-1", phone)
	require.ErrorIs(t, err, models.ErrTrialAlreadyUsed)
	require.NotNil(t, second)
	assert.False(t, second.CanUseTrial)

	status, err := svc.GetTrialStatus(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, first.Trial.StartDate, status.Trial.StartDate)
	assert.Equal(t, first.Trial.EndDate, status.Trial.EndDate)
}

func TestStartTrial_PhoneBannedAcrossInstallations(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	_, err := svc.StartTrial(ctx, "inst-1", phone)
	require.NoError(t, err)

	_, err = svc.StartTrial(ctx, "inst-2", " "+phone+" ")
	assert.ErrorIs(t, err, models.ErrTrialAlreadyUsed)

	status, err := svc.GetTrialStatus(ctx, "inst-2")
	require.NoError(t, err)
	assert.False(t, status.HasTrial)
}

func TestStartTrial_EmptyPhone(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.StartTrial(context.Background(), "inst-1", "   ")
	assert.ErrorIs(t, err, models.ErrInvalidPhone)
}

func TestGetTrialStatus_NoTrial(t *testing.T) {
	svc, _, _ := newService(t)
	status, err := svc.GetTrialStatus(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, &models.TrialStatusView{}, status)
}

func TestGetTrialStatus_Countdown(t *testing.T) {
	ctx := context.Background()
	svc, c, _ := newService(t)
	_, err := svc.StartTrial(ctx, "inst-1", phone)
	require.NoError(t, err)

	tests := []struct {
		name       string
		advance    time.Duration
		wantDays   int
		wantActive bool
	}{
		{"сразу после старта", 0, 7, true},
		{"через час", time.Hour, 7, true},
		{"через сутки", 23 * time.Hour, 6, true},
		{"за минуту до конца", 6*24*time.Hour - time.Minute, 1, true},
		{"ровно в момент окончания", time.Minute, 0, false},
		{"после окончания", 48 * time.Hour, 0, false},
	}

	prev := 8
	for _, tt := range tests {
		c.Advance(tt.advance)
		status, err := svc.GetTrialStatus(ctx, "inst-1")
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.wantDays, status.DaysRemaining, tt.name)
		assert.Equal(t, tt.wantActive, status.IsActive, tt.name)
		assert.Equal(t, status.DaysRemaining > 0, status.IsActive, tt.name)
		assert.False(t, status.CanUseTrial, tt.name)
		assert.LessOrEqual(t, status.DaysRemaining, prev, tt.name)
		prev = status.DaysRemaining
	}
}

func TestTrialExhaustion(t *testing.T) {
	ctx := context.Background()
	svc, c, _ := newService(t)

	_, err := svc.StartTrial(ctx, "inst-1", phone)
	require.NoError(t, err)

	c.Advance(8 * 24 * time.Hour)
	status, err := svc.GetTrialStatus(ctx, "inst-1")
	require.NoError(t, err)
	assert.True(t, status.HasTrial)
	assert.False(t, status.IsActive)
	assert.Equal(t, 0, status.DaysRemaining)
}

func TestEndTrial_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	require.NoError(t, svc.EndTrial(ctx, "inst-1"), "без пробного периода")

	_, err := svc.StartTrial(ctx, "inst-1", phone)
	require.NoError(t, err)

	for range 2 {
		require.NoError(t, svc.EndTrial(ctx, "inst-1"))
		status, err := svc.GetTrialStatus(ctx, "inst-1")
		require.NoError(t, err)
		assert.Equal(t, models.TrialStatusExpired, status.Trial.Status)
		assert.False(t, status.IsActive)
	}
}

func TestCanUseTrial(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	ok, err := svc.CanUseTrial(ctx, phone)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.StartTrial(ctx, "inst-1", phone)
	require.NoError(t, err)

	ok, err = svc.CanUseTrial(ctx, phone)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.CanUseTrial(ctx, "")
	assert.ErrorIs(t, err, models.ErrInvalidPhone)
}

func TestCheckTrialExpiry(t *testing.T) {
	ctx := context.Background()
	svc, c, _ := newService(t)

	check, err := svc.CheckTrialExpiry(ctx, "inst-1")
	require.NoError(t, err)
	assert.False(t, check.Expired)

	_, err = svc.StartTrial(ctx, "inst-1", phone)
	require.NoError(t, err)

	c.Advance(2 * 24 * time.Hour)
	check, err = svc.CheckTrialExpiry(ctx, "inst-1")
	require.NoError(t, err)
	assert.False(t, check.Expired)
	assert.Equal(t, 5, check.DaysRemaining)

	c.Advance(5 * 24 * time.Hour)
	check, err = svc.CheckTrialExpiry(ctx, "inst-1")
	require.NoError(t, err)
	assert.True(t, check.Expired)
	assert.NotEmpty(t, check.MessageKey)

	status, err := svc.GetTrialStatus(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, models.TrialStatusExpired, status.Trial.Status)
}

func TestClearTrialData_KeepsPhoneBan(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newService(t)

	_, err := svc.StartTrial(ctx, "inst-1", phone)
	require.NoError(t, err)
	require.NoError(t, svc.ClearTrialData(ctx, "inst-1"))

	status, err := svc.GetTrialStatus(ctx, "inst-1")
	require.NoError(t, err)
	assert.False(t, status.HasTrial)

	_, ok, err := store.Get(ctx, kvstore.KeyTrialPhoneNumbers)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.StartTrial(ctx, "inst-1", phone)
	assert.ErrorIs(t, err, models.ErrTrialAlreadyUsed)
}

func TestStartTrial_ConcurrentDoubleTap(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.StartTrial(ctx, "inst-1", phone)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	started := 0
	for err := range results {
		if err == nil {
			started++
			continue
		}
		assert.ErrorIs(t, err, models.ErrTrialAlreadyUsed)
	}
	assert.Equal(t, 1, started)
}

func TestService_RedisBackend(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := New(kvstore.NewRedis(client), lock.NewRedis(client, 5*time.Second), 7, newNoopLogger(), nil)

	_, err := svc.StartTrial(ctx, "inst-1", phone)
	require.NoError(t, err)

	assert.True(t, mr.Exists("installation:inst-1:trial_status"))
	assert.True(t, mr.Exists("trial_phone_numbers"))

	status, err := svc.GetTrialStatus(ctx, "inst-1")
	require.NoError(t, err)
	assert.True(t, status.IsActive)
	assert.Equal(t, 7, status.DaysRemaining)
}
