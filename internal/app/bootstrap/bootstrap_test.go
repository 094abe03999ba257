package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talepify/entitlement-service/internal/cache"
	"github.com/talepify/entitlement-service/internal/config"
	"github.com/talepify/entitlement-service/internal/kvstore"
	"github.com/talepify/entitlement-service/internal/models"
	"github.com/talepify/entitlement-service/internal/notify"
	"github.com/talepify/entitlement-service/internal/storage/memory"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig() *config.Config {
	cfg := &config.Config{
		StorageDriver: config.StorageDriverMemory,
		Locale:        "tr-TR",
	}
	cfg.TrialDays = 7
	cfg.RenewalMode = config.RenewalFlagOnly
	cfg.RewardDays = 30
	cfg.GrantRetries = 1
	cfg.CacheTTL = time.Minute
	return cfg
}

func TestSetup_Memory(t *testing.T) {
	ctx := context.Background()
	in, err := Setup(ctx, memoryConfig(), Options{Broker: true}, newNoopLogger(), nil)
	require.NoError(t, err)
	defer in.Close()

	assert.IsType(t, &memory.Storage{}, in.Repo)
	assert.IsType(t, &kvstore.MemoryStore{}, in.Store)
	assert.IsType(t, cache.Noop{}, in.Cache)
	assert.IsType(t, &notify.LogDispatcher{}, in.Dispatcher)
	assert.Empty(t, in.Pingers)
}

func TestSetup_RedisAndServices(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.AddressRedis = mr.Addr()
	cfg.DialTimeout = time.Second
	cfg.TimeoutRedis = time.Second

	ctx := context.Background()
	in, err := Setup(ctx, cfg, Options{}, newNoopLogger(), nil)
	require.NoError(t, err)
	defer in.Close()

	assert.IsType(t, &kvstore.RedisStore{}, in.Store)
	require.Contains(t, in.Pingers, "redis")
	assert.NoError(t, in.Pingers["redis"].Ping(ctx))

	svc, err := in.NewServices(cfg, newNoopLogger(), nil)
	require.NoError(t, err)

	started, err := svc.Trial.StartTrial(ctx, "inst-1", "+905551112233")
	require.NoError(t, err)
	assert.True(t, started.CanUseTrial)
	assert.True(t, mr.Exists("installation:inst-1:trial_status"))

	sub, err := svc.Subscription.Purchase(ctx, "referrer", models.PlanMonthly, "card")
	require.NoError(t, err)

	code, err := svc.Referral.GenerateUserReferralCode(ctx, "referrer")
	require.NoError(t, err)
	_, err = svc.Referral.ProcessReferral(ctx, code.Code, "friend")
	require.NoError(t, err)
	_, err = svc.Referral.ClaimReferralReward(ctx, code.Code, "friend")
	require.ErrorIs(t, err, models.ErrPurchaseRequired)

	_, err = svc.Subscription.Purchase(ctx, "friend", models.PlanMonthly, "card")
	require.NoError(t, err)
	res, err := svc.Referral.ClaimReferralReward(ctx, code.Code, "friend")
	require.NoError(t, err)
	assert.True(t, res.RewardGranted)

	got, err := svc.Subscription.GetCurrentSubscription(ctx, "referrer")
	require.NoError(t, err)
	assert.True(t, sub.EndDate.Add(30*24*time.Hour).Equal(got.EndDate))
}

func TestNewServices_UnsupportedLocale(t *testing.T) {
	cfg := memoryConfig()
	cfg.Locale = "de-DE"
	in, err := Setup(context.Background(), cfg, Options{}, newNoopLogger(), nil)
	require.NoError(t, err)
	defer in.Close()

	_, err = in.NewServices(cfg, newNoopLogger(), nil)
	assert.Error(t, err)
}
