package kvstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client), mr
}

func stores(t *testing.T) map[string]Store {
	redisStore, _ := setupRedisStore(t)
	return map[string]Store{
		"memory": NewMemory(),
		"redis":  redisStore,
	}
}

func TestStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := store.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, store.Set(ctx, "k", `{"a":1}`))
			val, found, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `{"a":1}`, val)

			require.NoError(t, store.Remove(ctx, "k"))
			require.NoError(t, store.Remove(ctx, "k"))
			_, found, err = store.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestRedisStore_NoTTL(t *testing.T) {
	store, mr := setupRedisStore(t)
	require.NoError(t, store.Set(context.Background(), "persisted", "1"))
	assert.Zero(t, mr.TTL("persisted"))
}

func TestRedisStore_ConnectionError(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()

	_, _, err := store.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestScoped(t *testing.T) {
	ctx := context.Background()
	base := NewMemory()
	a := Scoped(base, InstallationPrefix("a"), KeyTrialPhoneNumbers)
	b := Scoped(base, InstallationPrefix("b"), KeyTrialPhoneNumbers)

	require.NoError(t, a.Set(ctx, KeyTrialStatus, "a-trial"))
	require.NoError(t, a.Set(ctx, KeyTrialPhoneNumbers, `["+90"]`))

	_, found, err := b.Get(ctx, KeyTrialStatus)
	require.NoError(t, err)
	assert.False(t, found, "trial slot must be per installation")

	phones, found, err := b.Get(ctx, KeyTrialPhoneNumbers)
	require.NoError(t, err)
	assert.True(t, found, "used phones must be shared")
	assert.Equal(t, `["+90"]`, phones)

	raw, found, err := base.Get(ctx, "installation:a:trial_status")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a-trial", raw)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, NewMemory().Set(ctx, "k", "v"))
}
