package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test"), mr
}

func TestStoreTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(got))
	assert.True(t, mr.Exists("test:a"))

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)

	_, err = store.Get(ctx, "b")
	assert.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "b"))
	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestIndexOlder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Track(ctx, "days", "k1", 10))
	require.NoError(t, store.Track(ctx, "days", "k2", 20))
	require.NoError(t, store.Track(ctx, "days", "k3", 30))

	older, err := store.Older(ctx, "days", 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, older)

	require.NoError(t, store.Untrack(ctx, "days", older...))
	older, err = store.Older(ctx, "days", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"k3"}, older)
}

func TestCacheFetchAndBump(t *testing.T) {
	store, _ := newTestStore(t)
	cache := NewCache(store, "sales")
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"n": calls}, nil
	}

	key, err := cache.BuildKey(ctx, "2025-04-01", "2025-04-03")
	require.NoError(t, err)
	assert.Equal(t, "sales:2025-04-01:2025-04-03:v1", key)

	var out map[string]int
	hit, err := cache.FetchJSON(ctx, key, time.Minute, &out, loader)
	require.NoError(t, err)
	assert.False(t, hit)
	hit, err = cache.FetchJSON(ctx, key, time.Minute, &out, loader)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)

	ver, err := cache.Bump(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ver)

	key, err = cache.BuildKey(ctx, "2025-04-01", "2025-04-03")
	require.NoError(t, err)
	_, err = cache.FetchJSON(ctx, key, time.Minute, &out, loader)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, out["n"])
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	store, _ := newTestStore(t)
	cache := NewCache(store, "sales")
	ctx := context.Background()
	boom := errors.New("boom")

	var out []int
	_, err := cache.FetchJSON(ctx, "k", time.Minute, &out, func(context.Context) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}
