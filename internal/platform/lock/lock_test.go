package lock

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithReleasesLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := New(client, time.Second)
	ctx := context.Background()
	key := SessionKey("s1")

	ran := false
	require.NoError(t, locker.With(ctx, key, func(context.Context) error {
		ran = true
		assert.True(t, mr.Exists(key))
		return nil
	}))
	assert.True(t, ran)
	assert.False(t, mr.Exists(key))
}

func TestWithReportsBusy(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := New(client, time.Minute)
	locker.wait = 100 * time.Millisecond
	ctx := context.Background()
	key := SessionKey("s1")

	err := locker.With(ctx, key, func(ctx context.Context) error {
		return locker.With(ctx, key, func(context.Context) error {
			t.Fatal("nested lock should not be obtained")
			return nil
		})
	})
	assert.ErrorIs(t, err, ErrBusy)
}

func TestNilLockerRunsInline(t *testing.T) {
	var locker *Locker
	called := false
	require.NoError(t, locker.With(context.Background(), "k", func(context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}
