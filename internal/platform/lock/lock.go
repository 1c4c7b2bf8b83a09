// Package lock serialises mutations that share a key across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned when the lock could not be obtained before the retry budget ran out.
var ErrBusy = errors.New("lock: busy")

// Locker hands out short-lived Redis locks.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// New builds a Locker. ttl bounds how long a crashed holder blocks others.
func New(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: redislock.New(client), ttl: ttl, wait: 5 * time.Second}
}

// SessionKey builds the lock key guarding one session's state.
func SessionKey(sessionID string) string {
	return fmt.Sprintf("lock:session:%s", sessionID)
}

// With runs fn while holding key.
func (l *Locker) With(ctx context.Context, key string, fn func(context.Context) error) error {
	if l == nil || l.client == nil {
		return fn(ctx)
	}
	backoff := redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), int(l.wait/(50*time.Millisecond)))
	held, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{RetryStrategy: backoff})
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("%w: %s", ErrBusy, key)
	}
	if err != nil {
		return fmt.Errorf("lock: obtain %s: %w", key, err)
	}
	defer func() {
		_ = held.Release(context.WithoutCancel(ctx))
	}()
	return fn(ctx)
}
