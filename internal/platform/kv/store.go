// Package kv is the key-value store injected into services that cache
// upstream data or persist per-session state.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key does not exist or has expired.
var ErrMiss = errors.New("kv: miss")

// Store is the minimal contract every consumer depends on. A zero ttl keeps
// the value until it is deleted.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// Index tracks keys by a numeric score so old entries can be swept.
type Index interface {
	Track(ctx context.Context, set, member string, score int64) error
	Older(ctx context.Context, set string, before int64) ([]string, error)
	Untrack(ctx context.Context, set string, members ...string) error
}

// RedisStore implements Store and Index on go-redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client. Every key is prefixed with prefix + ":" when prefix is set.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get %s: %w", key, err)
	}
	return raw, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("kv: set %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("kv: delete: %w", err)
	}
	return nil
}

// Incr implements Store.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	v, err := s.client.Incr(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: incr %s: %w", key, err)
	}
	return v, nil
}

// Track implements Index.
func (s *RedisStore) Track(ctx context.Context, set, member string, score int64) error {
	return s.client.ZAdd(ctx, s.key(set), redis.Z{Score: float64(score), Member: member}).Err()
}

// Older implements Index, returning members scored strictly below before.
func (s *RedisStore) Older(ctx context.Context, set string, before int64) ([]string, error) {
	return s.client.ZRangeByScore(ctx, s.key(set), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before, 10),
	}).Result()
}

// Untrack implements Index.
func (s *RedisStore) Untrack(ctx context.Context, set string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.client.ZRem(ctx, s.key(set), args...).Err()
}
