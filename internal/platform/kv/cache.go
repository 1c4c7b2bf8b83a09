package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cache layers a version counter and JSON encoding over a Store. Bumping the
// version orphans every key built before the bump; orphans age out by TTL.
type Cache struct {
	store      Store
	namespace  string
	versionKey string
}

// NewCache builds a cache scoped to namespace.
func NewCache(store Store, namespace string) *Cache {
	return &Cache{store: store, namespace: namespace, versionKey: namespace + ":version"}
}

// Version returns the current cache version, initialising it when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.store == nil {
		return 0, nil
	}
	raw, err := c.store.Get(ctx, c.versionKey)
	if errors.Is(err, ErrMiss) {
		if err := c.store.Set(ctx, c.versionKey, []byte("1"), 0); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	ver, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || ver <= 0 {
		if err := c.store.Set(ctx, c.versionKey, []byte("1"), 0); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return ver, nil
}

// BuildKey composes namespace, parts and the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	if c == nil {
		return strings.Join(parts, ":"), nil
	}
	joined := c.namespace + ":" + strings.Join(parts, ":")
	if c.store == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchJSON decodes the cached value into dest, or calls loader and stores
// its result for ttl. Loader errors are never cached.
func (c *Cache) FetchJSON(ctx context.Context, key string, ttl time.Duration, dest any, loader func(context.Context) (any, error)) (hit bool, err error) {
	if loader == nil {
		return false, errors.New("kv: loader required")
	}
	if c != nil && c.store != nil {
		payload, err := c.store.Get(ctx, key)
		if err == nil {
			return true, json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, ErrMiss) {
			return false, err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return false, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if c != nil && c.store != nil {
		if err := c.store.Set(ctx, key, raw, ttl); err != nil {
			return false, err
		}
	}
	return false, json.Unmarshal(raw, dest)
}

// Bump invalidates every key built so far.
func (c *Cache) Bump(ctx context.Context) (int64, error) {
	if c == nil || c.store == nil {
		return 0, nil
	}
	return c.store.Incr(ctx, c.versionKey)
}

// GetJSON reads and decodes key, returning ErrMiss when absent.
func GetJSON(ctx context.Context, store Store, key string, dest any) error {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// SetJSON encodes value and stores it under key for ttl.
func SetJSON(ctx context.Context, store Store, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, raw, ttl)
}
