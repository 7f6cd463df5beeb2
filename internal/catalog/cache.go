package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a read-through cache holding a single value for ttl. Concurrent
// misses share one fetch. When a refresh fails and a previous value exists,
// the previous value is served and the failure is logged.
type Cache[T any] struct {
	fetch func(ctx context.Context) (T, error)
	ttl   time.Duration
	now   func() time.Time
	log   *slog.Logger
	group singleflight.Group

	mu        sync.RWMutex
	value     T
	loaded    bool
	fetchedAt time.Time
}

type CacheOption func(*cacheConfig)

type cacheConfig struct {
	now func() time.Time
	log *slog.Logger
}

func WithClock(now func() time.Time) CacheOption {
	return func(c *cacheConfig) { c.now = now }
}

func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *cacheConfig) { c.log = l }
}

func NewCache[T any](fetch func(ctx context.Context) (T, error), ttl time.Duration, opts ...CacheOption) (*Cache[T], error) {
	if fetch == nil {
		return nil, errors.New("catalog: fetch func must not be nil")
	}
	if ttl <= 0 {
		return nil, errors.New("catalog: ttl must be positive")
	}
	cfg := cacheConfig{now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Cache[T]{fetch: fetch, ttl: ttl, now: cfg.now, log: cfg.log}, nil
}

// Get returns the cached value, fetching it when missing or expired.
func (c *Cache[T]) Get(ctx context.Context) (T, error) {
	c.mu.RLock()
	if c.loaded && c.now().Sub(c.fetchedAt) < c.ttl {
		v := c.value
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	res, err, _ := c.group.Do("value", func() (any, error) {
		// The fetch outlives a single caller's cancellation since other
		// callers may be waiting on it.
		v, err := c.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.value, c.loaded, c.fetchedAt = v, true, c.now()
		c.mu.Unlock()
		return v, nil
	})
	if err == nil {
		return res.(T), nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loaded {
		c.log.Warn("catalog refresh failed, serving stale value", "age", c.now().Sub(c.fetchedAt).String(), "err", err)
		return c.value, nil
	}
	var zero T
	return zero, err
}
