package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const defaultL1TTL = 30 * time.Second

// MultiLevelCache reads from process memory first and then from redis. The
// redis level is optional and guarded by a circuit breaker; when it is down the
// cache degrades to memory only.
type MultiLevelCache struct {
	l1      *MemoryCache
	l2      *RedisCache
	breaker *CircuitBreaker
	metrics *CacheMetrics
	l1TTL   time.Duration
	log     *slog.Logger
}

func NewMultiLevelCache(redisCache *RedisCache, breaker *CircuitBreaker, log *slog.Logger) *MultiLevelCache {
	if breaker == nil {
		breaker = NewCircuitBreaker(nil)
	}
	if log == nil {
		log = slog.Default()
	}
	return &MultiLevelCache{
		l1:      NewMemoryCache(),
		l2:      redisCache,
		breaker: breaker,
		metrics: NewCacheMetrics(),
		l1TTL:   defaultL1TTL,
		log:     log.With("component", "cache"),
	}
}

func isMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	c.l1.Set(key, data, min(ttl, c.l1TTL))
	c.metrics.RecordSet()

	if c.l2 == nil {
		return nil
	}
	err = c.breaker.Execute(func() error {
		return c.l2.Set(ctx, key, json.RawMessage(data), ttl)
	})
	if err != nil {
		c.metrics.RecordError()
		c.log.WarnContext(ctx, "redis set failed", "key", key, "error", err)
	}
	return nil
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	if data, found := c.l1.Get(key); found {
		c.metrics.RecordL1Hit()
		return json.Unmarshal(data, dest)
	}

	if c.l2 == nil {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	var data []byte
	err := c.breaker.Execute(func() error {
		var getErr error
		data, getErr = c.l2.GetBytes(ctx, key)
		return getErr
	}, isMiss)
	if err != nil {
		if !isMiss(err) {
			c.metrics.RecordError()
			c.log.WarnContext(ctx, "redis get failed", "key", key, "error", err)
		}
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	c.metrics.RecordL2Hit()
	c.l1.Set(key, data, c.l1TTL)
	return nil
}

func (c *MultiLevelCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		c.l1.Delete(key)
		c.metrics.RecordDelete()
		if c.l2 == nil {
			continue
		}
		if err := c.breaker.Execute(func() error { return c.l2.Delete(ctx, key) }); err != nil {
			c.metrics.RecordError()
			return err
		}
	}
	return nil
}

func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	c.l1.DeletePattern(pattern)
	c.metrics.RecordDelete()

	if c.l2 == nil {
		return nil
	}
	if err := c.breaker.Execute(func() error { return c.l2.DeletePattern(ctx, pattern) }); err != nil {
		c.metrics.RecordError()
		return err
	}
	return nil
}

func (c *MultiLevelCache) Purge() int {
	return c.l1.Purge()
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 == nil {
		return nil
	}
	if c.breaker.GetState() == CircuitBreakerOpen {
		return ErrCacheDown
	}
	return c.l2.Health(ctx)
}

func (c *MultiLevelCache) Metrics() CacheMetrics {
	return c.metrics.Snapshot()
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1":       c.l1.Stats(),
		"metrics":  c.metrics.Snapshot(),
		"hit_rate": c.metrics.HitRate(),
		"breaker":  c.breaker.GetStats(),
	}
	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
	}
	return stats
}
