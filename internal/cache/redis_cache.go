package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const defaultRedisPrefix = "catalog_cache:"

// RedisCacheEntry is the JSON document stored under each key.
type RedisCacheEntry[T any] struct {
	Value    T         `json:"value"`
	CachedAt time.Time `json:"cached_at"`
}

// RedisCache is a Store backed by Redis. Single-flight protection is per
// process; Redis errors on read are treated as misses so the cache never
// blocks a computation. A computation that overlaps a local Invalidate of its
// key is not written.
type RedisCache[T any] struct {
	redis  *redis.Client
	prefix string
	group  singleflight.Group
	stats  statsCounter
	logger *logrus.Entry

	genMu       sync.Mutex
	generations map[string]uint64
}

func NewRedisCache[T any](client *redis.Client, logger *logrus.Logger) *RedisCache[T] {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisCache[T]{
		redis:       client,
		prefix:      defaultRedisPrefix,
		logger:      logger.WithField("component", "redis_cache"),
		generations: make(map[string]uint64),
	}
}

func (c *RedisCache[T]) GetOrCreate(ctx context.Context, key string, factory Factory[T], ttl time.Duration) (T, error) {
	if entry, ok := c.get(ctx, key); ok {
		c.stats.hit()
		return entry.Value, nil
	}
	c.stats.miss()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		flightCtx := context.WithoutCancel(ctx)
		if entry, ok := c.get(flightCtx, key); ok {
			return entry.Value, nil
		}
		c.genMu.Lock()
		generation := c.generations[key]
		c.genMu.Unlock()

		value, err := factory(flightCtx)
		if err != nil {
			c.stats.failure()
			return nil, err
		}
		c.set(flightCtx, key, value, ttl, generation)
		return value, nil
	})
	return awaitFlight[T](ctx, ch)
}

// CachedAt reports when the stored entry for key was computed.
func (c *RedisCache[T]) CachedAt(ctx context.Context, key string) (time.Time, bool) {
	entry, ok := c.get(ctx, key)
	if !ok {
		return time.Time{}, false
	}
	return entry.CachedAt, true
}

func (c *RedisCache[T]) Invalidate(ctx context.Context, key string) error {
	c.genMu.Lock()
	c.generations[key]++
	c.genMu.Unlock()
	c.group.Forget(key)
	if err := c.redis.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache key %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache[T]) Stats() Stats {
	return c.stats.snapshot()
}

func (c *RedisCache[T]) get(ctx context.Context, key string) (RedisCacheEntry[T], bool) {
	var entry RedisCacheEntry[T]

	data, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return entry, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Redis error reading cache entry")
		return entry, false
	}

	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Discarding undecodable cache entry")
		return entry, false
	}
	return entry, true
}

// set holds genMu across the write so an Invalidate either prevents it or
// deletes what it wrote.
func (c *RedisCache[T]) set(ctx context.Context, key string, value T, ttl time.Duration, generation uint64) {
	data, err := json.Marshal(RedisCacheEntry[T]{Value: value, CachedAt: time.Now().UTC()})
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to encode cache entry")
		return
	}

	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.generations[key] != generation {
		c.logger.WithField("key", key).Debug("Discarding value computed before invalidation")
		return
	}
	if err := c.redis.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Redis error writing cache entry")
		return
	}
	c.stats.set()
	c.logger.WithFields(logrus.Fields{"key": key, "ttl": ttl.String()}).Debug("Cached value")
}
