package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type memoryEntry[T any] struct {
	value     T
	cachedAt  time.Time
	expiresAt time.Time
}

// MemoryCache is an in-process Store. Failed computations are not cached.
// A computation that overlaps an Invalidate of its key is returned to its
// callers but not stored.
type MemoryCache[T any] struct {
	mu          sync.RWMutex
	entries     map[string]memoryEntry[T]
	generations map[string]uint64
	group       singleflight.Group
	stats       statsCounter
	now         func() time.Time
}

func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{
		entries:     make(map[string]memoryEntry[T]),
		generations: make(map[string]uint64),
		now:         time.Now,
	}
}

func (c *MemoryCache[T]) GetOrCreate(ctx context.Context, key string, factory Factory[T], ttl time.Duration) (T, error) {
	if value, ok := c.lookup(key); ok {
		c.stats.hit()
		return value, nil
	}
	c.stats.miss()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// A flight that finished just before this one started may have filled the entry.
		if value, ok := c.lookup(key); ok {
			return value, nil
		}
		generation := c.generation(key)
		value, err := factory(context.WithoutCancel(ctx))
		if err != nil {
			c.stats.failure()
			return nil, err
		}
		c.store(key, value, ttl, generation)
		return value, nil
	})
	return awaitFlight[T](ctx, ch)
}

// CachedAt reports when the entry for key was computed.
func (c *MemoryCache[T]) CachedAt(_ context.Context, key string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return time.Time{}, false
	}
	return entry.cachedAt, true
}

func (c *MemoryCache[T]) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.generations[key]++
	c.mu.Unlock()
	c.group.Forget(key)
	return nil
}

func (c *MemoryCache[T]) Stats() Stats {
	return c.stats.snapshot()
}

func (c *MemoryCache[T]) lookup(key string) (T, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expiresAt) {
		var zero T
		return zero, false
	}
	return entry.value, true
}

func (c *MemoryCache[T]) generation(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[key]
}

// store drops the value if the key was invalidated after generation was read.
func (c *MemoryCache[T]) store(key string, value T, ttl time.Duration, generation uint64) {
	now := c.now()
	c.mu.Lock()
	if c.generations[key] != generation {
		c.mu.Unlock()
		return
	}
	c.entries[key] = memoryEntry[T]{value: value, cachedAt: now, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
	c.stats.set()
}
