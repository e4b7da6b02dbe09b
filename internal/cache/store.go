package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type flightResult = singleflight.Result

// Factory computes the value for a key on a cache miss.
type Factory[T any] func(ctx context.Context) (T, error)

// Store caches computed values by key. Concurrent misses for the same key
// share a single factory call.
type Store[T any] interface {
	GetOrCreate(ctx context.Context, key string, factory Factory[T], ttl time.Duration) (T, error)
	Invalidate(ctx context.Context, key string) error
	CachedAt(ctx context.Context, key string) (time.Time, bool)
	Stats() Stats
}

// Stats tracks cache performance counters.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Sets     int64 `json:"sets"`
	Failures int64 `json:"failures"`
}

// HitRate returns hits as a percentage of lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

type statsCounter struct {
	mu    sync.RWMutex
	stats Stats
}

func (c *statsCounter) hit()     { c.add(func(s *Stats) { s.Hits++ }) }
func (c *statsCounter) miss()    { c.add(func(s *Stats) { s.Misses++ }) }
func (c *statsCounter) set()     { c.add(func(s *Stats) { s.Sets++ }) }
func (c *statsCounter) failure() { c.add(func(s *Stats) { s.Failures++ }) }

func (c *statsCounter) add(fn func(*Stats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

func (c *statsCounter) snapshot() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// awaitFlight waits for a shared computation, giving up early when the
// caller's context ends. The computation itself keeps running for the others.
func awaitFlight[T any](ctx context.Context, ch <-chan flightResult) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		value, _ := res.Val.(T)
		return value, nil
	}
}
