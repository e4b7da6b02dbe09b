package services

import (
	"context"
	"time"

	"github.com/irfndi/celebrum-catalog/internal/cache"
	"github.com/irfndi/celebrum-catalog/internal/logging"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/sirupsen/logrus"
)

// SpotCoinsCacheKey is the fixed key for the full active spot coin list.
const SpotCoinsCacheKey = "spot_coins:active"

// SpotCoinCache memoizes the aggregator output. Concurrent callers during a
// refresh share one aggregation.
type SpotCoinCache struct {
	source SpotCoinSource
	store  cache.Store[[]models.CandidateCoin]
	ttl    time.Duration
	logger *logrus.Entry
}

func NewSpotCoinCache(source SpotCoinSource, store cache.Store[[]models.CandidateCoin], ttl time.Duration, logger *logrus.Logger) *SpotCoinCache {
	return &SpotCoinCache{
		source: source,
		store:  store,
		ttl:    ttl,
		logger: logging.ForComponent(logger, "spot_coin_cache"),
	}
}

// GetOrRefresh returns the cached candidate list, aggregating on a miss.
// Failed aggregations are not cached.
func (c *SpotCoinCache) GetOrRefresh(ctx context.Context) ([]models.CandidateCoin, error) {
	return c.store.GetOrCreate(ctx, SpotCoinsCacheKey, func(ctx context.Context) ([]models.CandidateCoin, error) {
		c.logger.WithField(logging.FieldOperation, "GetOrRefresh").Debug("Refreshing active spot coins")
		return c.source.GetActiveSpotCoins(ctx)
	}, c.ttl)
}

// Invalidate drops the cached list so the next call aggregates again.
func (c *SpotCoinCache) Invalidate(ctx context.Context) error {
	return c.store.Invalidate(ctx, SpotCoinsCacheKey)
}

// CachedAt reports when the cached list was aggregated.
func (c *SpotCoinCache) CachedAt(ctx context.Context) (time.Time, bool) {
	return c.store.CachedAt(ctx, SpotCoinsCacheKey)
}

func (c *SpotCoinCache) Stats() cache.Stats {
	return c.store.Stats()
}
