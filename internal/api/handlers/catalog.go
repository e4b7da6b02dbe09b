package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/celebrum-catalog/internal/cache"
	"github.com/irfndi/celebrum-catalog/internal/models"
)

// SpotCoinProvider serves the cached candidate coin list.
type SpotCoinProvider interface {
	GetOrRefresh(ctx context.Context) ([]models.CandidateCoin, error)
	Invalidate(ctx context.Context) error
	CachedAt(ctx context.Context) (time.Time, bool)
	Stats() cache.Stats
}

// TradingPairReconciler rewrites the catalog's trading pairs.
type TradingPairReconciler interface {
	ReconcileTradingPairs(ctx context.Context) ([]models.Coin, error)
}

// CatalogHandler handles candidate coin and reconciliation endpoints
type CatalogHandler struct {
	spotCoins  SpotCoinProvider
	reconciler TradingPairReconciler
}

func NewCatalogHandler(spotCoins SpotCoinProvider, reconciler TradingPairReconciler) *CatalogHandler {
	return &CatalogHandler{
		spotCoins:  spotCoins,
		reconciler: reconciler,
	}
}

// GetSpotCoins returns the active spot coins merged across exchanges
// @Summary Get active spot coins
// @Tags catalog
// @Produce json
// @Router /api/v1/spot-coins [get]
func (h *CatalogHandler) GetSpotCoins(c *gin.Context) {
	coins, err := h.spotCoins.GetOrRefresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, coins)
}

// InvalidateSpotCoins drops the cached spot coin list
// @Summary Invalidate the spot coin cache
// @Tags catalog
// @Router /api/v1/spot-coins/invalidate [post]
func (h *CatalogHandler) InvalidateSpotCoins(c *gin.Context) {
	if err := h.spotCoins.Invalidate(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"invalidated": true})
}

// GetSpotCoinCacheStats reports cache counters and the age of the cached list.
// cached_at is null when nothing is cached.
func (h *CatalogHandler) GetSpotCoinCacheStats(c *gin.Context) {
	stats := h.spotCoins.Stats()
	var cachedAt *time.Time
	if at, ok := h.spotCoins.CachedAt(c.Request.Context()); ok {
		cachedAt = &at
	}
	respondData(c, http.StatusOK, gin.H{
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"sets":      stats.Sets,
		"failures":  stats.Failures,
		"hit_rate":  stats.HitRate(),
		"cached_at": cachedAt,
	})
}

// ReconcileTradingPairs runs a catalog reconciliation
// @Summary Reconcile trading pairs
// @Tags catalog
// @Produce json
// @Router /api/v1/catalog/reconcile [post]
func (h *CatalogHandler) ReconcileTradingPairs(c *gin.Context) {
	coins, err := h.reconciler.ReconcileTradingPairs(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, coins)
}
