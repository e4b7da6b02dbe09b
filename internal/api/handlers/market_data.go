package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/services"
)

type MarketDataRefresher interface {
	RefreshMarketData(ctx context.Context) ([]models.CoinMarketData, error)
}

type PriceHistorySyncer interface {
	SyncPriceHistory(ctx context.Context) (services.PriceHistorySyncResult, error)
}

// MarketDataHandler handles market snapshot and price history refreshes
type MarketDataHandler struct {
	refresher MarketDataRefresher
	syncer    PriceHistorySyncer
}

func NewMarketDataHandler(refresher MarketDataRefresher, syncer PriceHistorySyncer) *MarketDataHandler {
	return &MarketDataHandler{
		refresher: refresher,
		syncer:    syncer,
	}
}

// RefreshMarketData updates price, market cap and 24h change of catalog coins
// @Summary Refresh market data
// @Tags market-data
// @Produce json
// @Router /api/v1/market-data/refresh [post]
func (h *MarketDataHandler) RefreshMarketData(c *gin.Context) {
	updated, err := h.refresher.RefreshMarketData(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, updated)
}

// SyncPriceHistory pulls and stores candles for every catalog coin
// @Summary Sync price history
// @Tags market-data
// @Router /api/v1/price-history/sync [post]
func (h *MarketDataHandler) SyncPriceHistory(c *gin.Context) {
	result, err := h.syncer.SyncPriceHistory(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}
