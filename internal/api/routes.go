package api

import (
	"github.com/gin-gonic/gin"
	"github.com/irfndi/celebrum-catalog/internal/api/handlers"
)

// Handlers groups every handler the router serves.
type Handlers struct {
	Health     *handlers.HealthHandler
	Catalog    *handlers.CatalogHandler
	Klines     *handlers.KlineHandler
	MarketData *handlers.MarketDataHandler
	Exchanges  *handlers.ExchangeHandler
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", h.Health.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		spotCoins := v1.Group("/spot-coins")
		{
			spotCoins.GET("", h.Catalog.GetSpotCoins)
			spotCoins.POST("/invalidate", h.Catalog.InvalidateSpotCoins)
			spotCoins.GET("/stats", h.Catalog.GetSpotCoinCacheStats)
		}

		v1.POST("/catalog/reconcile", h.Catalog.ReconcileTradingPairs)

		klines := v1.Group("/klines")
		{
			klines.POST("/batch", h.Klines.GetBatchKlines)
			klines.POST("/pair", h.Klines.GetPairKlines)
			klines.GET("/history/:trading_pair_id", h.Klines.GetKlineHistory)
		}

		v1.POST("/market-data/refresh", h.MarketData.RefreshMarketData)
		v1.POST("/price-history/sync", h.MarketData.SyncPriceHistory)

		breakers := v1.Group("/exchanges/breakers")
		{
			breakers.GET("", h.Exchanges.GetBreakers)
			breakers.POST("/:exchange/reset", h.Exchanges.ResetBreakers)
		}
	}
}
