package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/irfndi/celebrum-catalog/internal/models"
)

// CatalogRepository is the persisted coin and trading-pair catalog.
type CatalogRepository interface {
	GetAllCoins(ctx context.Context) ([]models.Coin, error)
	GetCoinsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Coin, error)
	CreateQuoteCoins(ctx context.Context, requests []models.QuoteCoinCreateRequest) ([]models.Coin, error)
	// ReplaceTradingPairs makes requests the full pair set of every coin in
	// mainCoinIDs; listed coins without requests lose all of their pairs.
	ReplaceTradingPairs(ctx context.Context, mainCoinIDs []uuid.UUID, requests []models.TradingPairCreateRequest) (int64, error)
	DeleteUnreferencedCoins(ctx context.Context) (int64, error)
	UpdateCoinsMarketData(ctx context.Context, requests []models.MarketDataUpdateRequest) ([]models.CoinMarketData, error)
}

// IdentityProvider is the external identity and metadata service. Exchange ids
// are the provider's own.
type IdentityProvider interface {
	GetCoinsList(ctx context.Context) ([]models.IdentityCoin, error)
	GetSymbolToIdMapForExchange(ctx context.Context, exchangeID string) (map[string]string, error)
	GetAssetsInfo(ctx context.Context, ids []string) ([]models.AssetInfo, error)
}

// PriceHistoryRepository stores resolved candles.
type PriceHistoryRepository interface {
	SaveKlines(ctx context.Context, responses []models.PairKlineResponse) (int64, error)
	GetKlines(ctx context.Context, tradingPairID uuid.UUID, interval models.KlineInterval, limit int) ([]models.Kline, error)
}

// SpotCoinSource produces the candidate coin list.
type SpotCoinSource interface {
	GetActiveSpotCoins(ctx context.Context) ([]models.CandidateCoin, error)
}

// CandidateSource serves the candidate coin list, possibly from cache.
type CandidateSource interface {
	GetOrRefresh(ctx context.Context) ([]models.CandidateCoin, error)
}

// KlineBatchResolver finds one candle series per coin.
type KlineBatchResolver interface {
	GetFirstSuccessfulKlineDataPerCoin(ctx context.Context, req models.KlineBatchRequest) []models.PairKlineResponse
}

// AssetInfoProvider serves market snapshots by identity id.
type AssetInfoProvider interface {
	GetAssetsInfo(ctx context.Context, ids []string) ([]models.AssetInfo, error)
}
