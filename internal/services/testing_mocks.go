package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockCatalogRepository implements CatalogRepository for testing within the services package
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) GetAllCoins(ctx context.Context) ([]models.Coin, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Coin), args.Error(1)
}

func (m *MockCatalogRepository) GetCoinsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Coin, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Coin), args.Error(1)
}

func (m *MockCatalogRepository) CreateQuoteCoins(ctx context.Context, requests []models.QuoteCoinCreateRequest) ([]models.Coin, error) {
	args := m.Called(ctx, requests)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Coin), args.Error(1)
}

func (m *MockCatalogRepository) ReplaceTradingPairs(ctx context.Context, mainCoinIDs []uuid.UUID, requests []models.TradingPairCreateRequest) (int64, error) {
	args := m.Called(ctx, mainCoinIDs, requests)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCatalogRepository) DeleteUnreferencedCoins(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCatalogRepository) UpdateCoinsMarketData(ctx context.Context, requests []models.MarketDataUpdateRequest) ([]models.CoinMarketData, error) {
	args := m.Called(ctx, requests)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CoinMarketData), args.Error(1)
}

// MockIdentityProvider implements IdentityProvider for testing within the services package
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) GetCoinsList(ctx context.Context) ([]models.IdentityCoin, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.IdentityCoin), args.Error(1)
}

func (m *MockIdentityProvider) GetSymbolToIdMapForExchange(ctx context.Context, exchangeID string) (map[string]string, error) {
	args := m.Called(ctx, exchangeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockIdentityProvider) GetAssetsInfo(ctx context.Context, ids []string) ([]models.AssetInfo, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AssetInfo), args.Error(1)
}

// MockExchangeClient implements exchange.Client for testing within the services package
type MockExchangeClient struct {
	mock.Mock
	exchange models.Exchange
}

func NewMockExchangeClient(exchange models.Exchange) *MockExchangeClient {
	return &MockExchangeClient{exchange: exchange}
}

func (m *MockExchangeClient) Exchange() models.Exchange {
	return m.exchange
}

func (m *MockExchangeClient) GetAllSpotCoins(ctx context.Context) ([]models.ExchangeSpotCoin, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExchangeSpotCoin), args.Error(1)
}

func (m *MockExchangeClient) GetKlineData(ctx context.Context, mainSymbol, quoteSymbol string, interval models.KlineInterval, window models.KlineWindow, limit int) ([]models.Kline, error) {
	args := m.Called(ctx, mainSymbol, quoteSymbol, interval, window, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Kline), args.Error(1)
}

// MockPriceHistoryRepository implements PriceHistoryRepository for testing within the services package
type MockPriceHistoryRepository struct {
	mock.Mock
}

func (m *MockPriceHistoryRepository) SaveKlines(ctx context.Context, responses []models.PairKlineResponse) (int64, error) {
	args := m.Called(ctx, responses)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPriceHistoryRepository) GetKlines(ctx context.Context, tradingPairID uuid.UUID, interval models.KlineInterval, limit int) ([]models.Kline, error) {
	args := m.Called(ctx, tradingPairID, interval, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Kline), args.Error(1)
}
