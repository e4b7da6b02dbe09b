package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irfndi/celebrum-catalog/internal/cache"
	"github.com/irfndi/celebrum-catalog/internal/exchange"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/services"
	"github.com/irfndi/celebrum-catalog/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockSpotCoinProvider struct {
	mock.Mock
}

func (m *MockSpotCoinProvider) GetOrRefresh(ctx context.Context) ([]models.CandidateCoin, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CandidateCoin), args.Error(1)
}

func (m *MockSpotCoinProvider) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSpotCoinProvider) CachedAt(ctx context.Context) (time.Time, bool) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Bool(1)
}

func (m *MockSpotCoinProvider) Stats() cache.Stats {
	return m.Called().Get(0).(cache.Stats)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) ReconcileTradingPairs(ctx context.Context) ([]models.Coin, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Coin), args.Error(1)
}

type MockKlineResolver struct {
	mock.Mock
}

func (m *MockKlineResolver) GetKlineDataForPair(ctx context.Context, coin models.Coin, pair models.TradingPair, interval models.KlineInterval, window models.KlineWindow, limit int) (models.PairKlineResponse, error) {
	args := m.Called(ctx, coin, pair, interval, window, limit)
	return args.Get(0).(models.PairKlineResponse), args.Error(1)
}

func (m *MockKlineResolver) GetFirstSuccessfulKlineDataPerCoin(ctx context.Context, req models.KlineBatchRequest) []models.PairKlineResponse {
	return m.Called(ctx, req).Get(0).([]models.PairKlineResponse)
}

type MockBreakerMonitor struct {
	mock.Mock
}

func (m *MockBreakerMonitor) BreakerStatuses() []exchange.BreakerStatus {
	return m.Called().Get(0).([]exchange.BreakerStatus)
}

func (m *MockBreakerMonitor) ResetBreakers(ex models.Exchange) error {
	return m.Called(ex).Error(0)
}

type MockCoinLookup struct {
	mock.Mock
}

func (m *MockCoinLookup) GetCoinsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Coin, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Coin), args.Error(1)
}

type MockKlineHistory struct {
	mock.Mock
}

func (m *MockKlineHistory) GetKlines(ctx context.Context, tradingPairID uuid.UUID, interval models.KlineInterval, limit int) ([]models.Kline, error) {
	args := m.Called(ctx, tradingPairID, interval, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Kline), args.Error(1)
}

type stubMarketData struct {
	updated []models.CoinMarketData
	sync    services.PriceHistorySyncResult
	err     error
}

func (s *stubMarketData) RefreshMarketData(context.Context) ([]models.CoinMarketData, error) {
	return s.updated, s.err
}

func (s *stubMarketData) SyncPriceHistory(context.Context) (services.PriceHistorySyncResult, error) {
	return s.sync, s.err
}

func perform(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthHandler(t *testing.T) {
	router := gin.New()
	healthy := NewHealthHandler("1.0.0",
		HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Check: func(context.Context) error { return nil }},
	)
	router.GET("/health", healthy.HealthCheck)

	w := perform(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.0.0", resp.Version)
	assert.Equal(t, "healthy", resp.Services["redis"])

	router = gin.New()
	degraded := NewHealthHandler("1.0.0",
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)
	router.GET("/health", degraded.HealthCheck)

	w = perform(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy: connection refused")
}

func TestCatalogHandler_GetSpotCoins(t *testing.T) {
	spot := new(MockSpotCoinProvider)
	spot.On("GetOrRefresh", mock.Anything).Return([]models.CandidateCoin{{Symbol: "BTC"}}, nil).Once()
	spot.On("GetOrRefresh", mock.Anything).Return(nil, utils.NewInternalError("aggregate active spot coins", errors.New("boom"))).Once()

	router := gin.New()
	h := NewCatalogHandler(spot, new(MockReconciler))
	router.GET("/spot-coins", h.GetSpotCoins)

	w := perform(router, http.MethodGet, "/spot-coins", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"symbol":"BTC"`)

	w = perform(router, http.MethodGet, "/spot-coins", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "internal", resp.Error)
	assert.Contains(t, resp.Message, "aggregate active spot coins")
}

func TestCatalogHandler_InvalidateAndStats(t *testing.T) {
	spot := new(MockSpotCoinProvider)
	spot.On("Invalidate", mock.Anything).Return(nil)
	spot.On("Stats").Return(cache.Stats{Hits: 3, Misses: 1})
	spot.On("CachedAt", mock.Anything).Return(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), true).Once()
	spot.On("CachedAt", mock.Anything).Return(time.Time{}, false)

	router := gin.New()
	h := NewCatalogHandler(spot, new(MockReconciler))
	router.POST("/spot-coins/invalidate", h.InvalidateSpotCoins)
	router.GET("/spot-coins/stats", h.GetSpotCoinCacheStats)

	w := perform(router, http.MethodPost, "/spot-coins/invalidate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	spot.AssertCalled(t, "Invalidate", mock.Anything)

	w = perform(router, http.MethodGet, "/spot-coins/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hit_rate":75`)
	assert.Contains(t, w.Body.String(), `"cached_at":"2024-05-01T12:00:00Z"`)

	w = perform(router, http.MethodGet, "/spot-coins/stats", nil)
	assert.Contains(t, w.Body.String(), `"cached_at":null`)
}

func TestCatalogHandler_Reconcile(t *testing.T) {
	reconciler := new(MockReconciler)
	reconciler.On("ReconcileTradingPairs", mock.Anything).Return([]models.Coin{{ID: uuid.New(), Symbol: "BTC"}}, nil)

	router := gin.New()
	h := NewCatalogHandler(new(MockSpotCoinProvider), reconciler)
	router.POST("/catalog/reconcile", h.ReconcileTradingPairs)

	w := perform(router, http.MethodPost, "/catalog/reconcile", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"symbol":"BTC"`)
}

func TestCatalogHandler_ReconcileInProgress(t *testing.T) {
	reconciler := new(MockReconciler)
	reconciler.On("ReconcileTradingPairs", mock.Anything).Return(nil, utils.NewConflictError("reconciliation already in progress"))

	router := gin.New()
	h := NewCatalogHandler(new(MockSpotCoinProvider), reconciler)
	router.POST("/catalog/reconcile", h.ReconcileTradingPairs)

	w := perform(router, http.MethodPost, "/catalog/reconcile", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "conflict", resp.Error)
	assert.Equal(t, "reconciliation already in progress", resp.Message)
}

func TestKlineHandler_GetBatchKlines(t *testing.T) {
	resolver := new(MockKlineResolver)
	resolver.On("GetFirstSuccessfulKlineDataPerCoin", mock.Anything, mock.MatchedBy(func(req models.KlineBatchRequest) bool {
		return req.Interval == models.KlineInterval1d && req.Limit == 100 && len(req.Coins) == 1
	})).Return([]models.PairKlineResponse{{Symbol: "BTC", QuoteSymbol: "EUR"}})

	router := gin.New()
	h := NewKlineHandler(resolver, new(MockCoinLookup), new(MockKlineHistory), models.KlineInterval1d, 100)
	router.POST("/klines/batch", h.GetBatchKlines)

	w := perform(router, http.MethodPost, "/klines/batch", models.KlineBatchRequest{
		Coins: []models.KlineCoinRequest{{CoinID: uuid.New(), Symbol: "BTC"}},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"quote_symbol":"EUR"`)

	w = perform(router, http.MethodPost, "/klines/batch", models.KlineBatchRequest{Interval: "3m"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", decodeError(t, w).Error)
}

func TestKlineHandler_GetPairKlines(t *testing.T) {
	coinID, pairID := uuid.New(), uuid.New()
	pair := models.TradingPair{ID: pairID, CoinID: coinID, QuoteSymbol: "USDT", Exchanges: []models.Exchange{models.ExchangeBinance}}
	coin := models.Coin{ID: coinID, Symbol: "BTC", TradingPairs: []models.TradingPair{pair}}

	coins := new(MockCoinLookup)
	coins.On("GetCoinsByIDs", mock.Anything, []uuid.UUID{coinID}).Return([]models.Coin{coin}, nil)
	missingID := uuid.New()
	coins.On("GetCoinsByIDs", mock.Anything, []uuid.UUID{missingID}).Return([]models.Coin{}, nil)

	resolver := new(MockKlineResolver)
	resolver.On("GetKlineDataForPair", mock.Anything, coin, pair, models.KlineInterval1h, models.KlineWindow{}, 24).
		Return(models.PairKlineResponse{CoinID: coinID, TradingPairID: pairID, Exchange: models.ExchangeBinance}, nil)

	router := gin.New()
	h := NewKlineHandler(resolver, coins, new(MockKlineHistory), models.KlineInterval1d, 100)
	router.POST("/klines/pair", h.GetPairKlines)

	w := perform(router, http.MethodPost, "/klines/pair", PairKlineRequest{CoinID: coinID, TradingPairID: pairID, Interval: models.KlineInterval1h, Limit: 24})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"exchange":"binance"`)

	w = perform(router, http.MethodPost, "/klines/pair", PairKlineRequest{CoinID: missingID, TradingPairID: pairID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(router, http.MethodPost, "/klines/pair", PairKlineRequest{CoinID: coinID, TradingPairID: uuid.New()})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decodeError(t, w).Message, "BTC")

	w = perform(router, http.MethodPost, "/klines/pair", gin.H{"trading_pair_id": pairID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKlineHandler_GetPairKlines_NoData(t *testing.T) {
	coinID, pairID := uuid.New(), uuid.New()
	coin := models.Coin{ID: coinID, Symbol: "BTC", TradingPairs: []models.TradingPair{{ID: pairID, QuoteSymbol: "USDT"}}}

	coins := new(MockCoinLookup)
	coins.On("GetCoinsByIDs", mock.Anything, mock.Anything).Return([]models.Coin{coin}, nil)
	resolver := new(MockKlineResolver)
	resolver.On("GetKlineDataForPair", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(models.PairKlineResponse{}, utils.NewNotFoundError("no kline data found for BTC/USDT"))

	router := gin.New()
	h := NewKlineHandler(resolver, coins, new(MockKlineHistory), models.KlineInterval1d, 100)
	router.POST("/klines/pair", h.GetPairKlines)

	w := perform(router, http.MethodPost, "/klines/pair", PairKlineRequest{CoinID: coinID, TradingPairID: pairID})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Error)
}

func TestKlineHandler_GetKlineHistory(t *testing.T) {
	pairID := uuid.New()
	history := new(MockKlineHistory)
	history.On("GetKlines", mock.Anything, pairID, models.KlineInterval4h, 50).Return([]models.Kline{{OpenTime: 1, CloseTime: 2}}, nil)

	router := gin.New()
	h := NewKlineHandler(new(MockKlineResolver), new(MockCoinLookup), history, models.KlineInterval1d, 100)
	router.GET("/klines/history/:trading_pair_id", h.GetKlineHistory)

	w := perform(router, http.MethodGet, "/klines/history/"+pairID.String()+"?interval=4h&limit=50", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"open_time":1`)

	w = perform(router, http.MethodGet, "/klines/history/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(router, http.MethodGet, "/klines/history/"+pairID.String()+"?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarketDataHandler(t *testing.T) {
	stub := &stubMarketData{
		updated: []models.CoinMarketData{{CoinID: uuid.New(), Symbol: "BTC"}},
		sync:    services.PriceHistorySyncResult{Coins: 2, Resolved: 1, Inserted: 30},
	}

	router := gin.New()
	h := NewMarketDataHandler(stub, stub)
	router.POST("/market-data/refresh", h.RefreshMarketData)
	router.POST("/price-history/sync", h.SyncPriceHistory)

	w := perform(router, http.MethodPost, "/market-data/refresh", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"symbol":"BTC"`)

	w = perform(router, http.MethodPost, "/price-history/sync", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"inserted":30`)

	stub.err = utils.NewUnavailableError("CoinGecko", errors.New("timeout"))
	w = perform(router, http.MethodPost, "/market-data/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExchangeHandler(t *testing.T) {
	monitor := new(MockBreakerMonitor)
	monitor.On("BreakerStatuses").Return([]exchange.BreakerStatus{{
		Exchange:  models.ExchangeBinance,
		Operation: exchange.OperationKlines,
		State:     "open",
		Stats:     exchange.CircuitBreakerStats{FailedRequests: 5},
	}})
	monitor.On("ResetBreakers", models.ExchangeBinance).Return(nil)
	monitor.On("ResetBreakers", models.ExchangeKraken).Return(utils.NewNotFoundError("exchange kraken is not configured"))

	router := gin.New()
	h := NewExchangeHandler(monitor)
	router.GET("/exchanges/breakers", h.GetBreakers)
	router.POST("/exchanges/breakers/:exchange/reset", h.ResetBreakers)

	w := perform(router, http.MethodGet, "/exchanges/breakers", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"operation":"klines"`)
	assert.Contains(t, w.Body.String(), `"state":"open"`)
	assert.Contains(t, w.Body.String(), `"failed_requests":5`)

	w = perform(router, http.MethodPost, "/exchanges/breakers/Binance/reset", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reset":true`)

	w = perform(router, http.MethodPost, "/exchanges/breakers/kraken/reset", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(router, http.MethodPost, "/exchanges/breakers/mtgox/reset", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "bad_request", resp.Error)
	assert.Contains(t, resp.Message, "mtgox")
	monitor.AssertExpectations(t)
}
