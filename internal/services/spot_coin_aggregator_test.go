package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/irfndi/celebrum-catalog/internal/exchange"
	"github.com/irfndi/celebrum-catalog/internal/logging"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.NewLoggerWithOutput("debug", "production", &buf), &buf
}

func available(quote string, ex models.Exchange) models.ExchangeTradingPair {
	return models.ExchangeTradingPair{QuoteSymbol: quote, Exchange: ex, Status: models.TradingPairStatusAvailable}
}

func unavailable(quote string, ex models.Exchange) models.ExchangeTradingPair {
	return models.ExchangeTradingPair{QuoteSymbol: quote, Exchange: ex, Status: models.TradingPairStatusUnavailable}
}

var testIdentityCoins = []models.IdentityCoin{
	{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin"},
	{ID: "ethereum", Symbol: "ETH", Name: "Ethereum"},
	{ID: "tether", Symbol: "USDT", Name: "Tether", IsStablecoin: true},
}

var testSymbolMap = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"USDT": "tether",
}

type aggregatorFixture struct {
	binance  *MockExchangeClient
	okx      *MockExchangeClient
	provider *MockIdentityProvider
	agg      *SpotCoinAggregator
	logs     *bytes.Buffer
}

func newAggregatorFixture(t *testing.T) *aggregatorFixture {
	t.Helper()
	return newAggregatorFixtureWithTimeout(t, time.Second)
}

func newAggregatorFixtureWithTimeout(t *testing.T, timeout time.Duration) *aggregatorFixture {
	t.Helper()
	f := &aggregatorFixture{
		binance:  NewMockExchangeClient(models.ExchangeBinance),
		okx:      NewMockExchangeClient(models.ExchangeOKX),
		provider: new(MockIdentityProvider),
	}
	registry, err := exchange.NewRegistry(f.binance, f.okx)
	require.NoError(t, err)

	logger, buf := newTestLogger()
	f.logs = buf
	f.agg = NewSpotCoinAggregator(registry, NewIdentityResolver(f.provider), timeout, logger)
	return f
}

func (f *aggregatorFixture) identity(coins []models.IdentityCoin, binanceMap, okxMap map[string]string) {
	f.provider.On("GetCoinsList", mock.Anything).Return(coins, nil)
	f.provider.On("GetSymbolToIdMapForExchange", mock.Anything, "binance").Return(binanceMap, nil)
	f.provider.On("GetSymbolToIdMapForExchange", mock.Anything, "okex").Return(okxMap, nil)
}

func findCandidate(t *testing.T, coins []models.CandidateCoin, symbol string) models.CandidateCoin {
	t.Helper()
	for _, c := range coins {
		if c.Symbol == symbol {
			return c
		}
	}
	t.Fatalf("candidate %s not found", symbol)
	return models.CandidateCoin{}
}

func TestSpotCoinAggregator_MergesAvailableLegsAcrossExchanges(t *testing.T) {
	f := newAggregatorFixture(t)
	f.binance.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{
		{Symbol: "BTC", TradingPairs: []models.ExchangeTradingPair{available("USDT", models.ExchangeBinance)}},
	}, nil)
	f.okx.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{
		{Symbol: "BTC", TradingPairs: []models.ExchangeTradingPair{available("USDT", models.ExchangeOKX)}},
		{Symbol: "ETH", TradingPairs: []models.ExchangeTradingPair{available("USDT", models.ExchangeOKX)}},
	}, nil)
	f.identity(testIdentityCoins, testSymbolMap, testSymbolMap)

	coins, err := f.agg.GetActiveSpotCoins(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 2)

	btc := coins[0]
	assert.Equal(t, "BTC", btc.Symbol)
	assert.Equal(t, "Bitcoin", btc.Name)
	assert.Equal(t, "bitcoin", btc.IdentityID)
	require.Len(t, btc.TradingPairs, 1)
	assert.Equal(t, []models.Exchange{models.ExchangeBinance, models.ExchangeOKX}, btc.TradingPairs[0].Exchanges)
	assert.Equal(t, models.CoinCategoryStablecoin, btc.TradingPairs[0].QuoteCategory)
	assert.Equal(t, "tether", btc.TradingPairs[0].QuoteIdentityID)

	eth := coins[1]
	assert.Equal(t, "ETH", eth.Symbol)
	require.Len(t, eth.TradingPairs, 1)
	assert.Equal(t, []models.Exchange{models.ExchangeOKX}, eth.TradingPairs[0].Exchanges)
}

func TestSpotCoinAggregator_DropsUnavailableLegs(t *testing.T) {
	f := newAggregatorFixture(t)
	f.binance.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{
		{Symbol: "BTC", TradingPairs: []models.ExchangeTradingPair{
			available("USDT", models.ExchangeBinance),
			unavailable("ETH", models.ExchangeBinance),
		}},
		{Symbol: "LUNA", TradingPairs: []models.ExchangeTradingPair{unavailable("USDT", models.ExchangeBinance)}},
	}, nil)
	f.okx.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{
		{Symbol: "BTC", TradingPairs: []models.ExchangeTradingPair{unavailable("USDT", models.ExchangeOKX)}},
	}, nil)
	f.identity(testIdentityCoins, testSymbolMap, testSymbolMap)

	coins, err := f.agg.GetActiveSpotCoins(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 1)

	btc := findCandidate(t, coins, "BTC")
	require.Len(t, btc.TradingPairs, 1)
	assert.Equal(t, "USDT", btc.TradingPairs[0].QuoteSymbol)
	assert.Equal(t, []models.Exchange{models.ExchangeBinance}, btc.TradingPairs[0].Exchanges)
}

func TestSpotCoinAggregator_FlagsInactiveIdentity(t *testing.T) {
	f := newAggregatorFixture(t)
	f.binance.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{
		{Symbol: "SOL", Name: "Solana", TradingPairs: []models.ExchangeTradingPair{available("USDT", models.ExchangeBinance)}},
	}, nil)
	f.okx.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{}, nil)
	f.identity(testIdentityCoins, map[string]string{"SOL": "solana", "USDT": "tether"}, map[string]string{})

	coins, err := f.agg.GetActiveSpotCoins(context.Background())
	require.NoError(t, err)

	sol := findCandidate(t, coins, "SOL")
	assert.Empty(t, sol.IdentityID)
	assert.Equal(t, models.CoinCategoryNone, sol.Category)

	logs := f.logs.String()
	assert.Contains(t, logs, "Coin identity is inactive")
	assert.Contains(t, logs, `"symbol":"SOL"`)
	assert.Contains(t, logs, `"exchange":"binance"`)
}

func TestSpotCoinAggregator_FiatQuotesAndMissingNames(t *testing.T) {
	f := newAggregatorFixture(t)
	f.binance.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{
		{Symbol: "BTC", TradingPairs: []models.ExchangeTradingPair{
			available("EUR", models.ExchangeBinance),
			available("XYZQ", models.ExchangeBinance),
		}},
		{Symbol: "NEWC", TradingPairs: []models.ExchangeTradingPair{available("USDT", models.ExchangeBinance)}},
	}, nil)
	f.okx.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{}, nil)
	f.identity(testIdentityCoins, testSymbolMap, testSymbolMap)

	coins, err := f.agg.GetActiveSpotCoins(context.Background())
	require.NoError(t, err)

	btc := findCandidate(t, coins, "BTC")
	require.Len(t, btc.TradingPairs, 2)
	assert.Equal(t, "EUR", btc.TradingPairs[0].QuoteSymbol)
	assert.Equal(t, models.CoinCategoryFiat, btc.TradingPairs[0].QuoteCategory)
	assert.Equal(t, "Euro", btc.TradingPairs[0].QuoteName)

	logs := f.logs.String()
	assert.Contains(t, logs, "Main coin name is missing")
	assert.Contains(t, logs, `"symbol":"NEWC"`)
	assert.Contains(t, logs, "Quote coin name is missing")
	assert.Contains(t, logs, `"symbol":"XYZQ"`)
	assert.NotContains(t, logs, `"symbol":"EUR"`)
}

func TestSpotCoinAggregator_FailsWhenAnyLegFails(t *testing.T) {
	f := newAggregatorFixture(t)
	cause := errors.New("connection reset")
	f.binance.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{
		{Symbol: "BTC", TradingPairs: []models.ExchangeTradingPair{available("USDT", models.ExchangeBinance)}},
	}, nil)
	f.okx.On("GetAllSpotCoins", mock.Anything).Return(nil, cause)
	f.identity(testIdentityCoins, testSymbolMap, testSymbolMap)

	coins, err := f.agg.GetActiveSpotCoins(context.Background())
	require.Error(t, err)
	assert.Nil(t, coins)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, utils.KindInternal, utils.KindOf(err))
	assert.Contains(t, err.Error(), "fetch spot coins from OKX")

	f.binance.AssertExpectations(t)
	f.provider.AssertExpectations(t)
}

func TestSpotCoinAggregator_FailsWhenIdentityListFails(t *testing.T) {
	f := newAggregatorFixture(t)
	f.binance.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{}, nil)
	f.okx.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{}, nil)
	f.provider.On("GetCoinsList", mock.Anything).Return(nil, errors.New("rate limited"))
	f.provider.On("GetSymbolToIdMapForExchange", mock.Anything, mock.Anything).Return(map[string]string{}, nil)

	_, err := f.agg.GetActiveSpotCoins(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch identity coin list")
}

func TestSpotCoinAggregator_TimeoutFailsWholeCall(t *testing.T) {
	f := newAggregatorFixtureWithTimeout(t, 50*time.Millisecond)
	f.binance.On("GetAllSpotCoins", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)
	f.okx.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{
		{Symbol: "BTC", TradingPairs: []models.ExchangeTradingPair{available("USDT", models.ExchangeOKX)}},
	}, nil)
	f.identity(testIdentityCoins, testSymbolMap, testSymbolMap)

	start := time.Now()
	coins, err := f.agg.GetActiveSpotCoins(context.Background())
	require.Error(t, err)
	assert.Nil(t, coins)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, utils.KindInternal, utils.KindOf(err))
	assert.Contains(t, err.Error(), "fetch spot coins from Binance")

	f.okx.AssertExpectations(t)
	f.provider.AssertExpectations(t)
}

func TestSpotCoinAggregator_FailsWhenExchangeIdentityMapFails(t *testing.T) {
	f := newAggregatorFixture(t)
	cause := errors.New("exchange not found")
	f.binance.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{
		{Symbol: "BTC", TradingPairs: []models.ExchangeTradingPair{available("USDT", models.ExchangeBinance)}},
	}, nil)
	f.okx.On("GetAllSpotCoins", mock.Anything).Return([]models.ExchangeSpotCoin{}, nil)
	f.provider.On("GetCoinsList", mock.Anything).Return(testIdentityCoins, nil)
	f.provider.On("GetSymbolToIdMapForExchange", mock.Anything, "binance").Return(testSymbolMap, nil)
	f.provider.On("GetSymbolToIdMapForExchange", mock.Anything, "okex").Return(nil, cause)

	coins, err := f.agg.GetActiveSpotCoins(context.Background())
	require.Error(t, err)
	assert.Nil(t, coins)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "fetch identity map for OKX")

	f.binance.AssertExpectations(t)
	f.okx.AssertExpectations(t)
	f.provider.AssertExpectations(t)
}

func TestIdentityIndex_Resolve(t *testing.T) {
	index := NewIdentityIndex(testIdentityCoins, map[models.Exchange]map[string]string{
		models.ExchangeBinance: {"BTC": "bitcoin-old", "SOL": "solana"},
		models.ExchangeOKX:     {"BTC": "bitcoin"},
	})

	btc := index.Resolve("BTC", []models.Exchange{models.ExchangeBinance, models.ExchangeOKX})
	assert.Equal(t, ResolutionResolved, btc.Status())
	assert.Equal(t, "bitcoin", btc.ID)
	assert.Equal(t, []models.Exchange{models.ExchangeBinance}, btc.InactiveOn)

	sol := index.Resolve("SOL", []models.Exchange{models.ExchangeBinance})
	assert.Equal(t, ResolutionInactive, sol.Status())
	assert.Empty(t, sol.ID)
	assert.Equal(t, "solana", sol.InactiveID[models.ExchangeBinance])

	usd := index.Resolve("USD", []models.Exchange{models.ExchangeBinance})
	assert.Equal(t, ResolutionMissing, usd.Status())
	assert.True(t, usd.IsFiat())
	assert.Equal(t, "US Dollar", usd.Name)

	// Symbols are matched exactly.
	lower := index.Resolve("btc", []models.Exchange{models.ExchangeOKX})
	assert.Equal(t, ResolutionMissing, lower.Status())
}

func TestIdentityResolver_UsesProviderExchangeIDs(t *testing.T) {
	provider := new(MockIdentityProvider)
	provider.On("GetSymbolToIdMapForExchange", mock.Anything, "gdax").Return(map[string]string{"BTC": "bitcoin"}, nil)

	resolver := NewIdentityResolver(provider)
	m, err := resolver.GetSymbolToIdMapForExchange(context.Background(), models.ExchangeCoinbase)
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", m["BTC"])
	provider.AssertExpectations(t)
}
