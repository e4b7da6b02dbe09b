package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/utils"
	"github.com/irfndi/celebrum-catalog/pkg/ccxt"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// CCXTClient reads one exchange through the CCXT sidecar service.
type CCXTClient struct {
	exchange models.Exchange
	ccxt     ccxt.MarketDataClient
	limiter  *rate.Limiter
	logger   *logrus.Entry
}

// NewCCXTClient limits requests to ratePerSecond; zero or less means unlimited.
func NewCCXTClient(exchange models.Exchange, client ccxt.MarketDataClient, ratePerSecond float64, logger *logrus.Logger) *CCXTClient {
	limit := rate.Inf
	burst := 1
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
		burst = max(1, int(ratePerSecond))
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CCXTClient{
		exchange: exchange,
		ccxt:     client,
		limiter:  rate.NewLimiter(limit, burst),
		logger: logger.WithFields(logrus.Fields{
			"component": "ccxt_client",
			"exchange":  exchange.String(),
		}),
	}
}

func (c *CCXTClient) Exchange() models.Exchange {
	return c.exchange
}

// GetAllSpotCoins groups the exchange's spot markets by base symbol. Inactive
// markets are reported with Unavailable status rather than dropped.
func (c *CCXTClient) GetAllSpotCoins(ctx context.Context) ([]models.ExchangeSpotCoin, error) {
	operation := fmt.Sprintf("fetch %s markets", c.exchange)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, requestError(ctx, operation, err)
	}
	markets, err := c.ccxt.GetMarkets(ctx, c.exchange.String())
	if err != nil {
		return nil, requestError(ctx, operation, err)
	}

	names := c.currencyNames(ctx)

	bySymbol := make(map[string]*models.ExchangeSpotCoin)
	for _, m := range markets.Markets {
		if !m.IsSpot() || m.Base == "" || m.Quote == "" {
			continue
		}
		coin, ok := bySymbol[m.Base]
		if !ok {
			coin = &models.ExchangeSpotCoin{Symbol: m.Base, Name: names[m.Base]}
			bySymbol[m.Base] = coin
		}
		status := models.TradingPairStatusUnavailable
		if m.Active {
			status = models.TradingPairStatusAvailable
		}
		coin.TradingPairs = append(coin.TradingPairs, models.ExchangeTradingPair{
			QuoteSymbol: m.Quote,
			QuoteName:   names[m.Quote],
			Exchange:    c.exchange,
			Status:      status,
		})
	}

	coins := make([]models.ExchangeSpotCoin, 0, len(bySymbol))
	for _, coin := range bySymbol {
		coins = append(coins, *coin)
	}
	sort.Slice(coins, func(i, j int) bool { return coins[i].Symbol < coins[j].Symbol })
	return coins, nil
}

// GetKlineData returns normalized candles for mainSymbol/quoteSymbol.
func (c *CCXTClient) GetKlineData(ctx context.Context, mainSymbol, quoteSymbol string, interval models.KlineInterval, window models.KlineWindow, limit int) ([]models.Kline, error) {
	operation := fmt.Sprintf("fetch %s %s/%s candles", c.exchange, mainSymbol, quoteSymbol)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, requestError(ctx, operation, err)
	}
	resp, err := c.ccxt.GetOHLCV(ctx, ccxt.OHLCVRequest{
		Exchange:  c.exchange.String(),
		Symbol:    mainSymbol + "/" + quoteSymbol,
		Timeframe: string(interval),
		Since:     window.StartTime,
		Until:     window.EndTime,
		Limit:     limit,
	})
	if err != nil {
		return nil, requestError(ctx, operation, err)
	}

	width := interval.Duration().Milliseconds()
	klines := make([]models.Kline, 0, len(resp.OHLCV))
	for _, candle := range resp.OHLCV {
		openTime := candle.Timestamp.UnixMilli()
		if window.EndTime > 0 && openTime > window.EndTime {
			continue
		}
		klines = append(klines, models.Kline{
			OpenTime:  openTime,
			CloseTime: openTime + width - 1,
			Open:      candle.Open,
			High:      candle.High,
			Low:       candle.Low,
			Close:     candle.Close,
			Volume:    candle.Volume,
		})
	}
	return models.NormalizeKlines(klines), nil
}

// requestError marks calls cut short by the caller's deadline as timeouts.
func requestError(ctx context.Context, operation string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return utils.NewTimeoutError(operation, err)
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// currencyNames is best effort: listings are still usable without names.
func (c *CCXTClient) currencyNames(ctx context.Context) map[string]string {
	names := make(map[string]string)
	resp, err := c.ccxt.GetCurrencies(ctx, c.exchange.String())
	if err != nil {
		c.logger.WithError(err).Debug("Currency names unavailable")
		return names
	}
	for code, currency := range resp.Currencies {
		if currency.Name != "" {
			names[code] = currency.Name
		}
	}
	return names
}
