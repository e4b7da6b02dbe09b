package services

import (
	"context"
	"iter"
	"time"

	"github.com/irfndi/celebrum-catalog/internal/exchange"
	"github.com/irfndi/celebrum-catalog/internal/logging"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/telemetry"
	"github.com/irfndi/celebrum-catalog/internal/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// KlineFallbackResolver finds candles for a coin by trying its trading pairs
// and their exchanges in declared order until one returns data.
type KlineFallbackResolver struct {
	registry       *exchange.Registry
	attemptTimeout time.Duration
	concurrency    int
	logger         *logrus.Entry
}

func NewKlineFallbackResolver(registry *exchange.Registry, attemptTimeout time.Duration, concurrency int, logger *logrus.Logger) *KlineFallbackResolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &KlineFallbackResolver{
		registry:       registry,
		attemptTimeout: attemptTimeout,
		concurrency:    concurrency,
		logger:         logging.ForComponent(logger, "kline_resolver"),
	}
}

type klineAttempt struct {
	pair     models.KlinePairRequest
	exchange models.Exchange
}

// klineAttempts yields every (pair, exchange) combination in order and stops
// once ctx is done.
func klineAttempts(ctx context.Context, pairs []models.KlinePairRequest) iter.Seq[klineAttempt] {
	return func(yield func(klineAttempt) bool) {
		for _, pair := range pairs {
			for _, ex := range pair.Exchanges {
				if ctx.Err() != nil {
					return
				}
				if !yield(klineAttempt{pair: pair, exchange: ex}) {
					return
				}
			}
		}
	}
}

// firstSuccess runs try over seq and returns the first successful result.
// Later attempts are never started once one succeeds.
func firstSuccess[A, R any](seq iter.Seq[A], try func(A) (R, bool)) (R, A, bool) {
	for attempt := range seq {
		if result, ok := try(attempt); ok {
			return result, attempt, true
		}
	}
	var zeroR R
	var zeroA A
	return zeroR, zeroA, false
}

// GetKlineDataForPair returns the first non-empty series among the pair's
// exchanges, or a NotFound error.
func (r *KlineFallbackResolver) GetKlineDataForPair(ctx context.Context, coin models.Coin, pair models.TradingPair, interval models.KlineInterval, window models.KlineWindow, limit int) (models.PairKlineResponse, error) {
	req := models.KlineCoinRequest{
		CoinID: coin.ID,
		Symbol: coin.Symbol,
		TradingPairs: []models.KlinePairRequest{{
			TradingPairID: pair.ID,
			QuoteSymbol:   pair.QuoteSymbol,
			Exchanges:     pair.Exchanges,
		}},
	}

	resp, ok := r.resolveCoin(ctx, req, interval, window, limit)
	if !ok {
		r.logger.WithFields(logrus.Fields{
			logging.FieldSymbol: coin.Symbol,
			"quote_symbol":      pair.QuoteSymbol,
			"interval":          string(interval),
		}).Warn("No kline data found for trading pair")
		return models.PairKlineResponse{}, utils.NewNotFoundError("no kline data found for %s/%s", coin.Symbol, pair.QuoteSymbol)
	}
	return resp, nil
}

// GetFirstSuccessfulKlineDataPerCoin resolves every coin of the batch
// concurrently. Coins without data are left out. Results keep request order.
func (r *KlineFallbackResolver) GetFirstSuccessfulKlineDataPerCoin(ctx context.Context, req models.KlineBatchRequest) []models.PairKlineResponse {
	ctx, span := telemetry.StartSpan(ctx, "klines.GetFirstSuccessfulKlineDataPerCoin",
		attribute.Int("coins", len(req.Coins)),
		attribute.String("interval", string(req.Interval)))
	defer telemetry.EndSpan(span, nil)

	found := make([]*models.PairKlineResponse, len(req.Coins))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, coin := range req.Coins {
		g.Go(func() error {
			resp, ok := r.resolveCoin(ctx, coin, req.Interval, req.Window, req.Limit)
			if !ok {
				r.logger.WithFields(logrus.Fields{
					logging.FieldSymbol: coin.Symbol,
					"interval":          string(req.Interval),
				}).Warn("No kline data found for coin")
				return nil
			}
			found[i] = &resp
			return nil
		})
	}
	_ = g.Wait()

	results := make([]models.PairKlineResponse, 0, len(found))
	for _, resp := range found {
		if resp != nil {
			results = append(results, *resp)
		}
	}
	return results
}

func (r *KlineFallbackResolver) resolveCoin(ctx context.Context, coin models.KlineCoinRequest, interval models.KlineInterval, window models.KlineWindow, limit int) (models.PairKlineResponse, bool) {
	klines, attempt, ok := firstSuccess(klineAttempts(ctx, coin.TradingPairs), func(a klineAttempt) ([]models.Kline, bool) {
		return r.try(ctx, coin.Symbol, a, interval, window, limit)
	})
	if !ok {
		return models.PairKlineResponse{}, false
	}
	return models.PairKlineResponse{
		CoinID:        coin.CoinID,
		Symbol:        coin.Symbol,
		TradingPairID: attempt.pair.TradingPairID,
		QuoteSymbol:   attempt.pair.QuoteSymbol,
		Exchange:      attempt.exchange,
		Interval:      interval,
		Klines:        klines,
	}, true
}

// try treats errors, timeouts and unknown exchanges as an empty result.
func (r *KlineFallbackResolver) try(ctx context.Context, symbol string, a klineAttempt, interval models.KlineInterval, window models.KlineWindow, limit int) ([]models.Kline, bool) {
	fields := logrus.Fields{
		logging.FieldSymbol:   symbol,
		logging.FieldExchange: a.exchange.String(),
		"quote_symbol":        a.pair.QuoteSymbol,
	}

	client, ok := r.registry.Get(a.exchange)
	if !ok {
		r.logger.WithFields(fields).Debug("Skipping kline attempt on unregistered exchange")
		return nil, false
	}

	if r.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()
	}

	klines, err := client.GetKlineData(ctx, symbol, a.pair.QuoteSymbol, interval, window, limit)
	if err != nil {
		r.logger.WithFields(fields).WithError(err).Debug("Kline attempt failed")
		return nil, false
	}
	return klines, len(klines) > 0
}
