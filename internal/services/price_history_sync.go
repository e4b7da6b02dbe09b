package services

import (
	"context"
	"time"

	"github.com/irfndi/celebrum-catalog/internal/logging"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/telemetry"
	"github.com/irfndi/celebrum-catalog/internal/utils"
	"github.com/sirupsen/logrus"
)

// PriceHistorySyncResult summarizes one sync run.
type PriceHistorySyncResult struct {
	Coins    int   `json:"coins"`
	Resolved int   `json:"resolved"`
	Inserted int64 `json:"inserted"`
}

// PriceHistorySyncService pulls candles for every catalog coin with trading
// pairs and stores them.
type PriceHistorySyncService struct {
	catalog  CatalogRepository
	resolver KlineBatchResolver
	history  PriceHistoryRepository
	interval models.KlineInterval
	limit    int
	now      func() time.Time
	logger   *logrus.Entry
}

func NewPriceHistorySyncService(catalog CatalogRepository, resolver KlineBatchResolver, history PriceHistoryRepository, interval models.KlineInterval, limit int, logger *logrus.Logger) *PriceHistorySyncService {
	return &PriceHistorySyncService{
		catalog:  catalog,
		resolver: resolver,
		history:  history,
		interval: interval,
		limit:    limit,
		now:      time.Now,
		logger:   logging.ForComponent(logger, "price_history_sync"),
	}
}

func (s *PriceHistorySyncService) SyncPriceHistory(ctx context.Context) (result PriceHistorySyncResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "price_history.SyncPriceHistory")
	defer func() { telemetry.EndSpan(span, err) }()

	coins, err := s.catalog.GetAllCoins(ctx)
	if err != nil {
		return result, utils.NewInternalError("fetch catalog coins", err)
	}

	req := models.KlineBatchRequest{
		Interval: s.interval,
		Window:   s.window(),
		Limit:    s.limit,
	}
	for _, coin := range coins {
		if len(coin.TradingPairs) == 0 {
			continue
		}
		req.Coins = append(req.Coins, models.KlineCoinRequestFromCoin(coin))
	}
	result.Coins = len(req.Coins)
	if result.Coins == 0 {
		return result, nil
	}

	responses := s.resolver.GetFirstSuccessfulKlineDataPerCoin(ctx, req)
	result.Resolved = len(responses)
	if len(responses) == 0 {
		return result, nil
	}

	result.Inserted, err = s.history.SaveKlines(ctx, responses)
	if err != nil {
		return result, utils.NewInternalError("save price history", err)
	}

	s.logger.WithFields(logrus.Fields{
		logging.FieldOperation: "SyncPriceHistory",
		"coins":                result.Coins,
		"resolved":             result.Resolved,
		"inserted":             result.Inserted,
	}).Info("Synced price history")
	return result, nil
}

// window covers the last limit candles ending now.
func (s *PriceHistorySyncService) window() models.KlineWindow {
	end := s.now()
	width := s.interval.Duration()
	if width == 0 || s.limit <= 0 {
		return models.KlineWindow{EndTime: end.UnixMilli()}
	}
	start := end.Add(-time.Duration(s.limit) * width)
	return models.KlineWindow{StartTime: start.UnixMilli(), EndTime: end.UnixMilli()}
}
