package services

import (
	"context"

	"github.com/irfndi/celebrum-catalog/internal/logging"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/telemetry"
	"github.com/irfndi/celebrum-catalog/internal/utils"
	"github.com/sirupsen/logrus"
)

// MarketDataRefresher copies the identity provider's market snapshot onto
// catalog coins that carry an identity id.
type MarketDataRefresher struct {
	repo     CatalogRepository
	provider AssetInfoProvider
	logger   *logrus.Entry
}

func NewMarketDataRefresher(repo CatalogRepository, provider AssetInfoProvider, logger *logrus.Logger) *MarketDataRefresher {
	return &MarketDataRefresher{
		repo:     repo,
		provider: provider,
		logger:   logging.ForComponent(logger, "market_data_refresher"),
	}
}

// RefreshMarketData returns the coins the catalog reports as updated. Coins
// missing from the snapshot are skipped.
func (m *MarketDataRefresher) RefreshMarketData(ctx context.Context) (updated []models.CoinMarketData, err error) {
	ctx, span := telemetry.StartSpan(ctx, "market_data.RefreshMarketData")
	defer func() { telemetry.EndSpan(span, err) }()

	coins, err := m.repo.GetAllCoins(ctx)
	if err != nil {
		return nil, utils.NewInternalError("fetch catalog coins", err)
	}

	var ids []string
	byIdentity := make(map[string][]models.Coin)
	for _, coin := range coins {
		if !coin.HasIdentity() {
			continue
		}
		id := *coin.IdentityID
		if _, ok := byIdentity[id]; !ok {
			ids = append(ids, id)
		}
		byIdentity[id] = append(byIdentity[id], coin)
	}
	if len(ids) == 0 {
		m.logger.WithField(logging.FieldOperation, "RefreshMarketData").Debug("No catalog coins carry an identity id")
		return []models.CoinMarketData{}, nil
	}

	assets, err := m.provider.GetAssetsInfo(ctx, ids)
	if err != nil {
		return nil, utils.NewInternalError("fetch market snapshot", err)
	}

	var requests []models.MarketDataUpdateRequest
	for _, asset := range assets {
		matched, ok := byIdentity[asset.ID]
		if !ok {
			continue
		}
		for _, coin := range matched {
			requests = append(requests, models.MarketDataUpdateRequest{
				CoinID:                   coin.ID,
				MarketCap:                asset.MarketCap,
				Price:                    asset.Price,
				PriceChangePercentage24h: asset.PriceChangePercentage24h,
			})
		}
		delete(byIdentity, asset.ID)
	}
	if len(requests) == 0 {
		return []models.CoinMarketData{}, nil
	}

	updated, err = m.repo.UpdateCoinsMarketData(ctx, requests)
	if err != nil {
		return nil, utils.NewInternalError("update coins market data", err)
	}

	m.logger.WithFields(logrus.Fields{
		logging.FieldOperation: "RefreshMarketData",
		"requested":            len(ids),
		"updated":              len(updated),
	}).Info("Refreshed market data")
	return updated, nil
}
