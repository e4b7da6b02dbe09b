package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMarketDataRefresher_OnlyRequestsCoinsWithIdentity(t *testing.T) {
	btcID, ethID := uuid.New(), uuid.New()
	repo := new(MockCatalogRepository)
	provider := new(MockIdentityProvider)

	repo.On("GetAllCoins", mock.Anything).Return([]models.Coin{
		{ID: btcID, Symbol: "BTC", IdentityID: strPtr("bitcoin")},
		{ID: ethID, Symbol: "ETH"},
	}, nil)
	provider.On("GetAssetsInfo", mock.Anything, []string{"bitcoin"}).Return([]models.AssetInfo{{
		ID:                       "bitcoin",
		MarketCap:                decimal.NewFromInt(1_300_000_000_000),
		Price:                    decimal.NewFromInt(65_000),
		PriceChangePercentage24h: decimal.NewFromFloat(-1.25),
	}}, nil)
	repo.On("UpdateCoinsMarketData", mock.Anything, []models.MarketDataUpdateRequest{{
		CoinID:                   btcID,
		MarketCap:                decimal.NewFromInt(1_300_000_000_000),
		Price:                    decimal.NewFromInt(65_000),
		PriceChangePercentage24h: decimal.NewFromFloat(-1.25),
	}}).Return([]models.CoinMarketData{{
		CoinID:     btcID,
		Symbol:     "BTC",
		IdentityID: "bitcoin",
		Price:      decimal.NewFromInt(65_000),
		UpdatedAt:  time.Now(),
	}}, nil)

	logger, _ := newTestLogger()
	updated, err := NewMarketDataRefresher(repo, provider, logger).RefreshMarketData(context.Background())
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, btcID, updated[0].CoinID)
	repo.AssertExpectations(t)
	provider.AssertExpectations(t)
}

func TestMarketDataRefresher_NoIdentitySkipsProvider(t *testing.T) {
	repo := new(MockCatalogRepository)
	provider := new(MockIdentityProvider)
	repo.On("GetAllCoins", mock.Anything).Return([]models.Coin{
		{ID: uuid.New(), Symbol: "ETH"},
		{ID: uuid.New(), Symbol: "XYZ", IdentityID: strPtr("")},
	}, nil)

	logger, _ := newTestLogger()
	updated, err := NewMarketDataRefresher(repo, provider, logger).RefreshMarketData(context.Background())
	require.NoError(t, err)
	assert.Empty(t, updated)
	provider.AssertNotCalled(t, "GetAssetsInfo", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "UpdateCoinsMarketData", mock.Anything, mock.Anything)
}

func TestMarketDataRefresher_DedupesIdsAndDropsUnmatched(t *testing.T) {
	wbtcA, wbtcB, solID := uuid.New(), uuid.New(), uuid.New()
	repo := new(MockCatalogRepository)
	provider := new(MockIdentityProvider)
	repo.On("GetAllCoins", mock.Anything).Return([]models.Coin{
		{ID: wbtcA, Symbol: "WBTC", IdentityID: strPtr("wrapped-bitcoin")},
		{ID: wbtcB, Symbol: "WBTC.E", IdentityID: strPtr("wrapped-bitcoin")},
		{ID: solID, Symbol: "SOL", IdentityID: strPtr("solana")},
	}, nil)
	provider.On("GetAssetsInfo", mock.Anything, []string{"wrapped-bitcoin", "solana"}).Return([]models.AssetInfo{
		{ID: "wrapped-bitcoin", Price: decimal.NewFromInt(64_900)},
	}, nil)
	repo.On("UpdateCoinsMarketData", mock.Anything, mock.MatchedBy(func(reqs []models.MarketDataUpdateRequest) bool {
		if len(reqs) != 2 {
			return false
		}
		for _, r := range reqs {
			if r.CoinID == solID {
				return false
			}
		}
		return true
	})).Return([]models.CoinMarketData{{CoinID: wbtcA}, {CoinID: wbtcB}}, nil)

	logger, _ := newTestLogger()
	updated, err := NewMarketDataRefresher(repo, provider, logger).RefreshMarketData(context.Background())
	require.NoError(t, err)
	assert.Len(t, updated, 2)
	repo.AssertExpectations(t)
}

func TestMarketDataRefresher_WrapsProviderFailure(t *testing.T) {
	repo := new(MockCatalogRepository)
	provider := new(MockIdentityProvider)
	cause := errors.New("429 too many requests")
	repo.On("GetAllCoins", mock.Anything).Return([]models.Coin{{ID: uuid.New(), Symbol: "BTC", IdentityID: strPtr("bitcoin")}}, nil)
	provider.On("GetAssetsInfo", mock.Anything, []string{"bitcoin"}).Return(nil, cause)

	logger, _ := newTestLogger()
	_, err := NewMarketDataRefresher(repo, provider, logger).RefreshMarketData(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "fetch market snapshot")
}
