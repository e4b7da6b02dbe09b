package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKline(openTime int64, price string) models.Kline {
	p := decimal.RequireFromString(price)
	return models.Kline{
		OpenTime:  openTime,
		CloseTime: openTime + 59_999,
		Open:      p,
		High:      p,
		Low:       p,
		Close:     p,
		Volume:    decimal.NewFromInt(10),
	}
}

func TestPriceHistoryRepository_SaveKlines(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewPriceHistoryRepository(mockPool)
	pairID := uuid.New()

	mockPool.ExpectExec("INSERT INTO price_history").
		WithArgs(
			pairID.String(), "binance", "1d",
			[]int64{0, 60_000}, []int64{59_999, 119_999},
			[]string{"1.5", "2"}, []string{"1.5", "2"}, []string{"1.5", "2"}, []string{"1.5", "2"},
			[]string{"10", "10"},
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := repo.SaveKlines(context.Background(), []models.PairKlineResponse{
		{
			Symbol:        "BTC",
			TradingPairID: pairID,
			QuoteSymbol:   "USDT",
			Exchange:      models.ExchangeBinance,
			Interval:      models.KlineInterval1d,
			Klines:        []models.Kline{testKline(0, "1.5"), testKline(60_000, "2")},
		},
		{Symbol: "ETH", TradingPairID: uuid.New()},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPriceHistoryRepository_SaveKlines_Error(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectExec("INSERT INTO price_history").WillReturnError(assert.AnError)

	_, err = NewPriceHistoryRepository(mockPool).SaveKlines(context.Background(), []models.PairKlineResponse{
		{Symbol: "BTC", QuoteSymbol: "USDT", TradingPairID: uuid.New(), Klines: []models.Kline{testKline(0, "1")}},
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "BTC/USDT")
}

func TestPriceHistoryRepository_GetKlines(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	pairID := uuid.New()
	mockPool.ExpectQuery("FROM price_history").
		WithArgs(pairID.String(), "1h", 2).
		WillReturnRows(pgxmock.NewRows([]string{"open_time", "close_time", "open", "high", "low", "close", "volume"}).
			AddRow(int64(0), int64(59_999), "1", "3", "0.5", "2", "100").
			AddRow(int64(60_000), int64(119_999), "2", "2", "2", "2", "0"))

	klines, err := NewPriceHistoryRepository(mockPool).GetKlines(context.Background(), pairID, models.KlineInterval1h, 2)
	require.NoError(t, err)
	require.Len(t, klines, 2)
	assert.True(t, decimal.NewFromInt(3).Equal(klines[0].High))
	assert.Equal(t, int64(60_000), klines[1].OpenTime)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
