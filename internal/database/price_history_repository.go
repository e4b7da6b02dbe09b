package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/shopspring/decimal"
)

// PriceHistoryRepository stores candles per trading pair and interval.
type PriceHistoryRepository struct {
	pool DatabasePool
}

func NewPriceHistoryRepository(pool DatabasePool) *PriceHistoryRepository {
	return &PriceHistoryRepository{pool: pool}
}

// SaveKlines inserts every candle of the responses. Candles already stored for
// the same pair, interval and open time are left untouched. It returns the
// number of new rows.
func (r *PriceHistoryRepository) SaveKlines(ctx context.Context, responses []models.PairKlineResponse) (int64, error) {
	var inserted int64
	for _, resp := range responses {
		if len(resp.Klines) == 0 {
			continue
		}

		n := len(resp.Klines)
		openTimes := make([]int64, n)
		closeTimes := make([]int64, n)
		opens := make([]string, n)
		highs := make([]string, n)
		lows := make([]string, n)
		closes := make([]string, n)
		volumes := make([]string, n)
		for i, k := range resp.Klines {
			openTimes[i] = k.OpenTime
			closeTimes[i] = k.CloseTime
			opens[i] = k.Open.String()
			highs[i] = k.High.String()
			lows[i] = k.Low.String()
			closes[i] = k.Close.String()
			volumes[i] = k.Volume.String()
		}

		tag, err := r.pool.Exec(ctx, `
			INSERT INTO price_history (trading_pair_id, exchange, interval, open_time, close_time, open, high, low, close, volume)
			SELECT $1::uuid, $2, $3, t.open_time, t.close_time,
				t.open::numeric, t.high::numeric, t.low::numeric, t.close::numeric, t.volume::numeric
			FROM unnest($4::bigint[], $5::bigint[], $6::text[], $7::text[], $8::text[], $9::text[], $10::text[])
				AS t(open_time, close_time, open, high, low, close, volume)
			ON CONFLICT (trading_pair_id, interval, open_time) DO NOTHING`,
			resp.TradingPairID.String(), string(resp.Exchange), string(resp.Interval),
			openTimes, closeTimes, opens, highs, lows, closes, volumes)
		if err != nil {
			return inserted, fmt.Errorf("failed to save klines for %s/%s: %w", resp.Symbol, resp.QuoteSymbol, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// GetKlines returns the most recent stored candles of a pair, oldest first.
func (r *PriceHistoryRepository) GetKlines(ctx context.Context, tradingPairID uuid.UUID, interval models.KlineInterval, limit int) ([]models.Kline, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT open_time, close_time, open::text, high::text, low::text, close::text, volume::text
		FROM (
			SELECT * FROM price_history
			WHERE trading_pair_id = $1::uuid AND interval = $2
			ORDER BY open_time DESC
			LIMIT $3
		) recent
		ORDER BY open_time`, tradingPairID.String(), string(interval), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	klines := make([]models.Kline, 0, limit)
	for rows.Next() {
		var (
			k                                models.Kline
			open, high, low, closePx, volume string
		)
		if err := rows.Scan(&k.OpenTime, &k.CloseTime, &open, &high, &low, &closePx, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		for _, f := range []struct {
			raw string
			dst *decimal.Decimal
		}{
			{open, &k.Open}, {high, &k.High}, {low, &k.Low}, {closePx, &k.Close}, {volume, &k.Volume},
		} {
			d, err := decimal.NewFromString(f.raw)
			if err != nil {
				return nil, fmt.Errorf("invalid price history value %q at %d: %w", f.raw, k.OpenTime, err)
			}
			*f.dst = d
		}
		klines = append(klines, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price history: %w", err)
	}
	return klines, nil
}
