package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// KlineInterval is a candle width understood by the exchanges, e.g. "1h" or "1d".
type KlineInterval string

const (
	KlineInterval15m KlineInterval = "15m"
	KlineInterval1h  KlineInterval = "1h"
	KlineInterval4h  KlineInterval = "4h"
	KlineInterval1d  KlineInterval = "1d"
	KlineInterval1w  KlineInterval = "1w"
)

// IsValid reports whether the interval is one the catalog stores.
func (i KlineInterval) IsValid() bool {
	switch i {
	case KlineInterval15m, KlineInterval1h, KlineInterval4h, KlineInterval1d, KlineInterval1w:
		return true
	}
	return false
}

// Duration returns the width of one candle, or zero for an unknown interval.
func (i KlineInterval) Duration() time.Duration {
	switch i {
	case KlineInterval15m:
		return 15 * time.Minute
	case KlineInterval1h:
		return time.Hour
	case KlineInterval4h:
		return 4 * time.Hour
	case KlineInterval1d:
		return 24 * time.Hour
	case KlineInterval1w:
		return 7 * 24 * time.Hour
	}
	return 0
}

// KlineWindow bounds a candle request in epoch milliseconds. Zero values leave
// the bound to the exchange.
type KlineWindow struct {
	StartTime int64 `json:"start_time,omitempty"`
	EndTime   int64 `json:"end_time,omitempty"`
}

// Kline is one OHLCV candle. OpenTime < CloseTime.
type Kline struct {
	OpenTime  int64           `json:"open_time"`
	CloseTime int64           `json:"close_time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// NormalizeKlines sorts candles by open time, drops candles whose open time is
// not before their close time, and keeps the first candle of each open time.
func NormalizeKlines(klines []Kline) []Kline {
	if len(klines) == 0 {
		return nil
	}
	sorted := make([]Kline, 0, len(klines))
	for _, k := range klines {
		if k.OpenTime < k.CloseTime {
			sorted = append(sorted, k)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OpenTime < sorted[j].OpenTime
	})

	result := sorted[:0]
	for i, k := range sorted {
		if i > 0 && k.OpenTime == sorted[i-1].OpenTime {
			continue
		}
		result = append(result, k)
	}
	return result
}

// KlinePairRequest lists the exchanges to try, in order, for one trading pair.
type KlinePairRequest struct {
	TradingPairID uuid.UUID  `json:"trading_pair_id"`
	QuoteSymbol   string     `json:"quote_symbol"`
	Exchanges     []Exchange `json:"exchanges"`
}

// KlineCoinRequest lists a coin's trading pairs in the order they should be tried.
type KlineCoinRequest struct {
	CoinID       uuid.UUID          `json:"coin_id"`
	Symbol       string             `json:"symbol"`
	TradingPairs []KlinePairRequest `json:"trading_pairs"`
}

// KlineBatchRequest asks for the first available candle series of each coin.
type KlineBatchRequest struct {
	Interval KlineInterval      `json:"interval"`
	Window   KlineWindow        `json:"window"`
	Limit    int                `json:"limit"`
	Coins    []KlineCoinRequest `json:"coins"`
}

// PairKlineResponse is the candle series found for a coin and the pair/exchange it came from.
type PairKlineResponse struct {
	CoinID        uuid.UUID     `json:"coin_id"`
	Symbol        string        `json:"symbol"`
	TradingPairID uuid.UUID     `json:"trading_pair_id"`
	QuoteSymbol   string        `json:"quote_symbol"`
	Exchange      Exchange      `json:"exchange"`
	Interval      KlineInterval `json:"interval"`
	Klines        []Kline       `json:"klines"`
}

// KlineCoinRequestFromCoin builds a batch entry from a catalog coin, keeping pair order.
func KlineCoinRequestFromCoin(coin Coin) KlineCoinRequest {
	req := KlineCoinRequest{
		CoinID:       coin.ID,
		Symbol:       coin.Symbol,
		TradingPairs: make([]KlinePairRequest, 0, len(coin.TradingPairs)),
	}
	for _, tp := range coin.TradingPairs {
		req.TradingPairs = append(req.TradingPairs, KlinePairRequest{
			TradingPairID: tp.ID,
			QuoteSymbol:   tp.QuoteSymbol,
			Exchanges:     tp.Exchanges,
		})
	}
	return req
}
