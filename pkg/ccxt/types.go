package ccxt

import (
	"time"

	"github.com/shopspring/decimal"
)

// HealthResponse represents the health check response from the CCXT service
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ErrorResponse represents an error response from the CCXT service
type ErrorResponse struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Market represents a trading pair/market
type Market struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Base   string `json:"base"`
	Quote  string `json:"quote"`
	Type   string `json:"type"` // 'spot', 'swap', 'future', 'option'
	Spot   bool   `json:"spot"`
	Active bool   `json:"active"`
}

// IsSpot reports whether the market is a spot market. Some exchanges only set Type.
func (m Market) IsSpot() bool {
	return m.Spot || m.Type == "spot"
}

// MarketsResponse represents the response from /api/markets/{exchange}
type MarketsResponse struct {
	Exchange  string    `json:"exchange"`
	Markets   []Market  `json:"markets"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// Currency is an asset as described by an exchange.
type Currency struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// CurrenciesResponse represents the response from /api/currencies/{exchange}
type CurrenciesResponse struct {
	Exchange   string              `json:"exchange"`
	Currencies map[string]Currency `json:"currencies"`
	Timestamp  time.Time           `json:"timestamp"`
}

// OHLCV represents one candle
type OHLCV struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// OHLCVRequest selects candles for /api/ohlcv/{exchange}/{symbol}. Zero Since,
// Until and Limit are omitted from the query.
type OHLCVRequest struct {
	Exchange  string
	Symbol    string
	Timeframe string
	Since     int64
	Until     int64
	Limit     int
}

// OHLCVResponse represents the response from /api/ohlcv/{exchange}/{symbol}
type OHLCVResponse struct {
	Exchange  string    `json:"exchange"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	OHLCV     []OHLCV   `json:"ohlcv"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}
