package coingecko

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// CoinListEntry is one element of /coins/list.
type CoinListEntry struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// MarketEntry is one element of /coins/markets. Numeric fields may be null.
type MarketEntry struct {
	ID                       string          `json:"id"`
	Symbol                   string          `json:"symbol"`
	Name                     string          `json:"name"`
	CurrentPrice             decimal.Decimal `json:"current_price"`
	MarketCap                decimal.Decimal `json:"market_cap"`
	PriceChangePercentage24h decimal.Decimal `json:"price_change_percentage_24h"`
	LastUpdated              time.Time       `json:"last_updated"`
}

// ExchangeTicker is one ticker of /exchanges/{id}/tickers.
type ExchangeTicker struct {
	Base         string `json:"base"`
	Target       string `json:"target"`
	CoinID       string `json:"coin_id"`
	TargetCoinID string `json:"target_coin_id"`
	IsStale      bool   `json:"is_stale"`
}

// ExchangeTickersResponse is one page of /exchanges/{id}/tickers.
type ExchangeTickersResponse struct {
	Name    string           `json:"name"`
	Tickers []ExchangeTicker `json:"tickers"`
}

// APIError is a non-2xx reply from CoinGecko.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return "coingecko error (" + strconv.Itoa(e.StatusCode) + "): " + e.Message
}
