package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CoinCategory classifies a coin independently of its market data.
type CoinCategory string

const (
	CoinCategoryNone       CoinCategory = "None"
	CoinCategoryStablecoin CoinCategory = "Stablecoin"
	CoinCategoryFiat       CoinCategory = "Fiat"
)

// Coin is a catalog entry. Symbol is unique and case-sensitive.
// QuoteOnly marks coins the reconciler created as quote assets; they are never
// treated as main coins.
type Coin struct {
	ID                       uuid.UUID        `json:"id" db:"id"`
	Symbol                   string           `json:"symbol" db:"symbol"`
	Name                     string           `json:"name" db:"name"`
	Category                 CoinCategory     `json:"category" db:"category"`
	IdentityID               *string          `json:"identity_id,omitempty" db:"identity_id"`
	MarketCap                *decimal.Decimal `json:"market_cap,omitempty" db:"market_cap"`
	Price                    *decimal.Decimal `json:"price,omitempty" db:"price"`
	PriceChangePercentage24h *decimal.Decimal `json:"price_change_percentage_24h,omitempty" db:"price_change_24h"`
	QuoteOnly                bool             `json:"quote_only" db:"quote_only"`
	TradingPairs             []TradingPair    `json:"trading_pairs,omitempty"`
}

// HasIdentity reports whether the coin carries a non-empty external identity id.
func (c Coin) HasIdentity() bool {
	return c.IdentityID != nil && *c.IdentityID != ""
}

// QuoteCoinCreateRequest asks the catalog to create a coin used as a quote asset.
type QuoteCoinCreateRequest struct {
	Symbol     string       `json:"symbol"`
	Name       string       `json:"name"`
	IdentityID *string      `json:"identity_id,omitempty"`
	Category   CoinCategory `json:"category"`
}

// CandidateTradingPair is a pair merged across every exchange that lists it as available.
type CandidateTradingPair struct {
	QuoteSymbol     string       `json:"quote_symbol"`
	QuoteName       string       `json:"quote_name,omitempty"`
	QuoteIdentityID string       `json:"quote_identity_id,omitempty"`
	QuoteCategory   CoinCategory `json:"quote_category"`
	Exchanges       []Exchange   `json:"exchanges"`
}

// CandidateCoin is the merged, identity-annotated view of a coin before reconciliation.
type CandidateCoin struct {
	Symbol       string                 `json:"symbol"`
	Name         string                 `json:"name,omitempty"`
	IdentityID   string                 `json:"identity_id,omitempty"`
	Category     CoinCategory           `json:"category"`
	TradingPairs []CandidateTradingPair `json:"trading_pairs"`
}
