package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IdentityCoin is an entry of the identity provider's full coin list.
type IdentityCoin struct {
	ID           string `json:"id"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	IsStablecoin bool   `json:"is_stablecoin"`
}

// AssetInfo is the identity provider's market snapshot for one identity id.
type AssetInfo struct {
	ID                       string          `json:"id"`
	MarketCap                decimal.Decimal `json:"market_cap"`
	Price                    decimal.Decimal `json:"price"`
	PriceChangePercentage24h decimal.Decimal `json:"price_change_percentage_24h"`
}

// MarketDataUpdateRequest carries new market snapshot values for a coin.
type MarketDataUpdateRequest struct {
	CoinID                   uuid.UUID       `json:"coin_id"`
	MarketCap                decimal.Decimal `json:"market_cap"`
	Price                    decimal.Decimal `json:"price"`
	PriceChangePercentage24h decimal.Decimal `json:"price_change_percentage_24h"`
}

// CoinMarketData is the market snapshot of a coin as stored in the catalog.
type CoinMarketData struct {
	CoinID                   uuid.UUID       `json:"coin_id" db:"id"`
	Symbol                   string          `json:"symbol" db:"symbol"`
	IdentityID               string          `json:"identity_id" db:"identity_id"`
	MarketCap                decimal.Decimal `json:"market_cap" db:"market_cap"`
	Price                    decimal.Decimal `json:"price" db:"price"`
	PriceChangePercentage24h decimal.Decimal `json:"price_change_percentage_24h" db:"price_change_24h"`
	UpdatedAt                time.Time       `json:"updated_at" db:"market_data_updated_at"`
}
