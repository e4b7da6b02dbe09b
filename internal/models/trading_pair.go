package models

import (
	"github.com/google/uuid"
)

// TradingPair links a main coin to a quote coin on a non-empty set of exchanges.
type TradingPair struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	CoinID      uuid.UUID  `json:"coin_id" db:"coin_id"`
	CrossCoinID uuid.UUID  `json:"cross_coin_id" db:"cross_coin_id"`
	QuoteSymbol string     `json:"quote_symbol" db:"quote_symbol"`
	Exchanges   []Exchange `json:"exchanges" db:"exchanges"`
}

// TradingPairCreateRequest is one entry of a trading-pair graph replacement.
type TradingPairCreateRequest struct {
	CoinID      uuid.UUID  `json:"coin_id"`
	CrossCoinID uuid.UUID  `json:"cross_coin_id"`
	Exchanges   []Exchange `json:"exchanges"`
}

// HasExchange reports whether the pair trades on the given exchange.
func (tp TradingPair) HasExchange(exchange Exchange) bool {
	for _, e := range tp.Exchanges {
		if e == exchange {
			return true
		}
	}
	return false
}
