package models

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Exchange identifies a spot exchange the catalog pulls listings and candles from.
type Exchange string

const (
	ExchangeBinance  Exchange = "binance"
	ExchangeBybit    Exchange = "bybit"
	ExchangeOKX      Exchange = "okx"
	ExchangeKucoin   Exchange = "kucoin"
	ExchangeCoinbase Exchange = "coinbase"
	ExchangeKraken   Exchange = "kraken"
	ExchangeGateIO   Exchange = "gateio"
	ExchangeMEXC     Exchange = "mexc"
)

// identityExchangeIDs maps our exchange ids to the identity provider's exchange ids.
var identityExchangeIDs = map[Exchange]string{
	ExchangeBinance:  "binance",
	ExchangeBybit:    "bybit_spot",
	ExchangeOKX:      "okex",
	ExchangeKucoin:   "kucoin",
	ExchangeCoinbase: "gdax",
	ExchangeKraken:   "kraken",
	ExchangeGateIO:   "gate",
	ExchangeMEXC:     "mxc",
}

// KnownExchanges returns every supported exchange in default priority order.
func KnownExchanges() []Exchange {
	return []Exchange{
		ExchangeBinance,
		ExchangeBybit,
		ExchangeOKX,
		ExchangeKucoin,
		ExchangeCoinbase,
		ExchangeKraken,
		ExchangeGateIO,
		ExchangeMEXC,
	}
}

// ParseExchange converts a configuration value into an Exchange.
func ParseExchange(value string) (Exchange, error) {
	exchange := Exchange(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := identityExchangeIDs[exchange]; !ok {
		return "", fmt.Errorf("unknown exchange: %q", value)
	}
	return exchange, nil
}

// String returns the exchange id.
func (e Exchange) String() string {
	return string(e)
}

// DisplayName returns a human readable exchange name.
func (e Exchange) DisplayName() string {
	switch e {
	case ExchangeOKX, ExchangeMEXC:
		return strings.ToUpper(string(e))
	case ExchangeGateIO:
		return "Gate.io"
	}
	return cases.Title(language.English).String(string(e))
}

// IdentityExchangeID returns the id the identity provider uses for this exchange.
func (e Exchange) IdentityExchangeID() string {
	if id, ok := identityExchangeIDs[e]; ok {
		return id
	}
	return string(e)
}

// TradingPairStatus reports whether an exchange currently trades a pair.
type TradingPairStatus string

const (
	TradingPairStatusAvailable   TradingPairStatus = "Available"
	TradingPairStatusUnavailable TradingPairStatus = "Unavailable"
)

// ExchangeTradingPair is one exchange's listing of a pair for a spot coin.
type ExchangeTradingPair struct {
	QuoteSymbol string            `json:"quote_symbol"`
	QuoteName   string            `json:"quote_name,omitempty"`
	Exchange    Exchange          `json:"exchange"`
	Status      TradingPairStatus `json:"status"`
}

// ExchangeSpotCoin is a base asset as reported by a single exchange.
type ExchangeSpotCoin struct {
	Symbol       string                `json:"symbol"`
	Name         string                `json:"name,omitempty"`
	TradingPairs []ExchangeTradingPair `json:"trading_pairs"`
}
