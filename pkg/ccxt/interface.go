package ccxt

import "context"

// MarketDataClient is the part of the CCXT service the catalog reads from.
type MarketDataClient interface {
	HealthCheck(ctx context.Context) (*HealthResponse, error)
	GetMarkets(ctx context.Context, exchange string) (*MarketsResponse, error)
	GetCurrencies(ctx context.Context, exchange string) (*CurrenciesResponse, error)
	GetOHLCV(ctx context.Context, req OHLCVRequest) (*OHLCVResponse, error)
	Close() error
}

var _ MarketDataClient = (*Client)(nil)
