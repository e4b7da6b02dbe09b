// Package exchange holds the per-exchange clients the catalog reads spot
// listings and candles from.
package exchange

import (
	"context"
	"fmt"

	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/utils"
)

// Client is one exchange's view of the spot market.
type Client interface {
	Exchange() models.Exchange
	GetAllSpotCoins(ctx context.Context) ([]models.ExchangeSpotCoin, error)
	GetKlineData(ctx context.Context, mainSymbol, quoteSymbol string, interval models.KlineInterval, window models.KlineWindow, limit int) ([]models.Kline, error)
}

// Registry is the ordered set of exchange clients. Order is the priority used
// whenever exchanges are listed.
type Registry struct {
	clients []Client
}

// NewRegistry rejects two clients for the same exchange.
func NewRegistry(clients ...Client) (*Registry, error) {
	seen := make(map[models.Exchange]bool, len(clients))
	for _, c := range clients {
		if seen[c.Exchange()] {
			return nil, fmt.Errorf("duplicate client for exchange %s", c.Exchange())
		}
		seen[c.Exchange()] = true
	}
	return &Registry{clients: append([]Client(nil), clients...)}, nil
}

func (r *Registry) Clients() []Client {
	return append([]Client(nil), r.clients...)
}

// Get returns the client representing the exchange.
func (r *Registry) Get(exchange models.Exchange) (Client, bool) {
	for _, c := range r.clients {
		if c.Exchange() == exchange {
			return c, true
		}
	}
	return nil, false
}

func (r *Registry) Exchanges() []models.Exchange {
	exchanges := make([]models.Exchange, 0, len(r.clients))
	for _, c := range r.clients {
		exchanges = append(exchanges, c.Exchange())
	}
	return exchanges
}

// Index returns the position of the exchange in the registry, or -1.
func (r *Registry) Index(exchange models.Exchange) int {
	for i, c := range r.clients {
		if c.Exchange() == exchange {
			return i
		}
	}
	return -1
}

// breakerGuarded is implemented by clients wrapped in circuit breakers.
type breakerGuarded interface {
	Breakers() []BreakerStatus
	ResetBreakers()
}

// BreakerStatuses lists the breakers of every guarded client in priority order.
func (r *Registry) BreakerStatuses() []BreakerStatus {
	statuses := make([]BreakerStatus, 0, 2*len(r.clients))
	for _, c := range r.clients {
		if guarded, ok := c.(breakerGuarded); ok {
			statuses = append(statuses, guarded.Breakers()...)
		}
	}
	return statuses
}

// ResetBreakers closes the breakers of one exchange.
func (r *Registry) ResetBreakers(exchange models.Exchange) error {
	c, ok := r.Get(exchange)
	if !ok {
		return utils.NewNotFoundError("exchange %s is not configured", exchange)
	}
	guarded, ok := c.(breakerGuarded)
	if !ok {
		return utils.NewNotFoundError("exchange %s has no circuit breaker", exchange)
	}
	guarded.ResetBreakers()
	return nil
}
