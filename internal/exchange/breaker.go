package exchange

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/utils"
	"github.com/irfndi/celebrum-catalog/pkg/ccxt"
	"github.com/sirupsen/logrus"
)

// ErrCircuitOpen is returned while a breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of the circuit breaker
type CircuitBreakerState int

const (
	Closed CircuitBreakerState = iota
	Open
	HalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // successes in half-open before closing
	OpenTimeout      time.Duration // time spent open before probing
}

// CircuitBreakerStats holds statistics for the circuit breaker
type CircuitBreakerStats struct {
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	RejectedRequests   int64     `json:"rejected_requests"`
	LastFailureTime    time.Time `json:"last_failure_time"`
	StateChanges       int64     `json:"state_changes"`
}

// CircuitBreaker trips after consecutive failures. The wrapped call runs
// outside the lock so concurrent calls are not serialized.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	logger *logrus.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	successCount    int
	lastStateChange time.Time
	stats           CircuitBreakerStats
}

func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CircuitBreaker{
		name:            name,
		config:          config,
		logger:          logger,
		now:             time.Now,
		state:           Closed,
		lastStateChange: time.Now(),
	}
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)
	switch {
	case err == nil:
		cb.onSuccess()
	case ctx.Err() != nil:
		// The caller's own deadline or cancellation ended the call.
	case countsAsFailure(err):
		cb.onFailure(err)
	}
	return err
}

// countsAsFailure ignores cancellation and request-level rejections (e.g. an
// unknown symbol), which say nothing about the exchange's health.
func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var serviceErr *ccxt.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.StatusCode >= 500 || serviceErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.TotalRequests++
	if cb.state == Open {
		if cb.now().Sub(cb.lastStateChange) < cb.config.OpenTimeout {
			cb.stats.RejectedRequests++
			return false
		}
		cb.setState(HalfOpen)
		cb.successCount = 0
	}
	return true
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.SuccessfulRequests++
	switch cb.state {
	case Closed:
		cb.failureCount = 0
	case HalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(Closed)
			cb.failureCount = 0
			cb.successCount = 0
		}
	}
}

func (cb *CircuitBreaker) onFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.FailedRequests++
	cb.stats.LastFailureTime = cb.now()

	switch cb.state {
	case Closed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(Open)
		}
	case HalfOpen:
		cb.setState(Open)
		cb.successCount = 0
	}

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"state":           cb.state.String(),
		"failure_count":   cb.failureCount,
	}).WithError(err).Debug("Circuit breaker: failed execution")
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	if cb.state == newState {
		return
	}
	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = cb.now()
	cb.stats.StateChanges++

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"old_state":       oldState.String(),
		"new_state":       newState.String(),
		"failure_count":   cb.failureCount,
	}).Info("Circuit breaker state changed")
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(Closed)
	cb.failureCount = 0
	cb.successCount = 0
}

// Guarded operations. Each has its own breaker so slow candle fetches cannot
// lock out listings.
const (
	OperationSpotCoins = "spot_coins"
	OperationKlines    = "klines"
)

// BreakerStatus is a snapshot of one guarded operation of one exchange.
type BreakerStatus struct {
	Exchange  models.Exchange     `json:"exchange"`
	Operation string              `json:"operation"`
	State     string              `json:"state"`
	Stats     CircuitBreakerStats `json:"stats"`
}

// BreakerClient guards a Client with one circuit breaker per operation.
// Rejected calls fail with an Unavailable error.
type BreakerClient struct {
	next      Client
	spotCoins *CircuitBreaker
	klines    *CircuitBreaker
}

func NewBreakerClient(next Client, config CircuitBreakerConfig, logger *logrus.Logger) *BreakerClient {
	name := next.Exchange().String()
	return &BreakerClient{
		next:      next,
		spotCoins: NewCircuitBreaker(name+"/"+OperationSpotCoins, config, logger),
		klines:    NewCircuitBreaker(name+"/"+OperationKlines, config, logger),
	}
}

func (c *BreakerClient) Exchange() models.Exchange {
	return c.next.Exchange()
}

// Breakers reports the state of every breaker of this client.
func (c *BreakerClient) Breakers() []BreakerStatus {
	return []BreakerStatus{
		c.status(OperationSpotCoins, c.spotCoins),
		c.status(OperationKlines, c.klines),
	}
}

// ResetBreakers closes every breaker of this client.
func (c *BreakerClient) ResetBreakers() {
	c.spotCoins.Reset()
	c.klines.Reset()
}

func (c *BreakerClient) status(operation string, cb *CircuitBreaker) BreakerStatus {
	return BreakerStatus{
		Exchange:  c.Exchange(),
		Operation: operation,
		State:     cb.State().String(),
		Stats:     cb.Stats(),
	}
}

func (c *BreakerClient) GetAllSpotCoins(ctx context.Context) ([]models.ExchangeSpotCoin, error) {
	var coins []models.ExchangeSpotCoin
	err := c.spotCoins.Execute(ctx, func(ctx context.Context) error {
		var err error
		coins, err = c.next.GetAllSpotCoins(ctx)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, utils.NewUnavailableError(c.Exchange().DisplayName(), err)
	}
	return coins, err
}

func (c *BreakerClient) GetKlineData(ctx context.Context, mainSymbol, quoteSymbol string, interval models.KlineInterval, window models.KlineWindow, limit int) ([]models.Kline, error) {
	var klines []models.Kline
	err := c.klines.Execute(ctx, func(ctx context.Context) error {
		var err error
		klines, err = c.next.GetKlineData(ctx, mainSymbol, quoteSymbol, interval, window, limit)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, utils.NewUnavailableError(c.Exchange().DisplayName(), err)
	}
	return klines, err
}
