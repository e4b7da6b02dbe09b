package ccxt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/irfndi/celebrum-catalog/internal/config"
	"github.com/sirupsen/logrus"
)

// Client represents the CCXT HTTP client
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	timeout    time.Duration
}

// NewClient creates a new CCXT client instance
func NewClient(cfg *config.CCXTConfig) *Client {
	timeout := time.Duration(cfg.GetTimeout()) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		BaseURL: strings.TrimSuffix(cfg.GetServiceURL(), "/"),
		timeout: timeout,
	}
}

// HealthCheck checks if the CCXT service is healthy
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var response HealthResponse
	if err := c.makeRequest(ctx, http.MethodGet, "/health", nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetMarkets retrieves all markets listed by an exchange
func (c *Client) GetMarkets(ctx context.Context, exchange string) (*MarketsResponse, error) {
	var response MarketsResponse
	if err := c.makeRequest(ctx, http.MethodGet, "/api/markets/"+exchange, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetCurrencies retrieves the currencies an exchange knows, keyed by code
func (c *Client) GetCurrencies(ctx context.Context, exchange string) (*CurrenciesResponse, error) {
	var response CurrenciesResponse
	if err := c.makeRequest(ctx, http.MethodGet, "/api/currencies/"+exchange, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetOHLCV retrieves candles for a symbol such as "BTC/USDT"
func (c *Client) GetOHLCV(ctx context.Context, req OHLCVRequest) (*OHLCVResponse, error) {
	path := fmt.Sprintf("/api/ohlcv/%s/%s", req.Exchange, req.Symbol)
	params := url.Values{}
	if req.Timeframe != "" {
		params.Set("timeframe", req.Timeframe)
	}
	if req.Since > 0 {
		params.Set("since", strconv.FormatInt(req.Since, 10))
	}
	if req.Until > 0 {
		params.Set("until", strconv.FormatInt(req.Until, 10))
	}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var response OHLCVResponse
	if err := c.makeRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// makeRequest is a helper method to make HTTP requests to the CCXT service
func (c *Client) makeRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Celebrum-Catalog/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.WithError(err).Warn("Error closing CCXT response body")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error != "" {
			return &ServiceError{StatusCode: resp.StatusCode, Message: errorResp.Error}
		}
		return &ServiceError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// Close closes the HTTP client (if needed for cleanup)
func (c *Client) Close() error {
	c.HTTPClient.CloseIdleConnections()
	return nil
}

// ServiceError is a non-2xx reply from the CCXT service.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("CCXT service error (%d): %s", e.StatusCode, e.Message)
}
