package coingecko

import (
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
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	marketsPageSize   = 250
	stablecoinsFilter = "stablecoins"
)

// Client talks to the CoinGecko v3 REST API. Requests share one rate limiter.
type Client struct {
	HTTPClient     *http.Client
	BaseURL        string
	apiKey         string
	vsCurrency     string
	maxTickerPages int
	limiter        *rate.Limiter
	logger         *logrus.Entry
}

func NewClient(cfg *config.CoinGeckoConfig, logger *logrus.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimitPerSecond > 0 {
		limit = rate.Limit(cfg.RateLimitPerSecond)
	}
	vsCurrency := cfg.VsCurrency
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	maxPages := cfg.MaxTickerPages
	if maxPages <= 0 {
		maxPages = 10
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		HTTPClient:     &http.Client{Timeout: timeout},
		BaseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		vsCurrency:     vsCurrency,
		maxTickerPages: maxPages,
		limiter:        rate.NewLimiter(limit, 1),
		logger:         logger.WithField("component", "coingecko"),
	}
}

// GetCoinsList returns the full identity list. Stablecoins are flagged from the
// stablecoins market category.
func (c *Client) GetCoinsList(ctx context.Context) ([]models.IdentityCoin, error) {
	var entries []CoinListEntry
	if err := c.get(ctx, "/coins/list", nil, &entries); err != nil {
		return nil, fmt.Errorf("failed to fetch coins list: %w", err)
	}

	stablecoins, err := c.stablecoinIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stablecoins: %w", err)
	}

	coins := make([]models.IdentityCoin, 0, len(entries))
	for _, e := range entries {
		coins = append(coins, models.IdentityCoin{
			ID:           e.ID,
			Symbol:       strings.ToUpper(e.Symbol),
			Name:         e.Name,
			IsStablecoin: stablecoins[e.ID],
		})
	}
	return coins, nil
}

// GetSymbolToIdMapForExchange maps each symbol traded on the exchange to its
// identity id, using both sides of every ticker.
func (c *Client) GetSymbolToIdMapForExchange(ctx context.Context, exchangeID string) (map[string]string, error) {
	symbolToID := make(map[string]string)
	for page := 1; page <= c.maxTickerPages; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))

		var resp ExchangeTickersResponse
		if err := c.get(ctx, "/exchanges/"+url.PathEscape(exchangeID)+"/tickers", params, &resp); err != nil {
			return nil, fmt.Errorf("failed to fetch tickers for %s: %w", exchangeID, err)
		}
		if len(resp.Tickers) == 0 {
			break
		}
		for _, t := range resp.Tickers {
			addSymbol(symbolToID, t.Base, t.CoinID)
			addSymbol(symbolToID, t.Target, t.TargetCoinID)
		}
	}
	return symbolToID, nil
}

// GetAssetsInfo returns the market snapshot for the given ids. Ids unknown to
// CoinGecko are simply absent from the result.
func (c *Client) GetAssetsInfo(ctx context.Context, ids []string) ([]models.AssetInfo, error) {
	assets := make([]models.AssetInfo, 0, len(ids))
	for start := 0; start < len(ids); start += marketsPageSize {
		end := min(start+marketsPageSize, len(ids))

		params := url.Values{}
		params.Set("vs_currency", c.vsCurrency)
		params.Set("ids", strings.Join(ids[start:end], ","))
		params.Set("per_page", strconv.Itoa(marketsPageSize))

		var entries []MarketEntry
		if err := c.get(ctx, "/coins/markets", params, &entries); err != nil {
			return nil, fmt.Errorf("failed to fetch market data: %w", err)
		}
		for _, e := range entries {
			assets = append(assets, models.AssetInfo{
				ID:                       e.ID,
				MarketCap:                e.MarketCap,
				Price:                    e.CurrentPrice,
				PriceChangePercentage24h: e.PriceChangePercentage24h,
			})
		}
	}
	return assets, nil
}

func (c *Client) stablecoinIDs(ctx context.Context) (map[string]bool, error) {
	ids := make(map[string]bool)
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("vs_currency", c.vsCurrency)
		params.Set("category", stablecoinsFilter)
		params.Set("per_page", strconv.Itoa(marketsPageSize))
		params.Set("page", strconv.Itoa(page))

		var entries []MarketEntry
		if err := c.get(ctx, "/coins/markets", params, &entries); err != nil {
			return nil, err
		}
		for _, e := range entries {
			ids[e.ID] = true
		}
		if len(entries) < marketsPageSize {
			return ids, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Celebrum-Catalog/1.0")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.WithError(err).Warn("Error closing response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func addSymbol(m map[string]string, symbol, id string) {
	if symbol == "" || id == "" {
		return
	}
	if _, exists := m[symbol]; !exists {
		m[symbol] = id
	}
}
