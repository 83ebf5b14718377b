package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL              = "https://api.coingecko.com/api/v3"
	defaultCacheTTL             = time.Minute
	apiKeyHeader                = "x-cg-demo-api-key"
	responseBodyReadLimit int64 = 1024
)

// Client reads USD spot prices from the CoinGecko simple price endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cache      *expirable.LRU[string, decimal.Decimal]
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the price client. Quotes are cached per asset for cfg.CacheTTL.
func NewClient(cfg config.PriceFeedConfig, opts ...Option) *Client {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	client := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		cache:      expirable.NewLRU[string, decimal.Decimal](16, nil, ttl),
	}
	if trimmed := strings.TrimSpace(cfg.BaseURL); trimmed != "" {
		client.baseURL = trimmed
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// USDPrice returns the spot price of assetID in USD.
func (c *Client) USDPrice(ctx context.Context, assetID string) (decimal.Decimal, error) {
	if c == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeDependency, "price feed not configured")
	}
	assetID = strings.ToLower(strings.TrimSpace(assetID))
	if assetID == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "asset id is required")
	}
	if price, ok := c.cache.Get(assetID); ok {
		return price, nil
	}

	query := url.Values{}
	query.Set("ids", assetID)
	query.Set("vs_currencies", "usd")
	endpoint := fmt.Sprintf("%s/simple/price?%s", strings.TrimRight(c.baseURL, "/"), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build price request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute price request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "price request failed")
	}

	var body map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode price response")
	}
	raw, ok := body[assetID]["usd"]
	if !ok {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("no usd quote for %s", assetID))
	}
	price, err := decimal.NewFromString(raw.String())
	if err != nil || !price.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("invalid usd quote %q for %s", raw.String(), assetID))
	}

	c.cache.Add(assetID, price)
	return price, nil
}
