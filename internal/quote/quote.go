// Package quote looks up current market prices for ticker symbols
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avelichko/papertrade/internal/models"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when the provider does not know the symbol
var ErrNotFound = errors.New("symbol not found")

// Provider supplies the current price for a symbol
type Provider interface {
	Lookup(ctx context.Context, symbol string) (models.Quote, error)
}

// Client fetches quotes from an IEX-style HTTP API:
// GET {base}/stock/{symbol}/quote?token={key}
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a quote API client
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Lookup fetches the current quote for a symbol
func (c *Client) Lookup(ctx context.Context, symbol string) (models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return models.Quote{}, ErrNotFound
	}

	u := fmt.Sprintf("%s/stock/%s/quote?token=%s", c.baseURL, url.PathEscape(symbol), url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to build quote request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.Quote{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return models.Quote{}, fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	var body struct {
		Symbol      string      `json:"symbol"`
		LatestPrice json.Number `json:"latestPrice"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Quote{}, fmt.Errorf("failed to decode quote: %w", err)
	}

	price, err := decimal.NewFromString(body.LatestPrice.String())
	if err != nil {
		return models.Quote{}, fmt.Errorf("invalid price %q: %w", body.LatestPrice, err)
	}

	return models.Quote{Symbol: symbol, Price: price}, nil
}
