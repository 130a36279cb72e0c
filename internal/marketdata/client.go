/**
 * @description
 * HTTP Client for the upstream market-data quote API.
 * Translates ticker symbols into current price snapshots.
 *
 * "No usable quote" is not an error: GetQuote returns (nil, nil) and the
 * batch form simply omits the symbol from the result map. Only
 * transport-level failures surface as errors, which callers treat as
 * "skip this symbol for now".
 *
 * @dependencies
 * - net/http
 * - encoding/json
 * - backend/internal/config
 */

package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stockpulse/backend/internal/config"
)

const (
	DefaultTimeout = 10 * time.Second

	// The upstream rejects requests without a browser-ish user agent
	userAgent = "Mozilla/5.0 (compatible; StockPulse/1.0)"
)

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		BaseURL: cfg.MarketData.BaseURL,
		APIKey:  cfg.MarketData.APIKey,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// GetQuote fetches the current snapshot for a single symbol.
// Returns (nil, nil) when the upstream has no usable quote for it.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	quotes, err := c.GetQuotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	return quotes[strings.ToUpper(symbol)], nil
}

// GetQuotes fetches snapshots for a list of symbols in one request.
// Symbols with no data are absent from the returned map.
func (c *Client) GetQuotes(ctx context.Context, symbols []string) (map[string]*Quote, error) {
	if len(symbols) == 0 {
		return map[string]*Quote{}, nil
	}

	normalized := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			normalized = append(normalized, s)
		}
	}

	u, err := url.Parse(fmt.Sprintf("%s/v7/finance/quote", c.BaseURL))
	if err != nil {
		return nil, err
	}

	q := u.Query()
	q.Set("symbols", strings.Join(normalized, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return map[string]*Quote{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote api error: status %d", resp.StatusCode)
	}

	var payload quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	if payload.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("quote api error: %s", payload.QuoteResponse.Error.Description)
	}

	quotes := make(map[string]*Quote, len(payload.QuoteResponse.Result))
	for _, r := range payload.QuoteResponse.Result {
		if quote := r.toQuote(); quote != nil {
			quotes[quote.Symbol] = quote
		}
	}

	return quotes, nil
}
