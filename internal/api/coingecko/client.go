package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	httpClient "github.com/Alias1177/Aura/internal/platform/http"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public CoinGecko API root
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// Price is the decoded simple/price entry for one coin.
// Nil fields were missing or not numeric in the payload.
type Price struct {
	Price     *float64
	Change24h *float64 // percent
}

// Client is the CoinGecko API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new CoinGecko client
type ClientOptions struct {
	BaseURL         string
	APIKey          string // optional demo key
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new CoinGecko API client
func NewClient(options ClientOptions) *Client {
	httpOpts := httpClient.ClientOptions{
		Timeout:         options.RequestTimeout,
		RequestsPerSec:  options.RequestsPerSec,
		MaxRetries:      options.MaxRetries,
		MaxRetryTimeout: options.MaxRetryTimeout,
	}

	// Short defaults: a slow upstream delays the caller's response
	if httpOpts.Timeout == 0 {
		httpOpts.Timeout = 10 * time.Second
	}
	if httpOpts.MaxRetryTimeout == 0 {
		httpOpts.MaxRetryTimeout = 5 * time.Second
	}

	baseURL := strings.TrimRight(options.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		apiKey:     options.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient.NewClient(httpOpts),
		logger:     log.With().Str("component", "coingecko_client").Logger(),
	}
}

// SimplePrice fetches the price and 24h percent change of every id in one request
func (c *Client) SimplePrice(ctx context.Context, ids []string, vsCurrency string) (map[string]Price, error) {
	if len(ids) == 0 {
		return map[string]Price{}, nil
	}

	vsCurrency = strings.ToLower(vsCurrency)
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", vsCurrency)
	query.Set("include_24hr_change", "true")
	endpoint := c.baseURL + "/simple/price?" + query.Encode()

	c.logger.Debug().Str("url", endpoint).Msg("Fetching prices")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	changeKey := vsCurrency + "_24h_change"
	prices := make(map[string]Price, len(raw))
	for id, fields := range raw {
		prices[id] = Price{
			Price:     number(fields[vsCurrency]),
			Change24h: number(fields[changeKey]),
		}
	}

	c.logger.Debug().Int("count", len(prices)).Msg("Fetched prices")
	return prices, nil
}

// number decodes a JSON number, returning nil for anything else (null, strings, objects)
func number(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}
