// Package alphavantage provides a client for the Alpha Vantage market data API
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dstanton/folio/internal/common"
	"github.com/dstanton/folio/internal/interfaces"
	"github.com/dstanton/folio/internal/models"
)

const (
	DefaultBaseURL   = "https://www.alphavantage.co"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client implements the MarketDataClient interface against Alpha Vantage.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time // injectable clock for testing
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithClock sets the time source used for series window cutoffs.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Alpha Vantage client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies this upstream.
func (c *Client) Name() string { return "alphavantage" }

// APIError represents an upstream API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alphavantage API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// query performs a rate-limited GET against /query and decodes into raw JSON.
// Alpha Vantage signals rate limiting and errors inside a 200 payload, so the
// caller inspects the decoded map.
func (c *Client) query(ctx context.Context, params url.Values) (map[string]json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("alphavantage: %s", models.QuoteErrMissingAPIKey)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params.Set("apikey", c.apiKey)
	params.Set("datatype", "json")

	reqURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("function", params.Get("function")).Msg("AlphaVantage API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   "/query",
		}
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// Rate limit and error markers come back as 200 responses
	if _, ok := payload["Note"]; ok {
		return nil, models.ErrRateLimited
	}
	if _, ok := payload["Information"]; ok {
		return nil, models.ErrRateLimited
	}
	if msg, ok := payload["Error Message"]; ok {
		return nil, fmt.Errorf("alphavantage error: %s", string(msg))
	}

	return payload, nil
}

// flexFloat handles JSON values that may be either a number or a string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

// GetQuote retrieves the latest price via GLOBAL_QUOTE.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	payload, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	var global struct {
		Price flexFloat `json:"05. price"`
	}
	if raw, ok := payload["Global Quote"]; ok {
		if err := json.Unmarshal(raw, &global); err != nil {
			return nil, fmt.Errorf("failed to decode quote: %w", err)
		}
	}

	return &models.Quote{
		Symbol: strings.ToUpper(symbol),
		Price:  float64(global.Price),
		Source: models.QuoteSourceLive,
	}, nil
}

// SearchSymbols finds symbols via SYMBOL_SEARCH.
func (c *Client) SearchSymbols(ctx context.Context, keywords string) (*models.SearchResult, error) {
	trimmed := strings.TrimSpace(keywords)
	if trimmed == "" {
		return &models.SearchResult{}, nil
	}

	params := url.Values{}
	params.Set("function", "SYMBOL_SEARCH")
	params.Set("keywords", trimmed)

	payload, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	var matches []struct {
		Symbol   string `json:"1. symbol"`
		Name     string `json:"2. name"`
		Region   string `json:"4. region"`
		Currency string `json:"8. currency"`
	}
	if raw, ok := payload["bestMatches"]; ok {
		if err := json.Unmarshal(raw, &matches); err != nil {
			return nil, fmt.Errorf("failed to decode search results: %w", err)
		}
	}

	result := &models.SearchResult{Results: make([]models.SymbolMatch, 0, len(matches))}
	for _, m := range matches {
		result.Results = append(result.Results, models.SymbolMatch{
			Symbol:   m.Symbol,
			Name:     m.Name,
			Region:   m.Region,
			Currency: m.Currency,
		})
	}

	c.logger.Debug().Int("results", len(result.Results)).Msg("AlphaVantage search complete")

	return result, nil
}

// GetDailySeries retrieves daily adjusted closes via TIME_SERIES_DAILY_ADJUSTED,
// filtered to the trailing rangeDays window (plus buffer) and sorted ascending.
func (c *Client) GetDailySeries(ctx context.Context, symbol string, rangeDays int) (models.PriceSeries, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	params.Set("symbol", symbol)
	if rangeDays > 100 {
		params.Set("outputsize", "full")
	} else {
		params.Set("outputsize", "compact")
	}

	payload, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	var series map[string]struct {
		AdjustedClose flexFloat `json:"5. adjusted close"`
		Close         flexFloat `json:"4. close"`
	}
	if raw, ok := payload["Time Series (Daily)"]; ok {
		if err := json.Unmarshal(raw, &series); err != nil {
			return nil, fmt.Errorf("failed to decode series: %w", err)
		}
	}

	cutoff := interfaces.SeriesWindow(c.now(), rangeDays, common.SeriesBufferDays)

	points := make(models.PriceSeries, 0, len(series))
	for date, bar := range series {
		if date < cutoff {
			continue
		}
		close := float64(bar.AdjustedClose)
		if close == 0 {
			close = float64(bar.Close)
		}
		points = append(points, models.PricePoint{Date: date, Close: close})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })

	return points, nil
}

// Ensure Client implements MarketDataClient
var _ interfaces.MarketDataClient = (*Client)(nil)
