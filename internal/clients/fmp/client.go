// Package fmp provides a client for the Financial Modeling Prep market data API
package fmp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dstanton/folio/internal/common"
	"github.com/dstanton/folio/internal/interfaces"
	"github.com/dstanton/folio/internal/models"
)

const (
	DefaultBaseURL   = "https://financialmodelingprep.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client implements the MarketDataClient interface against FMP.
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

// NewClient creates a new FMP client.
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
func (c *Client) Name() string { return "fmp" }

// APIError represents an upstream API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("FMP API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request and decodes the JSON body.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if c.apiKey == "" {
		return fmt.Errorf("fmp: %s", models.QuoteErrMissingAPIKey)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("path", path).Msg("FMP API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.ErrRateLimited
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetQuote retrieves the latest price via the stable quote endpoint.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	key := strings.ToUpper(symbol)

	params := url.Values{}
	params.Set("symbol", key)

	var rows []struct {
		Price float64 `json:"price"`
		C     float64 `json:"c"`
	}
	if err := c.get(ctx, "/stable/quote", params, &rows); err != nil {
		return nil, err
	}

	price := 0.0
	if len(rows) > 0 {
		price = rows[0].Price
		if price == 0 {
			price = rows[0].C
		}
	}

	return &models.Quote{
		Symbol: key,
		Price:  price,
		Source: models.QuoteSourceLive,
	}, nil
}

// searchRow is the loose shape shared by the FMP search endpoints.
type searchRow struct {
	Symbol            string `json:"symbol"`
	Ticker            string `json:"ticker"`
	Name              string `json:"name"`
	CompanyName       string `json:"companyName"`
	Exchange          string `json:"exchange"`
	ExchangeShortName string `json:"exchangeShortName"`
	Currency          string `json:"currency"`
}

func (r searchRow) toMatch() models.SymbolMatch {
	symbol := r.Symbol
	if symbol == "" {
		symbol = r.Ticker
	}
	name := r.Name
	if name == "" {
		name = r.CompanyName
	}
	region := r.ExchangeShortName
	if region == "" {
		region = r.Exchange
	}
	return models.SymbolMatch{
		Symbol:   symbol,
		Name:     name,
		Region:   region,
		Currency: r.Currency,
	}
}

// SearchSymbols tries the symbol search endpoint first, then the name search.
// Whichever returns results first wins.
func (c *Client) SearchSymbols(ctx context.Context, keywords string) (*models.SearchResult, error) {
	trimmed := strings.TrimSpace(keywords)
	if trimmed == "" {
		return &models.SearchResult{}, nil
	}

	endpoints := []string{"/stable/search-symbol", "/stable/search-name"}

	var lastErr error
	for _, path := range endpoints {
		params := url.Values{}
		params.Set("query", trimmed)

		var rows []searchRow
		if err := c.get(ctx, path, params, &rows); err != nil {
			lastErr = err
			continue
		}

		if len(rows) == 0 {
			continue
		}

		result := &models.SearchResult{Results: make([]models.SymbolMatch, 0, len(rows))}
		for _, r := range rows {
			result.Results = append(result.Results, r.toMatch())
		}
		return result, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return &models.SearchResult{}, nil
}

// GetDailySeries retrieves daily closes from the historical price endpoint,
// falling back to the daily chart endpoint when the first returns nothing.
// Results are filtered to the trailing window, deduplicated, and ascending.
func (c *Client) GetDailySeries(ctx context.Context, symbol string, rangeDays int) (models.PriceSeries, error) {
	key := strings.ToUpper(symbol)

	points, err := c.historicalSeries(ctx, key, rangeDays)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		points, err = c.chartSeries(ctx, key, rangeDays)
		if err != nil {
			return nil, err
		}
	}

	cutoff := interfaces.SeriesWindow(c.now(), rangeDays, common.SeriesBufferDays)

	seen := make(map[string]bool, len(points))
	filtered := make(models.PriceSeries, 0, len(points))
	for _, p := range points {
		if p.Date == "" || p.Date < cutoff || p.Close <= 0 || seen[p.Date] {
			continue
		}
		seen[p.Date] = true
		filtered = append(filtered, p)
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Date < filtered[j].Date })

	return filtered, nil
}

func (c *Client) historicalSeries(ctx context.Context, symbol string, rangeDays int) (models.PriceSeries, error) {
	timeseries := rangeDays + 5
	if timeseries < 30 {
		timeseries = 30
	}

	params := url.Values{}
	params.Set("serietype", "line")
	params.Set("timeseries", fmt.Sprintf("%d", timeseries))

	var payload struct {
		Historical []struct {
			Date     string  `json:"date"`
			Close    float64 `json:"close"`
			AdjClose float64 `json:"adjClose"`
		} `json:"historical"`
	}
	path := fmt.Sprintf("/stable/historical-price-full/%s", url.PathEscape(symbol))
	if err := c.get(ctx, path, params, &payload); err != nil {
		return nil, err
	}

	points := make(models.PriceSeries, 0, len(payload.Historical))
	for _, h := range payload.Historical {
		close := h.Close
		if close == 0 {
			close = h.AdjClose
		}
		points = append(points, models.PricePoint{Date: h.Date, Close: close})
	}
	return points, nil
}

func (c *Client) chartSeries(ctx context.Context, symbol string, rangeDays int) (models.PriceSeries, error) {
	to := c.now()
	from := to.AddDate(0, 0, -(rangeDays + common.SeriesBufferDays))

	params := url.Values{}
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))

	var rows []struct {
		Date  string  `json:"date"`
		Close float64 `json:"close"`
	}
	path := fmt.Sprintf("/stable/historical-chart/1day/%s", url.PathEscape(symbol))
	if err := c.get(ctx, path, params, &rows); err != nil {
		return nil, err
	}

	points := make(models.PriceSeries, 0, len(rows))
	for _, r := range rows {
		date := r.Date
		if len(date) > 10 {
			date = date[:10] // strip time component from datetime rows
		}
		points = append(points, models.PricePoint{Date: date, Close: r.Close})
	}
	return points, nil
}

// Ensure Client implements MarketDataClient
var _ interfaces.MarketDataClient = (*Client)(nil)
