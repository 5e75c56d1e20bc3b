package models

import (
	"errors"
	"strings"
)

// ErrRateLimited signals an upstream rate-limit distinctly from generic
// failure so callers can surface a "try again shortly" state. It is never
// propagated past the price service boundary.
var ErrRateLimited = errors.New("rate limited by upstream provider")

// RateTable maps ISO currency codes to rates relative to one implicit
// reference currency. rate[X]/rate[Y] is the multiplier from Y-denominated
// to X-denominated amounts when both are present. A table fetched for base
// currency B has rate[B] == 1.
type RateTable map[string]float64

// Lookup returns the rate for a currency code, case-insensitively.
func (t RateTable) Lookup(code string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := t[strings.ToUpper(code)]
	return v, ok
}

// PricePoint is one daily closing price for a symbol.
type PricePoint struct {
	Date  string  `json:"date"`  // calendar date, "2006-01-02"
	Close float64 `json:"close"` // closing price, >= 0
}

// PriceSeries is an ordered-by-date sequence of PricePoints for one symbol.
// May have gaps (non-trading days, provider omissions).
type PriceSeries []PricePoint

// Quote sources
const (
	QuoteSourceLive = "live"
	QuoteSourceMock = "mock"
)

// Quote error tags surfaced instead of errors at the provider boundary.
const (
	QuoteErrMissingAPIKey = "missing_api_key"
	QuoteErrRateLimited   = "rate_limited"
	QuoteErrNoPrice       = "no_price"
	QuoteErrProvider      = "provider_error"
	QuoteErrNetwork       = "network_error"
)

// Quote is a point-in-time price for a symbol. Source indicates whether the
// price came from a live upstream or is a fallback; Error carries the degrade
// reason when Source is "mock".
type Quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Source string  `json:"source"` // "live" or "mock"
	Error  string  `json:"error,omitempty"`
}

// SymbolMatch is one normalized symbol-search result.
type SymbolMatch struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Region   string `json:"region"`
	Currency string `json:"currency,omitempty"`
}

// SearchResult is the normalized outcome of a symbol search. A failed or
// rate-limited search yields empty Results with the reason tagged, never an
// error.
type SearchResult struct {
	Results     []SymbolMatch `json:"results"`
	RateLimited bool          `json:"rate_limited,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// AggregatedPoint is one point in a reconstructed portfolio-value series,
// expressed in the caller's base currency.
type AggregatedPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Resolution selects the density of a downsampled series.
type Resolution string

const (
	ResolutionDaily   Resolution = "daily"
	ResolutionWeekly  Resolution = "weekly"
	ResolutionMonthly Resolution = "monthly"
)

// ParseResolution maps a request string to a Resolution, defaulting to daily.
func ParseResolution(s string) Resolution {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly", "w":
		return ResolutionWeekly
	case "monthly", "m":
		return ResolutionMonthly
	default:
		return ResolutionDaily
	}
}
