// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"
	"time"

	"github.com/dstanton/folio/internal/models"
)

// RateClient fetches foreign-exchange rate tables from an upstream API.
type RateClient interface {
	// GetLatestRates retrieves the current rate table for a base currency.
	// The returned table includes rate[base] == 1. A client constructed
	// without an API key returns (nil, nil) — conversion unavailable.
	GetLatestRates(ctx context.Context, baseCurrency string) (models.RateTable, error)
}

// MarketDataClient provides quote, search, and daily-history access to one
// upstream market data API. Implementations return errors; the price service
// above them converts failures into degrade semantics.
type MarketDataClient interface {
	// GetQuote retrieves the latest price for a symbol.
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)

	// SearchSymbols finds symbols matching a keyword query.
	SearchSymbols(ctx context.Context, keywords string) (*models.SearchResult, error)

	// GetDailySeries retrieves daily closing prices, ascending by date,
	// covering at least the trailing rangeDays window.
	GetDailySeries(ctx context.Context, symbol string, rangeDays int) (models.PriceSeries, error)

	// Name identifies the upstream for logging and the Quote.Source tag.
	Name() string
}

// SeriesWindow computes the inclusive cutoff date for a trailing window of
// rangeDays plus a buffer, anchored at now.
func SeriesWindow(now time.Time, rangeDays, bufferDays int) string {
	return now.AddDate(0, 0, -(rangeDays + bufferDays)).Format("2006-01-02")
}
