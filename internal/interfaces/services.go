// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"

	"github.com/dstanton/folio/internal/models"
)

// FXService provides cached FX rate tables and currency conversion.
type FXService interface {
	// GetRates returns the rate table for a base currency, cached per base.
	// A missing upstream credential yields an empty table and nil error;
	// an upstream failure with no usable cache yields a *RateFetchError.
	GetRates(ctx context.Context, baseCurrency string) (models.RateTable, error)

	// Convert converts an amount between two currency codes using the given
	// rate table. Never fails: unresolvable conversions return the amount
	// unchanged.
	Convert(amount float64, from, to string, rates models.RateTable) float64
}

// PriceService provides quotes, symbol search, and daily price series with
// caching and dual-source fallback. It never returns errors — upstream
// failures degrade to empty results with tagged reasons.
type PriceService interface {
	// GetQuote returns the latest price for a symbol, preferring the primary
	// source and falling back to the secondary when the primary yields a
	// non-positive price.
	GetQuote(ctx context.Context, symbol string) *models.Quote

	// SearchSymbols finds symbols matching a keyword query.
	SearchSymbols(ctx context.Context, keywords string) *models.SearchResult

	// GetDailySeries returns daily closes for the trailing rangeDays window,
	// ascending by date, deduplicated. Any upstream failure yields an empty
	// series.
	GetDailySeries(ctx context.Context, symbol string, rangeDays int) models.PriceSeries
}

// PortfolioService reconstructs portfolio value series and totals.
type PortfolioService interface {
	// ValueSeries computes the historical portfolio-value series for a user
	// over the trailing rangeDays window, in the given base currency,
	// downsampled to the requested resolution. Persisted snapshots are
	// preferred when available; otherwise the series is reconstructed from
	// per-symbol price history.
	ValueSeries(ctx context.Context, userID string, rangeDays int, baseCurrency string, resolution models.Resolution) ([]models.AggregatedPoint, error)

	// Summary computes current totals for a user's holdings in the given
	// base currency.
	Summary(ctx context.Context, userID string, baseCurrency string) (*models.PortfolioSummary, error)

	// RenderChart renders the value series as a PNG chart.
	RenderChart(ctx context.Context, userID string, rangeDays int, baseCurrency string) ([]byte, error)
}

// SnapshotService runs the daily portfolio snapshot job.
type SnapshotService interface {
	// RunDailySnapshot computes and upserts today's snapshot for every user
	// with at least one holding. Per-user failures are skipped; the returned
	// count is the number of snapshots written.
	RunDailySnapshot(ctx context.Context) (int, error)
}
