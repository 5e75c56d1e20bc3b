// Package portfolio reconstructs historical portfolio-value series from
// per-symbol price history and holding positions.
package portfolio

import (
	"sort"

	"github.com/dstanton/folio/internal/models"
	"github.com/dstanton/folio/internal/services/fx"
)

// Aggregate merges per-symbol daily price series and holding positions into
// one unified daily value series in the base currency.
//
// The date axis is the union of all dates appearing in any holding's series,
// ascending. On each date a holding contributes its most recent close at or
// before that date (carry-forward) times quantity, converted to the base
// currency. Dates before a symbol's earliest data are seeded with the first
// point — a backward-fill that keeps recently-listed symbols visible across
// the whole range. A holding with no series contributes its cost basis on
// every date instead of silently dropping to zero.
//
// Pure and deterministic: identical inputs produce identical output, and no
// input can make it fail — unresolvable conversions degrade through
// fx.Convert's no-op path. An empty date union yields an empty (non-nil)
// result so callers can show a "no chart data" state.
func Aggregate(holdings []*models.Holding, seriesBySymbol map[string]models.PriceSeries, baseCurrency string, rates models.RateTable) []models.AggregatedPoint {
	dates := unionDates(seriesBySymbol)
	if len(dates) == 0 {
		return []models.AggregatedPoint{}
	}

	// Monotonic per-symbol cursors: one forward pass over each series for
	// the whole date union, O(dates + points) rather than O(dates × points).
	cursors := make(map[string]int, len(seriesBySymbol))

	aggregated := make([]models.AggregatedPoint, 0, len(dates))
	for _, d := range dates {
		var total float64
		for _, h := range holdings {
			series := seriesBySymbol[h.Symbol]
			if len(series) == 0 {
				// Cost-basis fallback keeps dateless holdings visible
				total += fx.Convert(h.AverageCost*h.Quantity, h.CurrencyOr(baseCurrency), baseCurrency, rates)
				continue
			}

			idx := cursors[h.Symbol]
			for idx+1 < len(series) && series[idx+1].Date <= d {
				idx++
			}
			cursors[h.Symbol] = idx

			close := series[idx].Close
			if series[idx].Date > d {
				close = series[0].Close // backward-carry seed before first data point
			}

			total += fx.Convert(close*h.Quantity, h.CurrencyOr(baseCurrency), baseCurrency, rates)
		}
		aggregated = append(aggregated, models.AggregatedPoint{Date: d, Value: total})
	}

	return aggregated
}

// unionDates collects the sorted ascending union of all series dates.
func unionDates(seriesBySymbol map[string]models.PriceSeries) []string {
	set := make(map[string]bool)
	for _, series := range seriesBySymbol {
		for _, p := range series {
			if p.Date != "" {
				set[p.Date] = true
			}
		}
	}

	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	return dates
}
