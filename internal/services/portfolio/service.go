package portfolio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dstanton/folio/internal/common"
	"github.com/dstanton/folio/internal/interfaces"
	"github.com/dstanton/folio/internal/models"
)

// Service implements PortfolioService. It reads holdings and snapshots
// through the storage boundary, fetches market data through the price
// service, and converts currencies through the FX service.
type Service struct {
	storage interfaces.StorageManager
	price   interfaces.PriceService
	fx      interfaces.FXService
	logger  *common.Logger
	now     func() time.Time // injectable clock for testing
}

// NewService creates a new portfolio service.
func NewService(storage interfaces.StorageManager, price interfaces.PriceService, fxService interfaces.FXService, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		price:   price,
		fx:      fxService,
		logger:  logger,
		now:     time.Now,
	}
}

// rates fetches the rate table for a base currency, degrading to an empty
// table on fetch failure so conversion falls through to fx.Convert's no-op.
func (s *Service) rates(ctx context.Context, baseCurrency string) models.RateTable {
	rates, err := s.fx.GetRates(ctx, baseCurrency)
	if err != nil {
		s.logger.Warn().Err(err).Str("base", baseCurrency).Msg("FX rates unavailable — conversions degraded")
		return models.RateTable{}
	}
	return rates
}

// ValueSeries computes the historical portfolio-value series for a user.
// Persisted snapshots are preferred when present; otherwise the series is
// reconstructed from per-symbol daily price history with carry-forward.
func (s *Service) ValueSeries(ctx context.Context, userID string, rangeDays int, baseCurrency string, resolution models.Resolution) ([]models.AggregatedPoint, error) {
	base := strings.ToUpper(strings.TrimSpace(baseCurrency))

	holdings, err := s.storage.HoldingStore().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read holdings for user '%s': %w", userID, err)
	}
	if len(holdings) == 0 {
		return []models.AggregatedPoint{}, nil
	}

	rates := s.rates(ctx, base)

	if points := s.seriesFromSnapshots(ctx, userID, rangeDays, base, rates); len(points) > 0 {
		return Downsample(points, resolution), nil
	}

	seriesBySymbol := s.fetchSeries(ctx, holdings, rangeDays)
	aggregated := Aggregate(holdings, seriesBySymbol, base, rates)

	return Downsample(aggregated, resolution), nil
}

// seriesFromSnapshots builds the value series from persisted daily snapshots,
// filtered to the trailing window and converted to the requested base.
// Returns nil when no snapshots fall in the window.
func (s *Service) seriesFromSnapshots(ctx context.Context, userID string, rangeDays int, base string, rates models.RateTable) []models.AggregatedPoint {
	snapshots, err := s.storage.SnapshotStore().ListByUser(ctx, userID)
	if err != nil || len(snapshots) == 0 {
		return nil
	}

	cutoff := s.now().AddDate(0, 0, -(rangeDays + common.SnapshotWindowSlack)).Format("2006-01-02")

	points := make([]models.AggregatedPoint, 0, len(snapshots))
	for _, snap := range snapshots {
		if snap.Date < cutoff {
			continue
		}
		currency := snap.Currency
		if currency == "" {
			currency = base
		}
		points = append(points, models.AggregatedPoint{
			Date:  snap.Date,
			Value: s.fx.Convert(snap.Value, currency, base, rates),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })

	return points
}

// fetchSeries fans out per-symbol series fetches concurrently. The fetches
// are independent, so each unique symbol gets its own goroutine; results are
// joined before aggregation begins.
func (s *Service) fetchSeries(ctx context.Context, holdings []*models.Holding, rangeDays int) map[string]models.PriceSeries {
	unique := make([]string, 0, len(holdings))
	seen := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		if !seen[h.Symbol] {
			seen[h.Symbol] = true
			unique = append(unique, h.Symbol)
		}
	}

	results := make([]models.PriceSeries, len(unique))
	var wg sync.WaitGroup
	for i, symbol := range unique {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			results[i] = s.price.GetDailySeries(ctx, symbol, rangeDays)
		}(i, symbol)
	}
	wg.Wait()

	seriesBySymbol := make(map[string]models.PriceSeries, len(unique))
	for i, symbol := range unique {
		seriesBySymbol[symbol] = results[i]
	}
	return seriesBySymbol
}

// Summary computes current totals for a user's holdings in the given base
// currency. Day change is derived from the two most recent snapshots.
func (s *Service) Summary(ctx context.Context, userID string, baseCurrency string) (*models.PortfolioSummary, error) {
	base := strings.ToUpper(strings.TrimSpace(baseCurrency))

	holdings, err := s.storage.HoldingStore().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read holdings for user '%s': %w", userID, err)
	}

	rates := s.rates(ctx, base)

	summary := &models.PortfolioSummary{
		UserID:       userID,
		BaseCurrency: base,
		Holdings:     len(holdings),
	}

	for _, h := range holdings {
		currency := h.CurrencyOr(base)
		summary.TotalValue += s.fx.Convert(h.CurrentValue(), currency, base, rates)
		summary.TotalCost += s.fx.Convert(h.CostValue(), currency, base, rates)
	}
	summary.Unrealized = summary.TotalValue - summary.TotalCost

	if snapshots, err := s.storage.SnapshotStore().ListByUser(ctx, userID); err == nil && len(snapshots) >= 2 {
		sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Date < snapshots[j].Date })
		last := snapshots[len(snapshots)-1]
		prev := snapshots[len(snapshots)-2]
		if prev.Value != 0 {
			lastValue := s.fx.Convert(last.Value, last.Currency, base, rates)
			prevValue := s.fx.Convert(prev.Value, prev.Currency, base, rates)
			summary.DayChangePct = (lastValue - prevValue) / prevValue * 100
		}
	}

	return summary, nil
}

// Ensure Service implements PortfolioService
var _ interfaces.PortfolioService = (*Service)(nil)
