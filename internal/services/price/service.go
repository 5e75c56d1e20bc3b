package price

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dstanton/folio/internal/common"
	"github.com/dstanton/folio/internal/interfaces"
	"github.com/dstanton/folio/internal/models"
)

// Service implements PriceService with a primary and optional secondary
// upstream. Failures never cross this boundary as errors: quotes degrade to
// {Price: 0, Source: "mock", Error: reason}, searches to empty tagged
// results, and series to empty slices so the aggregator can fall back to
// cost-basis valuation.
type Service struct {
	primary   interfaces.MarketDataClient // may be nil when no API key is configured
	secondary interfaces.MarketDataClient // may be nil
	cache     Cache
	logger    *common.Logger
	now       func() time.Time // injectable clock for testing
}

// NewService creates a new price service. secondary may be nil — quote
// fallback is skipped. cache may be nil — an in-process cache is used.
func NewService(primary, secondary interfaces.MarketDataClient, cache Cache, logger *common.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{
		primary:   primary,
		secondary: secondary,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// isFresh is common.IsFresh measured against the service's injectable clock.
func (s *Service) isFresh(setAt time.Time, ttl time.Duration) bool {
	if setAt.IsZero() {
		return false
	}
	return s.now().Sub(setAt) < ttl
}

// degradeTag maps an upstream error to a Quote/SearchResult error tag.
func degradeTag(err error) string {
	switch {
	case errors.Is(err, models.ErrRateLimited):
		return models.QuoteErrRateLimited
	case strings.Contains(err.Error(), models.QuoteErrMissingAPIKey):
		return models.QuoteErrMissingAPIKey
	default:
		return models.QuoteErrNetwork
	}
}

// GetQuote returns the latest price for a symbol. The primary source is
// tried first; when it fails or reports a non-positive price, the secondary
// source is consulted. The first valid positive price wins.
func (s *Service) GetQuote(ctx context.Context, symbol string) *models.Quote {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	cacheKey := "quote|" + key

	if v, setAt, ok := s.cache.Get(cacheKey); ok && s.isFresh(setAt, common.FreshnessQuote) {
		if q, ok := v.(*models.Quote); ok {
			return q
		}
	}

	if s.primary == nil {
		return &models.Quote{
			Symbol: key,
			Price:  0,
			Source: models.QuoteSourceMock,
			Error:  models.QuoteErrMissingAPIKey,
		}
	}

	quote, err := s.fetchQuote(ctx, key)
	if err != nil {
		s.logger.Debug().Err(err).Str("symbol", key).Msg("Quote fetch degraded")
		return &models.Quote{
			Symbol: key,
			Price:  0,
			Source: models.QuoteSourceMock,
			Error:  degradeTag(err),
		}
	}

	s.cache.Set(cacheKey, quote, s.now())
	return quote
}

// fetchQuote implements the primary/secondary fallback chain.
func (s *Service) fetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	quote, primaryErr := s.primary.GetQuote(ctx, symbol)
	if primaryErr == nil && quote != nil && quote.Price > 0 {
		return quote, nil
	}

	if s.secondary == nil {
		if primaryErr != nil {
			return nil, primaryErr
		}
		return nil, fmt.Errorf("%s: %s", s.primary.Name(), models.QuoteErrNoPrice)
	}

	s.logger.Debug().
		Str("symbol", symbol).
		Str("primary", s.primary.Name()).
		Bool("primary_failed", primaryErr != nil).
		Msg("Attempting secondary quote source")

	fallback, secondaryErr := s.secondary.GetQuote(ctx, symbol)
	if secondaryErr == nil && fallback != nil && fallback.Price > 0 {
		return fallback, nil
	}

	if primaryErr != nil {
		return nil, primaryErr
	}
	if secondaryErr != nil {
		return nil, secondaryErr
	}
	return nil, fmt.Errorf("%s: %s", s.primary.Name(), models.QuoteErrNoPrice)
}

// SearchSymbols finds symbols matching a keyword query. Rate limits are
// surfaced on the result rather than as errors so the caller can show a
// "try again shortly" state.
func (s *Service) SearchSymbols(ctx context.Context, keywords string) *models.SearchResult {
	trimmed := strings.TrimSpace(keywords)
	if trimmed == "" {
		return &models.SearchResult{Results: []models.SymbolMatch{}}
	}

	cacheKey := "search|" + strings.ToUpper(trimmed)
	if v, setAt, ok := s.cache.Get(cacheKey); ok && s.isFresh(setAt, common.FreshnessSearch) {
		if r, ok := v.(*models.SearchResult); ok {
			return r
		}
	}

	if s.primary == nil {
		return &models.SearchResult{
			Results: []models.SymbolMatch{},
			Error:   models.QuoteErrMissingAPIKey,
		}
	}

	result, err := s.primary.SearchSymbols(ctx, trimmed)
	if err != nil {
		tag := degradeTag(err)
		s.logger.Debug().Err(err).Str("keywords", trimmed).Msg("Symbol search degraded")
		return &models.SearchResult{
			Results:     []models.SymbolMatch{},
			RateLimited: tag == models.QuoteErrRateLimited,
			Error:       tag,
		}
	}
	if result.Results == nil {
		result.Results = []models.SymbolMatch{}
	}

	s.cache.Set(cacheKey, result, s.now())
	return result
}

// GetDailySeries returns daily closes for the trailing rangeDays window,
// ascending by date, deduplicated, and filtered to
// [today − rangeDays − buffer, today]. Any upstream failure yields an empty
// series — the deliberate degrade that lets the aggregator fall back to
// cost-basis valuation for the symbol.
func (s *Service) GetDailySeries(ctx context.Context, symbol string, rangeDays int) models.PriceSeries {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	cacheKey := fmt.Sprintf("series|%s|%d", key, rangeDays)

	if v, setAt, ok := s.cache.Get(cacheKey); ok && s.isFresh(setAt, common.FreshnessSeries) {
		if series, ok := v.(models.PriceSeries); ok {
			return series
		}
	}

	if s.primary == nil {
		return models.PriceSeries{}
	}

	raw, err := s.primary.GetDailySeries(ctx, key, rangeDays)
	if err != nil {
		s.logger.Debug().Err(err).Str("symbol", key).Msg("Series fetch degraded to empty")
		return models.PriceSeries{}
	}

	series := normalizeSeries(raw, interfaces.SeriesWindow(s.now(), rangeDays, common.SeriesBufferDays))

	s.cache.Set(cacheKey, series, s.now())
	return series
}

// normalizeSeries filters to the window cutoff, drops invalid points,
// deduplicates by date, and sorts ascending.
func normalizeSeries(raw models.PriceSeries, cutoff string) models.PriceSeries {
	seen := make(map[string]int, len(raw))
	series := make(models.PriceSeries, 0, len(raw))
	for _, p := range raw {
		if p.Date == "" || p.Date < cutoff || p.Close < 0 {
			continue
		}
		if idx, dup := seen[p.Date]; dup {
			series[idx] = p // last page wins on overlapping upstream pages
			continue
		}
		seen[p.Date] = len(series)
		series = append(series, p)
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })

	return series
}

// Ensure Service implements PriceService
var _ interfaces.PriceService = (*Service)(nil)
