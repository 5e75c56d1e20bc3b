package fx

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dstanton/folio/internal/common"
	"github.com/dstanton/folio/internal/interfaces"
	"github.com/dstanton/folio/internal/models"
)

// RateFetchError is a retryable failure fetching FX rates from the upstream.
// Callers may serve stale cache or degrade conversions to no-op.
type RateFetchError struct {
	Base string
	Err  error
}

func (e *RateFetchError) Error() string {
	return fmt.Sprintf("failed to fetch FX rates for base %s: %v", e.Base, e.Err)
}

func (e *RateFetchError) Unwrap() error { return e.Err }

// cacheEntry holds one fetched rate table and its fetch time.
type cacheEntry struct {
	table     models.RateTable
	fetchedAt time.Time
	mu        sync.Mutex // single-flights fetches for this base
}

// Service implements FXService with a per-base-currency cache.
// Tables are fresh for common.FreshnessRates (12h) and served stale on
// upstream failure until common.EvictionRates (24h).
type Service struct {
	client interfaces.RateClient
	logger *common.Logger
	now    func() time.Time // injectable clock for testing

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewService creates a new FX service.
func NewService(client interfaces.RateClient, logger *common.Logger) *Service {
	return &Service{
		client:  client,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
	}
}

// entry returns the cache slot for a base currency, creating it if needed.
func (s *Service) entry(base string) *cacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[base]
	if !ok {
		e = &cacheEntry{}
		s.entries[base] = e
	}
	return e
}

// GetRates returns the rate table for a base currency, cached per base.
// Concurrent callers for the same base within the freshness window share one
// fetch. A missing upstream credential yields an empty table and nil error;
// an upstream failure yields the stale table when one exists within the
// eviction window, and a *RateFetchError otherwise.
func (s *Service) GetRates(ctx context.Context, baseCurrency string) (models.RateTable, error) {
	base := strings.ToUpper(strings.TrimSpace(baseCurrency))
	e := s.entry(base)

	e.mu.Lock()
	defer e.mu.Unlock()

	age := s.now().Sub(e.fetchedAt)
	if e.table != nil && age < common.FreshnessRates {
		return e.table, nil
	}

	table, err := s.client.GetLatestRates(ctx, base)
	if err != nil {
		// Serve stale cache if still within the eviction window
		if e.table != nil && age < common.EvictionRates {
			s.logger.Warn().Err(err).Str("base", base).Msg("FX fetch failed — serving stale rates")
			return e.table, nil
		}
		return nil, &RateFetchError{Base: base, Err: err}
	}

	if table == nil {
		// No API key configured — conversion unavailable, not an error
		return models.RateTable{}, nil
	}

	e.table = table
	e.fetchedAt = s.now()

	s.logger.Debug().Str("base", base).Int("currencies", len(table)).Msg("FX rates refreshed")

	return table, nil
}

// Convert converts an amount between currencies using the given rate table.
func (s *Service) Convert(amount float64, from, to string, rates models.RateTable) float64 {
	return Convert(amount, from, to, rates)
}

// Ensure Service implements FXService
var _ interfaces.FXService = (*Service)(nil)
