// Package snapshot computes and persists daily portfolio snapshots.
package snapshot

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dstanton/folio/internal/common"
	"github.com/dstanton/folio/internal/interfaces"
	"github.com/dstanton/folio/internal/models"
)

// Service implements SnapshotService. One run writes at most one snapshot
// row per user for today's date — the store upserts on (user, date), so
// re-running the job on the same day overwrites rather than duplicates.
type Service struct {
	storage     interfaces.StorageManager
	fx          interfaces.FXService
	defaultBase string
	logger      *common.Logger
	now         func() time.Time // injectable clock for testing
}

// NewService creates a new snapshot service. defaultBase is the system base
// currency used for users without a profile preference.
func NewService(storage interfaces.StorageManager, fxService interfaces.FXService, defaultBase string, logger *common.Logger) *Service {
	return &Service{
		storage:     storage,
		fx:          fxService,
		defaultBase: strings.ToUpper(defaultBase),
		logger:      logger,
		now:         time.Now,
	}
}

// RunDailySnapshot computes today's total value, cost, and unrealized gain
// for every user with at least one holding, and upserts one snapshot per
// (user, today). Rate tables are fetched once per distinct base currency per
// run. Per-user failures are logged and skipped — they never abort the run.
func (s *Service) RunDailySnapshot(ctx context.Context) (int, error) {
	start := s.now()
	today := start.Format("2006-01-02")

	userIDs, err := s.storage.HoldingStore().ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	// One rate table per distinct base currency, shared across users
	ratesByBase := make(map[string]models.RateTable)

	written := 0
	failed := 0
	for _, userID := range userIDs {
		wrote, err := s.snapshotUser(ctx, userID, today, ratesByBase)
		if err != nil {
			failed++
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Snapshot skipped for user")
			continue
		}
		if wrote {
			written++
		}
	}

	s.logger.Info().
		Str("date", today).
		Int("written", written).
		Int("failed", failed).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Daily snapshot run complete")

	return written, nil
}

// snapshotUser computes and upserts one user's snapshot for the given date.
// Returns false when the user has no holdings and nothing was written.
func (s *Service) snapshotUser(ctx context.Context, userID, date string, ratesByBase map[string]models.RateTable) (bool, error) {
	base := s.resolveBaseCurrency(ctx, userID)

	holdings, err := s.storage.HoldingStore().ListByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(holdings) == 0 {
		return false, nil
	}

	rates, ok := ratesByBase[base]
	if !ok {
		rates, err = s.fx.GetRates(ctx, base)
		if err != nil {
			// Degrade to unconverted values rather than skipping the user
			s.logger.Warn().Err(err).Str("base", base).Msg("FX rates unavailable for snapshot — conversions degraded")
			rates = models.RateTable{}
		}
		ratesByBase[base] = rates
	}

	var totalCurrent, totalCost float64
	for _, h := range holdings {
		currency := h.CurrencyOr(base)
		totalCurrent += s.fx.Convert(h.CurrentValue(), currency, base, rates)
		totalCost += s.fx.Convert(h.CostValue(), currency, base, rates)
	}
	unrealized := totalCurrent - totalCost

	snap := &models.PortfolioSnapshot{
		ID:         uuid.NewString(),
		UserID:     userID,
		Date:       date,
		Value:      totalCurrent,
		Currency:   base,
		BookCost:   totalCost,
		Unrealized: unrealized,
		PnL:        unrealized,
	}

	if err := s.storage.SnapshotStore().Upsert(ctx, snap); err != nil {
		return false, err
	}
	return true, nil
}

// resolveBaseCurrency returns the user's profile preference, or the system
// default when absent.
func (s *Service) resolveBaseCurrency(ctx context.Context, userID string) string {
	user, err := s.storage.InternalStore().GetUser(ctx, userID)
	if err == nil && user != nil && user.BaseCurrency != "" {
		return strings.ToUpper(user.BaseCurrency)
	}
	return s.defaultBase
}

// Ensure Service implements SnapshotService
var _ interfaces.SnapshotService = (*Service)(nil)
