package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dstanton/folio/internal/common"
	"github.com/dstanton/folio/internal/interfaces"
)

// safeGo launches a goroutine with panic recovery and logging.
func safeGo(logger *common.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in scheduler goroutine")
			}
		}()
		fn()
	}()
}

// runSnapshotLoop fires the daily snapshot job once per day at the configured
// UTC hour. The first run is scheduled for the next occurrence of that hour;
// after each run the loop sleeps until the following day.
func runSnapshotLoop(ctx context.Context, snapshots interfaces.SnapshotService, hourUTC int, logger *common.Logger) {
	for {
		wait := untilNextHourUTC(time.Now().UTC(), hourUTC)
		logger.Info().
			Int("hour_utc", hourUTC).
			Dur("next_run_in", wait).
			Msg("Snapshot scheduler: armed")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info().Msg("Snapshot scheduler: stopped")
			return
		case <-timer.C:
		}

		written, err := snapshots.RunDailySnapshot(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Snapshot scheduler: run failed")
			continue
		}
		logger.Info().Int("written", written).Msg("Snapshot scheduler: run complete")
	}
}

// untilNextHourUTC returns the duration from now until the next occurrence of
// hourUTC:00:00. If that hour has already passed today, the run is tomorrow.
func untilNextHourUTC(now time.Time, hourUTC int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// runPriceRefreshLoop refreshes last-known prices for all held symbols on a
// fixed interval so summaries stay current between snapshot runs. Each symbol
// gets its own timeout within a batch.
func runPriceRefreshLoop(ctx context.Context, storage interfaces.StorageManager, prices interfaces.PriceService, cfg common.SchedulerConfig, logger *common.Logger) {
	ticker := time.NewTicker(cfg.GetRefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Price refresh: stopped")
			return
		case <-ticker.C:
			refreshPrices(ctx, storage, prices, cfg.GetRefreshTimeout(), logger)
		}
	}
}

// refreshPrices fetches a fresh quote for each held symbol and writes the
// price back onto the holdings that reference it.
func refreshPrices(ctx context.Context, storage interfaces.StorageManager, prices interfaces.PriceService, perSymbolTimeout time.Duration, logger *common.Logger) {
	start := time.Now()

	userIDs, err := storage.HoldingStore().ListUserIDs(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Price refresh: failed to list users")
		return
	}

	updated := 0
	symbols := 0
	priceBySymbol := make(map[string]float64)

	for _, userID := range userIDs {
		holdings, err := storage.HoldingStore().ListByUser(ctx, userID)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("Price refresh: failed to list holdings")
			continue
		}

		for _, h := range holdings {
			price, ok := priceBySymbol[h.Symbol]
			if !ok {
				symbols++
				quoteCtx, cancel := context.WithTimeout(ctx, perSymbolTimeout)
				quote := prices.GetQuote(quoteCtx, h.Symbol)
				cancel()

				price = 0
				if quote != nil && quote.Price > 0 {
					price = quote.Price
				}
				priceBySymbol[h.Symbol] = price
			}
			if price <= 0 || price == h.LastPrice {
				continue
			}

			h.LastPrice = price
			if err := storage.HoldingStore().Save(ctx, h); err != nil {
				logger.Warn().Err(err).Str("symbol", h.Symbol).Msg("Price refresh: failed to save holding")
				continue
			}
			updated++
		}
	}

	if symbols == 0 {
		return
	}

	logger.Info().
		Int("symbols", symbols).
		Int("holdings_updated", updated).
		Dur("elapsed", time.Since(start)).
		Msg("Price refresh: complete")
}
