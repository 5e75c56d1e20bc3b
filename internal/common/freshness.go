// Package common provides shared utilities for Folio
package common

import "time"

// Freshness TTLs for cached data components
const (
	FreshnessRates      = 12 * time.Hour // FX rate table considered fresh
	EvictionRates       = 24 * time.Hour // FX rate table evicted (no longer served stale)
	FreshnessQuote      = 60 * time.Second
	FreshnessSeries     = 10 * time.Minute
	FreshnessSearch     = 5 * time.Minute
	SeriesBufferDays    = 3 // extra trailing days requested to cover non-trading gaps
	SnapshotWindowSlack = 2 // extra days when filtering persisted snapshots to a range
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}
