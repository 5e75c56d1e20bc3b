// Package userdb implements the per-user storage area using BadgerHold.
// It holds portfolio holdings and daily snapshots in one database, exposed
// through two area views.
package userdb

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/dstanton/folio/internal/common"
	"github.com/dstanton/folio/internal/interfaces"
	"github.com/dstanton/folio/internal/models"
)

// keySeparator joins composite key parts. NUL never appears in IDs or dates.
const keySeparator = "\x00"

// Store owns the user-data BadgerHold database. Holdings are keyed
// (userID, id); snapshots are keyed (userID, date) so a re-run for the same
// day overwrites in place.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore creates a new user-data store backed by BadgerHold.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create user db path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open user db at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("UserDB opened")
	return &Store{db: db, logger: logger}, nil
}

// Holdings returns the holding area view.
func (s *Store) Holdings() interfaces.HoldingStore {
	return &holdingArea{s}
}

// Snapshots returns the snapshot area view.
func (s *Store) Snapshots() interfaces.SnapshotStore {
	return &snapshotArea{s}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func holdingKey(userID, id string) string {
	return userID + keySeparator + id
}

func snapshotKey(userID, date string) string {
	return userID + keySeparator + date
}

// holdingArea implements interfaces.HoldingStore.
type holdingArea struct {
	*Store
}

func (a *holdingArea) Get(_ context.Context, userID, id string) (*models.Holding, error) {
	var holding models.Holding
	if err := a.db.Get(holdingKey(userID, id), &holding); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("holding '%s' not found for user '%s'", id, userID)
		}
		return nil, fmt.Errorf("failed to get holding '%s': %w", id, err)
	}
	return &holding, nil
}

func (a *holdingArea) Save(_ context.Context, holding *models.Holding) error {
	if holding.UserID == "" {
		return fmt.Errorf("holding user ID is required")
	}
	if holding.ID == "" {
		return fmt.Errorf("holding ID is required")
	}
	holding.UpdatedAt = time.Now()

	if err := a.db.Upsert(holdingKey(holding.UserID, holding.ID), holding); err != nil {
		return fmt.Errorf("failed to save holding '%s': %w", holding.ID, err)
	}
	a.logger.Debug().
		Str("user_id", holding.UserID).
		Str("symbol", holding.Symbol).
		Msg("Holding saved")
	return nil
}

func (a *holdingArea) Delete(_ context.Context, userID, id string) error {
	if err := a.db.Delete(holdingKey(userID, id), models.Holding{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("holding '%s' not found for user '%s'", id, userID)
		}
		return fmt.Errorf("failed to delete holding '%s': %w", id, err)
	}
	a.logger.Debug().Str("user_id", userID).Str("holding_id", id).Msg("Holding deleted")
	return nil
}

func (a *holdingArea) ListByUser(_ context.Context, userID string) ([]*models.Holding, error) {
	var holdings []*models.Holding
	if err := a.db.Find(&holdings, badgerhold.Where("UserID").Eq(userID)); err != nil {
		return nil, fmt.Errorf("failed to list holdings for user '%s': %w", userID, err)
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings, nil
}

func (a *holdingArea) ListUserIDs(_ context.Context) ([]string, error) {
	var holdings []*models.Holding
	if err := a.db.Find(&holdings, nil); err != nil {
		return nil, fmt.Errorf("failed to scan holdings: %w", err)
	}
	seen := make(map[string]bool, len(holdings))
	ids := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if !seen[h.UserID] {
			seen[h.UserID] = true
			ids = append(ids, h.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// snapshotArea implements interfaces.SnapshotStore.
type snapshotArea struct {
	*Store
}

func (a *snapshotArea) Upsert(_ context.Context, snapshot *models.PortfolioSnapshot) error {
	if snapshot.UserID == "" {
		return fmt.Errorf("snapshot user ID is required")
	}
	if snapshot.Date == "" {
		return fmt.Errorf("snapshot date is required")
	}
	if err := a.db.Upsert(snapshotKey(snapshot.UserID, snapshot.Date), snapshot); err != nil {
		return fmt.Errorf("failed to upsert snapshot for user '%s' on %s: %w", snapshot.UserID, snapshot.Date, err)
	}
	a.logger.Debug().
		Str("user_id", snapshot.UserID).
		Str("date", snapshot.Date).
		Float64("value", snapshot.Value).
		Msg("Snapshot upserted")
	return nil
}

func (a *snapshotArea) Get(_ context.Context, userID, date string) (*models.PortfolioSnapshot, error) {
	var snapshot models.PortfolioSnapshot
	if err := a.db.Get(snapshotKey(userID, date), &snapshot); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("no snapshot for user '%s' on %s", userID, date)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snapshot, nil
}

func (a *snapshotArea) ListByUser(_ context.Context, userID string) ([]*models.PortfolioSnapshot, error) {
	var snapshots []*models.PortfolioSnapshot
	if err := a.db.Find(&snapshots, badgerhold.Where("UserID").Eq(userID)); err != nil {
		return nil, fmt.Errorf("failed to list snapshots for user '%s': %w", userID, err)
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Date < snapshots[j].Date })
	return snapshots, nil
}

func (a *snapshotArea) DeleteByUser(ctx context.Context, userID string) (int, error) {
	snapshots, err := a.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, snap := range snapshots {
		if err := a.db.Delete(snapshotKey(snap.UserID, snap.Date), models.PortfolioSnapshot{}); err != nil {
			return deleted, fmt.Errorf("failed to delete snapshot %s/%s: %w", snap.UserID, snap.Date, err)
		}
		deleted++
	}
	a.logger.Debug().Str("user_id", userID).Int("deleted", deleted).Msg("Snapshots deleted")
	return deleted, nil
}

// Compile-time checks
var (
	_ interfaces.HoldingStore  = (*holdingArea)(nil)
	_ interfaces.SnapshotStore = (*snapshotArea)(nil)
)
