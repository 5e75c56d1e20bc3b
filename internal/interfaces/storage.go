// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"

	"github.com/dstanton/folio/internal/models"
)

// StorageManager coordinates the storage areas.
type StorageManager interface {
	InternalStore() InternalStore
	HoldingStore() HoldingStore
	SnapshotStore() SnapshotStore

	// Lifecycle
	Close() error
}

// InternalStore manages user accounts and system-level KV.
type InternalStore interface {
	// User accounts
	GetUser(ctx context.Context, userID string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context) ([]string, error)

	// System key-value (runtime API keys, defaults)
	GetSystemKV(ctx context.Context, key string) (string, error)
	SetSystemKV(ctx context.Context, key, value string) error

	Close() error
}

// HoldingStore manages per-user holdings.
type HoldingStore interface {
	Get(ctx context.Context, userID, id string) (*models.Holding, error)
	Save(ctx context.Context, holding *models.Holding) error
	Delete(ctx context.Context, userID, id string) error
	ListByUser(ctx context.Context, userID string) ([]*models.Holding, error)

	// ListUserIDs returns the distinct user IDs that own at least one holding.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// SnapshotStore manages per-user daily portfolio snapshots. At most one
// snapshot exists per (user, date) — Upsert overwrites on that key.
type SnapshotStore interface {
	Upsert(ctx context.Context, snapshot *models.PortfolioSnapshot) error
	Get(ctx context.Context, userID, date string) (*models.PortfolioSnapshot, error)
	ListByUser(ctx context.Context, userID string) ([]*models.PortfolioSnapshot, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
}
