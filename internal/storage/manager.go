// Package storage provides the storage manager coordinating the two
// BadgerHold areas: internal (users, system KV) and user (holdings,
// snapshots).
package storage

import (
	"fmt"

	"github.com/dstanton/folio/internal/common"
	"github.com/dstanton/folio/internal/interfaces"
	"github.com/dstanton/folio/internal/storage/internaldb"
	"github.com/dstanton/folio/internal/storage/userdb"
)

// Manager implements interfaces.StorageManager.
type Manager struct {
	internal *internaldb.Store
	user     *userdb.Store
	logger   *common.Logger
}

// NewManager opens both storage areas. On partial failure, already-opened
// areas are closed before returning.
func NewManager(config *common.Config, logger *common.Logger) (*Manager, error) {
	internal, err := internaldb.NewStore(logger, config.Storage.Internal.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open internal storage: %w", err)
	}

	user, err := userdb.NewStore(logger, config.Storage.User.Path)
	if err != nil {
		internal.Close()
		return nil, fmt.Errorf("failed to open user storage: %w", err)
	}

	logger.Info().Msg("Storage manager initialized")

	return &Manager{
		internal: internal,
		user:     user,
		logger:   logger,
	}, nil
}

// InternalStore returns the internal storage area.
func (m *Manager) InternalStore() interfaces.InternalStore {
	return m.internal
}

// HoldingStore returns the holding area of user storage.
func (m *Manager) HoldingStore() interfaces.HoldingStore {
	return m.user.Holdings()
}

// SnapshotStore returns the snapshot area of user storage.
func (m *Manager) SnapshotStore() interfaces.SnapshotStore {
	return m.user.Snapshots()
}

// Close closes all storage areas, returning the first error encountered.
func (m *Manager) Close() error {
	var firstErr error

	if err := m.internal.Close(); err != nil {
		m.logger.Error().Err(err).Msg("Failed to close internal storage")
		firstErr = err
	}

	if err := m.user.Close(); err != nil {
		m.logger.Error().Err(err).Msg("Failed to close user storage")
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Ensure Manager implements StorageManager
var _ interfaces.StorageManager = (*Manager)(nil)
