package badger

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	collection interfaces.CollectionStorage
	passage    interfaces.PassageStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		collection: NewCollectionStorage(db, logger),
		passage:    NewPassageStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// CollectionStorage returns the Collection storage interface
func (m *Manager) CollectionStorage() interfaces.CollectionStorage {
	return m.collection
}

// PassageStorage returns the Passage storage interface
func (m *Manager) PassageStorage() interfaces.PassageStorage {
	return m.passage
}

// Ping verifies the store is open
func (m *Manager) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.db == nil || !m.db.IsOpen() {
		return errors.New("badger database is closed")
	}
	return nil
}

// RunGC reclaims value log space
func (m *Manager) RunGC(discardRatio float64) (int, error) {
	return m.db.RunValueLogGC(discardRatio)
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
