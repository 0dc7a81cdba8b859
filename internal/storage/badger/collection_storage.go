package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CollectionStorage implements the CollectionStorage interface for Badger
type CollectionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCollectionStorage creates a new CollectionStorage instance
func NewCollectionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CollectionStorage {
	return &CollectionStorage{
		db:     db,
		logger: logger,
	}
}

// GetCollection loads a collection descriptor by name
func (s *CollectionStorage) GetCollection(ctx context.Context, name string) (*models.Collection, error) {
	var collection models.Collection
	err := s.db.Store().Get(name, &collection)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", name, err)
	}
	return &collection, nil
}

// SaveCollection creates or replaces a collection descriptor
func (s *CollectionStorage) SaveCollection(ctx context.Context, collection *models.Collection) error {
	if collection.Name == "" {
		return fmt.Errorf("collection name is required")
	}
	if err := s.db.Store().Upsert(collection.Name, collection); err != nil {
		return fmt.Errorf("failed to save collection %s: %w", collection.Name, err)
	}
	return nil
}
