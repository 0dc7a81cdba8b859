package interfaces

import (
	"context"

	"github.com/ternarybob/docqa/internal/models"
)

// CollectionStorage persists collection descriptors
type CollectionStorage interface {
	// GetCollection returns ErrNotFound when the collection does not exist
	GetCollection(ctx context.Context, name string) (*models.Collection, error)
	SaveCollection(ctx context.Context, collection *models.Collection) error
}

// PassageStorage persists passages and their embeddings
type PassageStorage interface {
	// UpsertPassage writes a single passage; an existing key is replaced
	UpsertPassage(ctx context.Context, passage *models.StoredPassage) error
	ListPassages(ctx context.Context, collection string) ([]*models.StoredPassage, error)
	CountPassages(ctx context.Context, collection string) (int, error)
}

// StorageManager owns the persistent store and its lifecycle
type StorageManager interface {
	CollectionStorage() CollectionStorage
	PassageStorage() PassageStorage

	// Ping verifies the store is open and readable
	Ping(ctx context.Context) error

	// RunGC reclaims space from the value log; returns the number of files rewritten
	RunGC(discardRatio float64) (int, error)

	// Close flushes pending writes and closes the store
	Close() error
}
