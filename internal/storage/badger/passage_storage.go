package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// PassageStorage implements the PassageStorage interface for Badger.
// Each passage is its own record; there is no transaction spanning passages.
type PassageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPassageStorage creates a new PassageStorage instance
func NewPassageStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PassageStorage {
	return &PassageStorage{
		db:     db,
		logger: logger,
	}
}

// UpsertPassage writes a passage, replacing any record with the same key
func (s *PassageStorage) UpsertPassage(ctx context.Context, passage *models.StoredPassage) error {
	if passage.Collection == "" || passage.ID == "" {
		return fmt.Errorf("passage collection and id are required")
	}

	passage.Key = models.StoredPassageKey(passage.Collection, passage.ID)
	if passage.UpdatedAt.IsZero() {
		passage.UpdatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(passage.Key, passage); err != nil {
		return fmt.Errorf("failed to upsert passage %s: %w", passage.ID, err)
	}
	return nil
}

// ListPassages returns every passage of a collection ordered by key
func (s *PassageStorage) ListPassages(ctx context.Context, collection string) ([]*models.StoredPassage, error) {
	var passages []*models.StoredPassage
	err := s.db.Store().Find(&passages, badgerhold.Where("Collection").Eq(collection).Index("Collection").SortBy("Key"))
	if err != nil {
		return nil, fmt.Errorf("failed to list passages for %s: %w", collection, err)
	}
	return passages, nil
}

// CountPassages returns the number of passages in a collection
func (s *PassageStorage) CountPassages(ctx context.Context, collection string) (int, error) {
	count, err := s.db.Store().Count(&models.StoredPassage{}, badgerhold.Where("Collection").Eq(collection).Index("Collection"))
	if err != nil {
		return 0, fmt.Errorf("failed to count passages for %s: %w", collection, err)
	}
	return int(count), nil
}
