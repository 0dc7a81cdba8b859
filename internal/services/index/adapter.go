package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/models"
)

// DefaultNResults is the number of candidates returned by Query when n <= 0
const DefaultNResults = 10

// Adapter implements IndexAdapter over the badger passage store.
// It owns the store: Close flushes and closes it.
type Adapter struct {
	storage   interfaces.StorageManager
	embedder  interfaces.EmbeddingService
	logger    arbor.ILogger
	nResults  int
	mu        sync.Mutex
	handles   map[string]*models.Collection
	closeOnce sync.Once
}

// NewAdapter creates an index adapter bound to one embedding service
func NewAdapter(storage interfaces.StorageManager, embedder interfaces.EmbeddingService, nResults int, logger arbor.ILogger) *Adapter {
	if nResults <= 0 {
		nResults = DefaultNResults
	}
	return &Adapter{
		storage:  storage,
		embedder: embedder,
		logger:   logger,
		nResults: nResults,
		handles:  make(map[string]*models.Collection),
	}
}

// GetOrCreateCollection returns the named collection, creating it on first
// access. The handle is cached; repeated calls never create a duplicate.
func (a *Adapter) GetOrCreateCollection(ctx context.Context, name string) (*models.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is required", interfaces.ErrInvalidInput)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if collection, ok := a.handles[name]; ok {
		return collection, nil
	}

	if err := a.storage.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: store unreachable: %v", interfaces.ErrIndexUnavailable, err)
	}
	if !a.embedder.IsAvailable(ctx) {
		return nil, fmt.Errorf("%w: embedding service %s unreachable", interfaces.ErrIndexUnavailable, a.embedder.ModelName())
	}

	collection, err := a.storage.CollectionStorage().GetCollection(ctx, name)
	switch {
	case err == nil:
		if collection.EmbeddingModel != a.embedder.ModelName() {
			return nil, fmt.Errorf("%w: collection %s was built with %s but %s is configured",
				interfaces.ErrIndexUnavailable, name, collection.EmbeddingModel, a.embedder.ModelName())
		}
		a.logger.Debug().
			Str("collection", name).
			Str("embedding_model", collection.EmbeddingModel).
			Msg("Opened existing collection")

	case errors.Is(err, interfaces.ErrNotFound):
		now := time.Now()
		collection = &models.Collection{
			Name:           name,
			Space:          models.DistanceCosine,
			EmbeddingModel: a.embedder.ModelName(),
			Dimension:      a.embedder.Dimension(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := a.storage.CollectionStorage().SaveCollection(ctx, collection); err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrIndexUnavailable, err)
		}
		a.logger.Info().
			Str("collection", name).
			Str("embedding_model", collection.EmbeddingModel).
			Msg("Created collection")

	default:
		return nil, fmt.Errorf("%w: %v", interfaces.ErrIndexUnavailable, err)
	}

	a.handles[name] = collection
	return collection, nil
}

// Upsert embeds and writes passages under ids "<normalized documentID>_<i>".
// Re-upserting the same document overwrites its passages in place. All
// fragments are embedded before anything is written; each passage is then
// written on its own.
func (a *Adapter) Upsert(ctx context.Context, collection *models.Collection, fragments []models.Fragment, documentID string) ([]string, error) {
	if len(fragments) == 0 {
		return nil, fmt.Errorf("%w: no passages to upsert for %q", interfaces.ErrIngest, documentID)
	}

	docID := models.NormalizeDocumentID(documentID)
	if docID == "" {
		return nil, fmt.Errorf("%w: document id is required", interfaces.ErrInvalidInput)
	}

	for i, fragment := range fragments {
		if err := fragment.Metadata.Validate(); err != nil {
			return nil, fmt.Errorf("%w: passage %d metadata: %v", interfaces.ErrInvalidInput, i, err)
		}
	}

	start := time.Now()
	embeddings := make([][]float32, len(fragments))
	for i, fragment := range fragments {
		embedding, err := a.embedder.GenerateEmbedding(ctx, fragment.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: embedding passage %d of %s: %v", interfaces.ErrIngest, i, docID, err)
		}
		embeddings[i] = embedding
	}

	if err := a.bindDimension(ctx, collection, len(embeddings[0])); err != nil {
		return nil, err
	}

	ids := make([]string, len(fragments))
	now := time.Now()
	for i, fragment := range fragments {
		ids[i] = models.PassageID(docID, i)
		passage := &models.StoredPassage{
			Collection: collection.Name,
			ID:         ids[i],
			DocumentID: docID,
			Text:       fragment.Text,
			Source:     fragment.Metadata.Source,
			Page:       fragment.Metadata.Page,
			Embedding:  embeddings[i],
			UpdatedAt:  now,
		}
		if err := a.storage.PassageStorage().UpsertPassage(ctx, passage); err != nil {
			return nil, fmt.Errorf("%w: writing %s: %v", interfaces.ErrIngest, ids[i], err)
		}
	}

	a.logger.Info().
		Str("collection", collection.Name).
		Str("document_id", docID).
		Int("passages", len(ids)).
		Dur("duration", time.Since(start)).
		Msg("Upserted passages")

	return ids, nil
}

// bindDimension records the vector size on first write and rejects vectors
// of any other size afterwards
func (a *Adapter) bindDimension(ctx context.Context, collection *models.Collection, dimension int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if collection.Dimension == dimension {
		return nil
	}
	if collection.Dimension != 0 {
		return fmt.Errorf("%w: collection %s expects %d-dimension vectors, got %d",
			interfaces.ErrIngest, collection.Name, collection.Dimension, dimension)
	}

	collection.Dimension = dimension
	collection.UpdatedAt = time.Now()
	if err := a.storage.CollectionStorage().SaveCollection(ctx, collection); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrIngest, err)
	}
	return nil
}

type scoredPassage struct {
	passage  *models.StoredPassage
	distance float32
}

// Query embeds queryText with the collection's embedding service and returns
// up to nResults passages by ascending cosine distance, as a single group.
// An empty collection yields an empty group, not an error.
func (a *Adapter) Query(ctx context.Context, collection *models.Collection, queryText string, nResults int) (*models.QueryResult, error) {
	if nResults <= 0 {
		nResults = a.nResults
	}

	passages, err := a.storage.PassageStorage().ListPassages(ctx, collection.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrIndexUnavailable, err)
	}

	result := models.NewQueryResult(1)
	if len(passages) == 0 {
		return result, nil
	}

	queryEmbedding, err := a.embedder.GenerateQueryEmbedding(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", interfaces.ErrIndexUnavailable, err)
	}

	scored := make([]scoredPassage, 0, len(passages))
	for _, passage := range passages {
		distance, err := cosineDistance(queryEmbedding, passage.Embedding)
		if err != nil {
			a.logger.Warn().
				Err(err).
				Str("passage_id", passage.ID).
				Msg("Skipping passage with incompatible embedding")
			continue
		}
		scored = append(scored, scoredPassage{passage: passage, distance: distance})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].distance < scored[j].distance
	})
	if len(scored) > nResults {
		scored = scored[:nResults]
	}

	for _, s := range scored {
		result.IDs[0] = append(result.IDs[0], s.passage.ID)
		result.Documents[0] = append(result.Documents[0], s.passage.Text)
		result.Distances[0] = append(result.Distances[0], s.distance)
		result.Metadatas[0] = append(result.Metadatas[0], s.passage.Metadata().ToMap())
	}

	a.logger.Debug().
		Str("collection", collection.Name).
		Int("candidates", len(passages)).
		Int("returned", len(scored)).
		Msg("Index query completed")

	return result, nil
}

// Count returns the number of passages in the collection
func (a *Adapter) Count(ctx context.Context, collection *models.Collection) (int, error) {
	count, err := a.storage.PassageStorage().CountPassages(ctx, collection.Name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", interfaces.ErrIndexUnavailable, err)
	}
	return count, nil
}

// Close flushes and closes the underlying store. Safe to call more than once.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.handles = make(map[string]*models.Collection)
		a.mu.Unlock()
		err = a.storage.Close()
	})
	return err
}
