package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/models"
)

// Retrieval is the candidate set for one query. Candidates is the first
// document group of Result, in similarity order.
type Retrieval struct {
	Candidates []string
	Result     *models.QueryResult
}

// Orchestrator resolves the collection and fetches candidates for a query
type Orchestrator struct {
	index      interfaces.IndexAdapter
	collection string
	nResults   int
	logger     arbor.ILogger
}

// NewOrchestrator creates a retrieval orchestrator for one collection
func NewOrchestrator(index interfaces.IndexAdapter, collection string, nResults int, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		index:      index,
		collection: collection,
		nResults:   nResults,
		logger:     logger,
	}
}

// Retrieve queries the index once and returns the first result group.
// An empty group returns ErrNoResults so callers answer with the canned
// payload instead of invoking the reranker or generator.
func (o *Orchestrator) Retrieve(ctx context.Context, query string) (*Retrieval, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: prompt is required", interfaces.ErrInvalidInput)
	}

	collection, err := o.index.GetOrCreateCollection(ctx, o.collection)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := o.index.Query(ctx, collection, query, o.nResults)
	if err != nil {
		return nil, err
	}

	candidates := result.FirstDocuments()
	o.logger.Debug().
		Str("collection", o.collection).
		Int("candidates", len(candidates)).
		Dur("duration", time.Since(start)).
		Msg("Retrieved candidates")

	if len(candidates) == 0 {
		return nil, interfaces.ErrNoResults
	}

	return &Retrieval{Candidates: candidates, Result: result}, nil
}
