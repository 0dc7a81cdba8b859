package interfaces

import (
	"context"

	"github.com/ternarybob/docqa/internal/models"
)

// IndexAdapter owns the vector collection and runs similarity queries
type IndexAdapter interface {
	GetOrCreateCollection(ctx context.Context, name string) (*models.Collection, error)
	Upsert(ctx context.Context, collection *models.Collection, fragments []models.Fragment, documentID string) ([]string, error)
	Query(ctx context.Context, collection *models.Collection, queryText string, nResults int) (*models.QueryResult, error)
	Count(ctx context.Context, collection *models.Collection) (int, error)
	Close() error
}

// CrossEncoder scores (query, candidate) pairs jointly. Scores are returned in
// candidate order; higher is more relevant.
type CrossEncoder interface {
	Score(ctx context.Context, query string, candidates []string) ([]float32, error)
	ModelName() string
}

// IngestRequest is a document upload handed to the pipeline
type IngestRequest struct {
	Filename    string
	ContentType string
	Data        []byte
}

// IngestResult summarises an ingestion
type IngestResult struct {
	DocumentID   string   `json:"document_id"`
	PassageCount int      `json:"passage_count"`
	PassageIDs   []string `json:"passage_ids"`
	PageCount    int      `json:"page_count"`
}

// FragmentFunc receives answer fragments as they arrive. Returning an error
// stops generation.
type FragmentFunc func(fragment string) error

// RAGService is the question answering pipeline exposed to transports
type RAGService interface {
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
	Ask(ctx context.Context, prompt string) (*models.Answer, error)
	AskStream(ctx context.Context, prompt string, onFragment FragmentFunc) (*models.Answer, error)
	Stats(ctx context.Context) (*models.CollectionStats, error)
}
