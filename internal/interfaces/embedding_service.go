package interfaces

import (
	"context"
)

// EmbeddingService generates vector embeddings. The same instance must be used
// for ingestion and query so distances are comparable.
type EmbeddingService interface {
	// Generate embedding for passage text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// Generate query embedding
	GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error)

	// Get model information
	ModelName() string
	Dimension() int

	// Check if service is available
	IsAvailable(ctx context.Context) bool
}
