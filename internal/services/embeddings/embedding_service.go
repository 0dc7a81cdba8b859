package embeddings

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/interfaces"
)

// Service implements EmbeddingService on top of an LLM provider.
// Every vector it returns must have the same length; the first successful
// call fixes the dimension when none is configured.
type Service struct {
	llmService interfaces.LLMService
	modelName  string
	dimension  atomic.Int64
	logger     arbor.ILogger
}

// NewService creates a new embedding service. dimension may be 0 when the
// model's output size is only known after the first call.
func NewService(llmService interfaces.LLMService, modelName string, dimension int, logger arbor.ILogger) *Service {
	s := &Service{
		llmService: llmService,
		modelName:  modelName,
		logger:     logger,
	}
	s.dimension.Store(int64(dimension))
	return s
}

// ModelNameFor returns the provider-qualified embedding model name, e.g.
// "ollama/nomic-embed-text:latest". Collections record it to detect a model change.
func ModelNameFor(cfg *common.Config) string {
	provider := cfg.EmbedProvider()
	switch interfaces.LLMProvider(provider) {
	case interfaces.LLMProviderOllama:
		return provider + "/" + cfg.Ollama.EmbedModel
	case interfaces.LLMProviderOpenAI:
		return provider + "/" + cfg.OpenAI.EmbedModel
	case interfaces.LLMProviderGemini:
		return provider + "/" + cfg.Gemini.EmbedModel
	default:
		return provider
	}
}

// GenerateEmbedding creates a vector embedding for passage text
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	start := time.Now()
	embedding, err := s.llmService.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("LLM service returned empty embedding")
	}

	expected := s.dimension.Load()
	if expected == 0 {
		s.dimension.CompareAndSwap(0, int64(len(embedding)))
		expected = s.dimension.Load()
	}
	if int64(len(embedding)) != expected {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", expected, len(embedding))
	}

	s.logger.Debug().
		Str("model", s.modelName).
		Int("embedding_dim", len(embedding)).
		Dur("duration", time.Since(start)).
		Msg("Generated embedding")

	return embedding, nil
}

// GenerateQueryEmbedding embeds query text with the same model as passages
func (s *Service) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	return s.GenerateEmbedding(ctx, query)
}

// ModelName returns the provider-qualified model name
func (s *Service) ModelName() string {
	return s.modelName
}

// Dimension returns the embedding dimension, 0 until known
func (s *Service) Dimension() int {
	return int(s.dimension.Load())
}

// IsAvailable checks if the embedding provider is reachable
func (s *Service) IsAvailable(ctx context.Context) bool {
	if s.llmService == nil {
		return false
	}
	if err := s.llmService.HealthCheck(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("Embedding service not available")
		return false
	}
	return true
}
