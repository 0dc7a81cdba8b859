package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/models"
)

// mockLLMService is a mock implementation of LLMService for health checks
type mockLLMService struct {
	healthErr error
}

func (m *mockLLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, nil
}

func (m *mockLLMService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return "", nil
}

func (m *mockLLMService) ChatStream(ctx context.Context, messages []interfaces.Message) (<-chan interfaces.StreamChunk, error) {
	return nil, nil
}

func (m *mockLLMService) HealthCheck(ctx context.Context) error { return m.healthErr }

func (m *mockLLMService) GetProvider() interfaces.LLMProvider { return interfaces.LLMProviderOllama }

func (m *mockLLMService) Close() error { return nil }

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewAPIHandler(&mockRAGService{}, &mockLLMService{}, arbor.NewLogger()).
		HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok", "provider": "ollama", "llm": "ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewAPIHandler(&mockRAGService{}, &mockLLMService{healthErr: errors.New("connection refused")}, arbor.NewLogger()).
		HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decodeBody(t, rec)["status"])
}

func TestCollectionHandler(t *testing.T) {
	service := &mockRAGService{statsFunc: func(ctx context.Context) (*models.CollectionStats, error) {
		return &models.CollectionStats{
			Name:           "rag_app",
			Space:          models.DistanceCosine,
			EmbeddingModel: "ollama/nomic-embed-text:latest",
			Dimension:      768,
			PassageCount:   42,
		}, nil
	}}

	rec := httptest.NewRecorder()
	NewAPIHandler(service, &mockLLMService{}, arbor.NewLogger()).
		CollectionHandler(rec, httptest.NewRequest(http.MethodGet, "/api/collection", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "rag_app", body["name"])
	assert.Equal(t, float64(42), body["passage_count"])
}

func TestCollectionHandler_Unavailable(t *testing.T) {
	service := &mockRAGService{statsFunc: func(ctx context.Context) (*models.CollectionStats, error) {
		return nil, fmt.Errorf("%w: embedding service unreachable", interfaces.ErrIndexUnavailable)
	}}

	rec := httptest.NewRecorder()
	NewAPIHandler(service, &mockLLMService{}, arbor.NewLogger()).
		CollectionHandler(rec, httptest.NewRequest(http.MethodGet, "/api/collection", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewAPIHandler(&mockRAGService{}, &mockLLMService{}, arbor.NewLogger()).
		VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "version")
}
