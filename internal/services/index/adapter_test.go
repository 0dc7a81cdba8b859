package index

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/models"
	"github.com/ternarybob/docqa/internal/storage/badger"
)

// letterEmbedder embeds text as lowercase letter frequencies
type letterEmbedder struct {
	model     string
	available bool
	failOn    string
	calls     int
}

func (e *letterEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("embedding backend unreachable")
	}
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v, nil
}

func (e *letterEmbedder) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	return e.GenerateEmbedding(ctx, query)
}

func (e *letterEmbedder) ModelName() string                    { return e.model }
func (e *letterEmbedder) Dimension() int                       { return 26 }
func (e *letterEmbedder) IsAvailable(ctx context.Context) bool { return e.available }

func newTestStore(t *testing.T, path string) interfaces.StorageManager {
	t.Helper()
	store, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: path})
	require.NoError(t, err)
	return store
}

func newTestAdapter(t *testing.T) (*Adapter, *letterEmbedder) {
	t.Helper()
	embedder := &letterEmbedder{model: "test/letters", available: true}
	adapter := NewAdapter(newTestStore(t, t.TempDir()), embedder, 0, arbor.NewLogger())
	t.Cleanup(func() { adapter.Close() })
	return adapter, embedder
}

func fragments(source string, texts ...string) []models.Fragment {
	out := make([]models.Fragment, len(texts))
	for i, text := range texts {
		out[i] = models.Fragment{Text: text, Metadata: models.PassageMetadata{Source: source, Page: i}}
	}
	return out
}

func TestGetOrCreateCollection_Idempotent(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()

	first, err := adapter.GetOrCreateCollection(ctx, "rag_app")
	require.NoError(t, err)
	second, err := adapter.GetOrCreateCollection(ctx, "rag_app")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, models.DistanceCosine, first.Space)
	assert.Equal(t, "test/letters", first.EmbeddingModel)
}

func TestGetOrCreateCollection_EmbedderUnavailable(t *testing.T) {
	adapter, embedder := newTestAdapter(t)
	embedder.available = false

	_, err := adapter.GetOrCreateCollection(context.Background(), "rag_app")
	assert.ErrorIs(t, err, interfaces.ErrIndexUnavailable)
}

func TestGetOrCreateCollection_StoreClosed(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	require.NoError(t, adapter.storage.Close())

	_, err := adapter.GetOrCreateCollection(context.Background(), "rag_app")
	assert.ErrorIs(t, err, interfaces.ErrIndexUnavailable)
}

func TestGetOrCreateCollection_ModelChange(t *testing.T) {
	path := t.TempDir()
	ctx := context.Background()

	adapter := NewAdapter(newTestStore(t, path), &letterEmbedder{model: "test/letters", available: true}, 0, arbor.NewLogger())
	_, err := adapter.GetOrCreateCollection(ctx, "rag_app")
	require.NoError(t, err)
	require.NoError(t, adapter.Close())

	reopened := NewAdapter(newTestStore(t, path), &letterEmbedder{model: "test/other", available: true}, 0, arbor.NewLogger())
	defer reopened.Close()
	_, err = reopened.GetOrCreateCollection(ctx, "rag_app")
	assert.ErrorIs(t, err, interfaces.ErrIndexUnavailable)
}

func TestUpsert_DeterministicIDs(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()
	collection, err := adapter.GetOrCreateCollection(ctx, "rag_app")
	require.NoError(t, err)

	ids, err := adapter.Upsert(ctx, collection, fragments("Report v1.pdf", "alpha", "beta", "gamma"), "Report v1.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"Report_v1_pdf_0", "Report_v1_pdf_1", "Report_v1_pdf_2"}, ids)
	assert.Equal(t, 26, collection.Dimension)
}

func TestUpsert_Idempotent(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()
	collection, err := adapter.GetOrCreateCollection(ctx, "rag_app")
	require.NoError(t, err)

	doc := fragments("my-doc.pdf", "first passage", "second passage")

	_, err = adapter.Upsert(ctx, collection, doc, "my-doc.pdf")
	require.NoError(t, err)
	once, err := adapter.Query(ctx, collection, "passage", 10)
	require.NoError(t, err)

	_, err = adapter.Upsert(ctx, collection, doc, "my-doc.pdf")
	require.NoError(t, err)
	twice, err := adapter.Query(ctx, collection, "passage", 10)
	require.NoError(t, err)

	count, err := adapter.Count(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, once, twice)
}

func TestUpsert_LastWriteWins(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()
	collection, err := adapter.GetOrCreateCollection(ctx, "rag_app")
	require.NoError(t, err)

	_, err = adapter.Upsert(ctx, collection, fragments("a.pdf", "old text"), "a.pdf")
	require.NoError(t, err)
	_, err = adapter.Upsert(ctx, collection, fragments("a.pdf", "new text"), "a.pdf")
	require.NoError(t, err)

	result, err := adapter.Query(ctx, collection, "text", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"new text"}, result.Documents[0])
	assert.Equal(t, []string{"a_pdf_0"}, result.IDs[0])
}

func TestUpsert_Errors(t *testing.T) {
	adapter, embedder := newTestAdapter(t)
	ctx := context.Background()
	collection, err := adapter.GetOrCreateCollection(ctx, "rag_app")
	require.NoError(t, err)

	_, err = adapter.Upsert(ctx, collection, nil, "a.pdf")
	assert.ErrorIs(t, err, interfaces.ErrIngest)

	_, err = adapter.Upsert(ctx, collection, []models.Fragment{{Text: "no source"}}, "a.pdf")
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	embedder.failOn = "boom"
	_, err = adapter.Upsert(ctx, collection, fragments("b.pdf", "fine", "boom"), "b.pdf")
	assert.ErrorIs(t, err, interfaces.ErrIngest)

	// Nothing from the failed document was written
	count, err := adapter.Count(ctx, collection)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestQuery_EmptyCollection(t *testing.T) {
	adapter, embedder := newTestAdapter(t)
	ctx := context.Background()
	collection, err := adapter.GetOrCreateCollection(ctx, "rag_app")
	require.NoError(t, err)

	result, err := adapter.Query(ctx, collection, "anything", 10)
	require.NoError(t, err)
	require.Len(t, result.Documents, 1)
	assert.Empty(t, result.Documents[0])
	assert.True(t, result.IsEmpty())
	assert.Zero(t, embedder.calls)
}

func TestQuery_OrderedByDistance(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()
	collection, err := adapter.GetOrCreateCollection(ctx, "rag_app")
	require.NoError(t, err)

	_, err = adapter.Upsert(ctx, collection, fragments("r.pdf",
		"zzzz zzzz",
		"Total revenue was $5M in 2023.",
		"What is the total revenue",
	), "r.pdf")
	require.NoError(t, err)

	result, err := adapter.Query(ctx, collection, "What is the total revenue?", 2)
	require.NoError(t, err)

	require.Len(t, result.Documents[0], 2)
	assert.Equal(t, "What is the total revenue", result.Documents[0][0])
	assert.Equal(t, "r_pdf_2", result.IDs[0][0])
	assert.LessOrEqual(t, result.Distances[0][0], result.Distances[0][1])
	assert.Equal(t, map[string]string{"source": "r.pdf", "page": "2"}, result.Metadatas[0][0])
	assert.InDelta(t, 0, result.Distances[0][0], 1e-6)
}

func TestQuery_DefaultResultCount(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()
	collection, err := adapter.GetOrCreateCollection(ctx, "rag_app")
	require.NoError(t, err)

	texts := make([]string, 12)
	for i := range texts {
		texts[i] = strings.Repeat("a", i+1) + " passage"
	}
	_, err = adapter.Upsert(ctx, collection, fragments("many.pdf", texts...), "many.pdf")
	require.NoError(t, err)

	result, err := adapter.Query(ctx, collection, "passage", 0)
	require.NoError(t, err)
	assert.Len(t, result.Documents[0], DefaultNResults)
}

func TestCosineDistance(t *testing.T) {
	d, err := cosineDistance([]float32{1, 0}, []float32{2, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-6)

	d, err = cosineDistance([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1, d, 1e-6)

	d, err = cosineDistance([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 2, d, 1e-6)

	d, err = cosineDistance([]float32{0, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1, d, 1e-6)

	_, err = cosineDistance([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}
