package rerank

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/models"
)

// DefaultTopK is the number of candidates kept after scoring
const DefaultTopK = 3

// Reranker selects the most relevant candidates with a cross-encoder
type Reranker struct {
	encoder interfaces.CrossEncoder
	topK    int
	logger  arbor.ILogger
}

// NewReranker creates a reranker keeping topK candidates (DefaultTopK when <= 0)
func NewReranker(encoder interfaces.CrossEncoder, topK int, logger arbor.ILogger) *Reranker {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Reranker{
		encoder: encoder,
		topK:    topK,
		logger:  logger,
	}
}

// Rerank scores every candidate against the query and keeps the best topK.
// Equal scores keep the candidates' original order. The selected texts are
// concatenated best-first with no separator.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []string) (*models.RankedResult, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates to rerank", interfaces.ErrRerank)
	}

	start := time.Now()
	scores, err := r.encoder.Score(ctx, query, candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrRerank, err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("%w: got %d scores for %d candidates", interfaces.ErrRerank, len(scores), len(candidates))
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	k := min(r.topK, len(order))
	result := &models.RankedResult{
		SelectedIndices: make([]int, 0, k),
		Scores:          make([]float32, 0, k),
	}

	var text strings.Builder
	for _, idx := range order[:k] {
		result.SelectedIndices = append(result.SelectedIndices, idx)
		result.Scores = append(result.Scores, scores[idx])
		text.WriteString(candidates[idx])
	}
	result.ConcatenatedText = text.String()

	r.logger.Debug().
		Str("model", r.encoder.ModelName()).
		Int("candidates", len(candidates)).
		Str("selected", fmt.Sprint(result.SelectedIndices)).
		Dur("duration", time.Since(start)).
		Msg("Reranked candidates")

	return result, nil
}
