package rag

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/models"
	"github.com/ternarybob/docqa/internal/services/chunker"
	"github.com/ternarybob/docqa/internal/services/generation"
	"github.com/ternarybob/docqa/internal/services/rerank"
	"github.com/ternarybob/docqa/internal/services/retrieval"
)

// PDFContentType is the only upload type accepted by Ingest
const PDFContentType = "application/pdf"

// Service composes the pipeline stages. Stages run strictly in order for a
// single request; concurrent requests share only the index.
type Service struct {
	extractor  interfaces.PDFExtractor
	splitter   *chunker.Splitter
	index      interfaces.IndexAdapter
	retriever  *retrieval.Orchestrator
	reranker   *rerank.Reranker
	generator  *generation.Generator
	collection string
	logger     arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.RAGService = (*Service)(nil)

// NewService creates the pipeline service
func NewService(
	extractor interfaces.PDFExtractor,
	splitter *chunker.Splitter,
	index interfaces.IndexAdapter,
	reranker *rerank.Reranker,
	generator *generation.Generator,
	collection string,
	nResults int,
	logger arbor.ILogger,
) *Service {
	return &Service{
		extractor:  extractor,
		splitter:   splitter,
		index:      index,
		retriever:  retrieval.NewOrchestrator(index, collection, nResults, logger),
		reranker:   reranker,
		generator:  generator,
		collection: collection,
		logger:     logger,
	}
}

// Ingest extracts, splits and indexes an uploaded PDF. The filename is the
// document identifier, so re-uploading a file overwrites its passages.
func (s *Service) Ingest(ctx context.Context, req interfaces.IngestRequest) (*interfaces.IngestResult, error) {
	logger := s.logger.WithCorrelationId(uuid.New().String())
	start := time.Now()

	mediaType, _, err := mime.ParseMediaType(req.ContentType)
	if err != nil || mediaType != PDFContentType {
		return nil, fmt.Errorf("%w: content type %q is not %s", interfaces.ErrInvalidInput, req.ContentType, PDFContentType)
	}
	if models.NormalizeDocumentID(req.Filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", interfaces.ErrInvalidInput)
	}

	pages, err := s.extractor.ExtractPages(ctx, req.Data)
	if err != nil {
		if errors.Is(err, interfaces.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", interfaces.ErrIngest, err)
	}

	fragments := s.splitter.SplitPages(req.Filename, pages)

	collection, err := s.index.GetOrCreateCollection(ctx, s.collection)
	if err != nil {
		return nil, err
	}

	ids, err := s.index.Upsert(ctx, collection, fragments, req.Filename)
	if err != nil {
		logger.Error().
			Err(err).
			Str("filename", req.Filename).
			Msg("Failed to index document")
		return nil, err
	}

	result := &interfaces.IngestResult{
		DocumentID:   models.NormalizeDocumentID(req.Filename),
		PassageCount: len(ids),
		PassageIDs:   ids,
		PageCount:    len(pages),
	}

	logger.Info().
		Str("filename", req.Filename).
		Str("document_id", result.DocumentID).
		Int("pages", result.PageCount).
		Int("passages", result.PassageCount).
		Dur("duration", time.Since(start)).
		Msg("Document ingested")

	return result, nil
}

// Ask answers a question and returns the fully drained answer
func (s *Service) Ask(ctx context.Context, prompt string) (*models.Answer, error) {
	return s.AskStream(ctx, prompt, nil)
}

// AskStream answers a question, forwarding each fragment to onFragment as it
// arrives. An empty retrieval returns the no-results answer without calling
// the reranker or generator.
func (s *Service) AskStream(ctx context.Context, prompt string, onFragment interfaces.FragmentFunc) (*models.Answer, error) {
	logger := s.logger.WithCorrelationId(uuid.New().String())
	start := time.Now()

	retrieved, err := s.retriever.Retrieve(ctx, prompt)
	if errors.Is(err, interfaces.ErrNoResults) {
		logger.Info().Msg("No relevant documents found")
		return models.NoResultsAnswer(), nil
	}
	if err != nil {
		return nil, err
	}

	ranked, err := s.reranker.Rerank(ctx, prompt, retrieved.Candidates)
	if err != nil {
		return nil, err
	}

	stream, err := s.generator.Generate(ctx, ranked.ConcatenatedText, prompt)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var response string
	if onFragment == nil {
		response, err = stream.Drain(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		response, err = forward(ctx, stream, onFragment)
		if err != nil {
			return nil, err
		}
	}

	logger.Info().
		Int("candidates", len(retrieved.Candidates)).
		Str("relevant_ids", fmt.Sprint(ranked.SelectedIndices)).
		Int("fragments", stream.Fragments()).
		Dur("duration", time.Since(start)).
		Msg("Question answered")

	return &models.Answer{
		Response:           response,
		RetrievedDocuments: retrieved.Result,
		RelevantIDs:        ranked.SelectedIndices,
	}, nil
}

// Stats reports the collection's size and embedding binding
func (s *Service) Stats(ctx context.Context) (*models.CollectionStats, error) {
	collection, err := s.index.GetOrCreateCollection(ctx, s.collection)
	if err != nil {
		return nil, err
	}

	count, err := s.index.Count(ctx, collection)
	if err != nil {
		return nil, err
	}

	return &models.CollectionStats{
		Name:           collection.Name,
		Space:          collection.Space,
		EmbeddingModel: collection.EmbeddingModel,
		Dimension:      collection.Dimension,
		PassageCount:   count,
	}, nil
}
