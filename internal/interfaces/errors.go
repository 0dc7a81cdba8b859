package interfaces

import "errors"

// Pipeline error categories. Components wrap these with fmt.Errorf("...: %w")
// and the HTTP layer maps them to status codes with errors.Is.
var (
	// ErrInvalidInput is returned for requests the pipeline refuses to process
	// (wrong upload content type, empty prompt, unreadable PDF).
	ErrInvalidInput = errors.New("invalid input")

	// ErrIngest is returned when passages cannot be embedded or written.
	ErrIngest = errors.New("ingest failed")

	// ErrIndexUnavailable is returned when the vector store or the embedding
	// service backing a collection cannot be reached.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrRerank is returned when candidate scoring fails or is called with no candidates.
	ErrRerank = errors.New("rerank failed")

	// ErrGeneration is returned when the inference service fails or its stream
	// ends without a completion signal.
	ErrGeneration = errors.New("generation failed")

	// ErrNoResults marks an empty retrieval. It is not a fault: the pipeline
	// answers it with the canned no-results payload.
	ErrNoResults = errors.New("no relevant documents")

	// ErrNotFound is returned by storage lookups that find nothing.
	ErrNotFound = errors.New("not found")

	// ErrEmbeddingUnsupported is returned by chat-only providers asked for embeddings.
	ErrEmbeddingUnsupported = errors.New("provider does not support embeddings")
)
