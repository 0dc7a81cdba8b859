package interfaces

import (
	"context"
)

// LLMProvider identifies the backend an LLMService talks to
type LLMProvider string

const (
	// LLMProviderOllama uses a local Ollama server through its OpenAI-compatible API
	LLMProviderOllama LLMProvider = "ollama"

	// LLMProviderOpenAI uses any OpenAI-compatible endpoint
	LLMProviderOpenAI LLMProvider = "openai"

	// LLMProviderGemini uses Google Gemini
	LLMProviderGemini LLMProvider = "gemini"

	// LLMProviderClaude uses Anthropic Claude (chat only)
	LLMProviderClaude LLMProvider = "claude"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// StreamChunk is one element of a streamed chat completion.
//
// A well-formed stream is zero or more content chunks followed by exactly one
// chunk with Done set. A chunk with Err set terminates the stream with a
// failure. A channel that closes without either is a malformed stream.
type StreamChunk struct {
	Content string
	Done    bool
	Err     error
}

// LLMService defines the language model operations used by the pipeline:
// embeddings for the vector index and streamed chat completions for answers.
type LLMService interface {
	// Embed generates an embedding vector for the given text.
	// Chat-only providers return ErrEmbeddingUnsupported.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Chat generates a complete response for the conversation.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatStream starts a streamed completion. The returned channel is closed
	// by the provider after the terminal chunk, or when ctx is cancelled.
	ChatStream(ctx context.Context, messages []Message) (<-chan StreamChunk, error)

	// HealthCheck verifies the service is reachable.
	HealthCheck(ctx context.Context) error

	// GetProvider returns the backend this service talks to.
	GetProvider() LLMProvider

	// Close releases client resources.
	Close() error
}
