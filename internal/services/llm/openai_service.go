package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/interfaces"
	"golang.org/x/time/rate"
)

// OpenAIService implements the LLMService interface against an
// OpenAI-compatible API. It serves both OpenAI and a local Ollama server
// (Ollama exposes the same API under /v1).
type OpenAIService struct {
	provider interfaces.LLMProvider
	config   *common.OpenAIConfig
	logger   arbor.ILogger
	client   *openai.Client
	limiter  *rate.Limiter
	timeout  time.Duration
}

// convertMessagesToOpenAI maps pipeline messages onto chat completion messages
func convertMessagesToOpenAI(messages []interfaces.Message) ([]openai.ChatCompletionMessage, error) {
	system, turns, err := splitSystem(messages)
	if err != nil {
		return nil, err
	}

	converted := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range turns {
		role := openai.ChatMessageRoleUser
		if msg.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return converted, nil
}

// NewOpenAIService creates a service for an OpenAI-compatible endpoint
func NewOpenAIService(provider interfaces.LLMProvider, config *common.OpenAIConfig, logger arbor.ILogger) (*OpenAIService, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%s base_url is required", provider)
	}
	if config.ChatModel == "" && config.EmbedModel == "" {
		return nil, fmt.Errorf("%s requires chat_model or embed_model", provider)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		if provider != interfaces.LLMProviderOllama {
			return nil, fmt.Errorf("API key is required for %s (set DOCQA_OPENAI_API_KEY, OPENAI_API_KEY, or openai.api_key in config)", provider)
		}
		apiKey = "ollama"
	}

	timeout, err := common.ParseDuration(config.Timeout)
	if err != nil {
		return nil, err
	}

	limiter, err := newLimiter(config.RateLimit)
	if err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")

	service := &OpenAIService{
		provider: provider,
		config:   config,
		logger:   logger,
		client:   openai.NewClientWithConfig(clientConfig),
		limiter:  limiter,
		timeout:  timeout,
	}

	logger.Debug().
		Str("provider", string(provider)).
		Str("base_url", clientConfig.BaseURL).
		Str("embed_model", config.EmbedModel).
		Str("chat_model", config.ChatModel).
		Dur("timeout", timeout).
		Msg("OpenAI-compatible LLM service initialized")

	return service, nil
}

// Embed generates an embedding vector for the given text
func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}
	if s.config.EmbedModel == "" {
		return nil, fmt.Errorf("%w: %s has no embed_model configured", interfaces.ErrEmbeddingUnsupported, s.provider)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	resp, err := s.client.CreateEmbeddings(timeoutCtx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(s.config.EmbedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned from %s", s.provider)
	}

	embedding := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		embedding[i] = float32(v)
	}

	s.logger.Debug().
		Int("text_length", len(text)).
		Int("embedding_dim", len(embedding)).
		Dur("duration", time.Since(startTime)).
		Msg("Embedding generated")

	return embedding, nil
}

// Chat generates a complete response for the conversation
func (s *OpenAIService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	request, err := s.chatRequest(messages, false)
	if err != nil {
		return "", err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	timeoutCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(timeoutCtx, request)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response generated from %s", s.provider)
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream starts a streamed chat completion. The stream is complete only
// when a choice reports a finish reason; a body that ends before that is
// reported as an error.
func (s *OpenAIService) ChatStream(ctx context.Context, messages []interfaces.Message) (<-chan interfaces.StreamChunk, error) {
	request, err := s.chatRequest(messages, true)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	streamCtx, cancel := withTimeout(ctx, s.timeout)
	stream, err := s.client.CreateChatCompletionStream(streamCtx, request)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("chat stream failed: %w", err)
	}

	out := make(chan interfaces.StreamChunk)
	common.SafeGo(s.logger, "openaiChatStream", func() {
		defer close(out)
		defer cancel()
		defer stream.Close()

		finished := false
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				if !finished {
					sendChunk(streamCtx, out, interfaces.StreamChunk{Err: fmt.Errorf("%s stream ended without a finish reason", s.provider)})
					return
				}
				sendChunk(streamCtx, out, interfaces.StreamChunk{Done: true})
				return
			}
			if err != nil {
				sendChunk(streamCtx, out, interfaces.StreamChunk{Err: fmt.Errorf("chat stream receive failed: %w", err)})
				return
			}

			for _, choice := range resp.Choices {
				if choice.Delta.Content != "" {
					if !sendChunk(streamCtx, out, interfaces.StreamChunk{Content: choice.Delta.Content}) {
						return
					}
				}
				if choice.FinishReason != "" {
					finished = true
				}
			}
		}
	})

	return out, nil
}

func (s *OpenAIService) chatRequest(messages []interfaces.Message, stream bool) (openai.ChatCompletionRequest, error) {
	if s.config.ChatModel == "" {
		return openai.ChatCompletionRequest{}, fmt.Errorf("%s has no chat_model configured", s.provider)
	}
	converted, err := convertMessagesToOpenAI(messages)
	if err != nil {
		return openai.ChatCompletionRequest{}, fmt.Errorf("failed to convert messages: %w", err)
	}
	return openai.ChatCompletionRequest{
		Model:       s.config.ChatModel,
		Messages:    converted,
		Temperature: s.config.Temperature,
		Stream:      stream,
	}, nil
}

// HealthCheck lists models to verify the endpoint is reachable
func (s *OpenAIService) HealthCheck(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.client.ListModels(healthCtx); err != nil {
		return fmt.Errorf("%s health check failed: %w", s.provider, err)
	}
	return nil
}

// GetProvider returns the configured provider name
func (s *OpenAIService) GetProvider() interfaces.LLMProvider {
	return s.provider
}

// Close releases resources
func (s *OpenAIService) Close() error {
	s.logger.Debug().Str("provider", string(s.provider)).Msg("Closing LLM service")
	return nil
}
