package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiService implements the LLMService interface using the Google genai SDK.
// It provides embeddings and streamed chat completions using Gemini models.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// convertMessagesToGemini converts messages to Gemini content and returns the
// system instruction separately.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	system, turns, err := splitSystem(messages)
	if err != nil {
		return nil, "", err
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, msg := range turns {
		role := genai.Role(genai.RoleUser)
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents, system, nil
}

// NewGeminiService creates a new Gemini LLM service instance
func NewGeminiService(ctx context.Context, config *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required for Gemini (set DOCQA_GEMINI_API_KEY, GEMINI_API_KEY, or gemini.api_key in config)")
	}

	timeout, err := common.ParseDuration(config.Timeout)
	if err != nil {
		return nil, err
	}

	limiter, err := newLimiter(config.RateLimit)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Debug().
		Str("embed_model", config.EmbedModel).
		Str("chat_model", config.ChatModel).
		Int("embed_dimension", config.EmbedDimension).
		Dur("timeout", timeout).
		Msg("Gemini LLM service initialized")

	return &GeminiService{
		config:  config,
		logger:  logger,
		client:  client,
		limiter: limiter,
		timeout: timeout,
	}, nil
}

// Embed generates an embedding vector with the configured dimensionality
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	embedConfig := &genai.EmbedContentConfig{}
	if s.config.EmbedDimension > 0 {
		outputDim := int32(s.config.EmbedDimension)
		embedConfig.OutputDimensionality = &outputDim
	}

	startTime := time.Now()
	result, err := s.client.Models.EmbedContent(timeoutCtx, s.config.EmbedModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, embedConfig)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding returned from Gemini")
	}

	embedding := result.Embeddings[0].Values
	if s.config.EmbedDimension > 0 && len(embedding) != s.config.EmbedDimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.config.EmbedDimension, len(embedding))
	}

	s.logger.Debug().
		Int("text_length", len(text)).
		Int("embedding_dim", len(embedding)).
		Dur("duration", time.Since(startTime)).
		Msg("Embedding generated")

	return embedding, nil
}

// Chat generates a complete response for the conversation
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	contents, config, err := s.generateRequest(messages)
	if err != nil {
		return "", err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	timeoutCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Models.GenerateContent(timeoutCtx, s.config.ChatModel, contents, config)
	if err != nil {
		return "", fmt.Errorf("chat generation failed: %w", err)
	}
	if resp == nil || resp.Text() == "" {
		return "", fmt.Errorf("no response generated from chat model")
	}
	return resp.Text(), nil
}

// ChatStream streams a completion. The stream counts as finished once a
// candidate reports a finish reason.
func (s *GeminiService) ChatStream(ctx context.Context, messages []interfaces.Message) (<-chan interfaces.StreamChunk, error) {
	contents, config, err := s.generateRequest(messages)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	streamCtx, cancel := withTimeout(ctx, s.timeout)
	out := make(chan interfaces.StreamChunk)

	common.SafeGo(s.logger, "geminiChatStream", func() {
		defer close(out)
		defer cancel()

		finished := false
		for resp, err := range s.client.Models.GenerateContentStream(streamCtx, s.config.ChatModel, contents, config) {
			if err != nil {
				sendChunk(streamCtx, out, interfaces.StreamChunk{Err: fmt.Errorf("chat stream failed: %w", err)})
				return
			}
			if resp == nil {
				continue
			}
			if text := resp.Text(); text != "" {
				if !sendChunk(streamCtx, out, interfaces.StreamChunk{Content: text}) {
					return
				}
			}
			for _, candidate := range resp.Candidates {
				if candidate.FinishReason != "" {
					finished = true
				}
			}
		}

		if !finished {
			sendChunk(streamCtx, out, interfaces.StreamChunk{Err: fmt.Errorf("gemini stream ended without a finish reason")})
			return
		}
		sendChunk(streamCtx, out, interfaces.StreamChunk{Done: true})
	})

	return out, nil
}

func (s *GeminiService) generateRequest(messages []interfaces.Message) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	contents, system, err := convertMessagesToGemini(messages)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.config.Temperature),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return contents, config, nil
}

// HealthCheck fetches the chat model descriptor
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("genai client is not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.client.Models.Get(healthCtx, s.config.ChatModel, nil); err != nil {
		return fmt.Errorf("gemini health check failed: %w", err)
	}
	return nil
}

// GetProvider returns LLMProviderGemini
func (s *GeminiService) GetProvider() interfaces.LLMProvider {
	return interfaces.LLMProviderGemini
}

// Close releases the client reference; genai.Client needs no explicit cleanup
func (s *GeminiService) Close() error {
	s.logger.Debug().Msg("Closing Gemini LLM service")
	s.client = nil
	return nil
}
