package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/interfaces"
	"golang.org/x/time/rate"
)

// ClaudeService implements the LLMService interface using the Anthropic API.
// Claude has no embedding endpoint, so it can only serve chat.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	limiter   *rate.Limiter
	timeout   time.Duration
	maxTokens int
}

// convertMessagesToClaude converts messages to Claude params and returns the
// system prompt separately.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	system, turns, err := splitSystem(messages)
	if err != nil {
		return nil, "", err
	}

	converted := make([]anthropic.MessageParam, 0, len(turns))
	for _, msg := range turns {
		if msg.Role == "assistant" {
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			continue
		}
		converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
	}
	return converted, system, nil
}

// NewClaudeService creates a new Claude LLM service instance.
// Extra request options (such as option.WithBaseURL) are appended last.
func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger, opts ...option.RequestOption) (*ClaudeService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for Claude (set ANTHROPIC_API_KEY, DOCQA_CLAUDE_API_KEY, or claude.api_key in config)")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("claude model is required")
	}

	timeout, err := common.ParseDuration(config.Timeout)
	if err != nil {
		return nil, err
	}

	limiter, err := newLimiter(config.RateLimit)
	if err != nil {
		return nil, err
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	requestOptions := append([]option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}, opts...)

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude LLM service initialized")

	return &ClaudeService{
		config:    config,
		logger:    logger,
		client:    anthropic.NewClient(requestOptions...),
		limiter:   limiter,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

// Embed is not supported by Claude
func (s *ClaudeService) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, interfaces.ErrEmbeddingUnsupported
}

// Chat generates a complete response for the conversation
func (s *ClaudeService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	params, err := s.messageParams(messages)
	if err != nil {
		return "", err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	timeoutCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}
	return response.String(), nil
}

// ChatStream streams text deltas; the stream is complete on message_stop
func (s *ClaudeService) ChatStream(ctx context.Context, messages []interfaces.Message) (<-chan interfaces.StreamChunk, error) {
	params, err := s.messageParams(messages)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	streamCtx, cancel := withTimeout(ctx, s.timeout)
	stream := s.client.Messages.NewStreaming(streamCtx, params)
	out := make(chan interfaces.StreamChunk)

	common.SafeGo(s.logger, "claudeChatStream", func() {
		defer close(out)
		defer cancel()
		defer stream.Close()

		stopped := false
		for stream.Next() {
			switch event := stream.Current().AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := event.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					if !sendChunk(streamCtx, out, interfaces.StreamChunk{Content: delta.Text}) {
						return
					}
				}
			case anthropic.MessageStopEvent:
				stopped = true
			}
		}

		if err := stream.Err(); err != nil {
			sendChunk(streamCtx, out, interfaces.StreamChunk{Err: fmt.Errorf("Claude stream failed: %w", err)})
			return
		}
		if !stopped {
			sendChunk(streamCtx, out, interfaces.StreamChunk{Err: fmt.Errorf("Claude stream ended without message_stop")})
			return
		}
		sendChunk(streamCtx, out, interfaces.StreamChunk{Done: true})
	})

	return out, nil
}

func (s *ClaudeService) messageParams(messages []interfaces.Message) (anthropic.MessageNewParams, error) {
	converted, system, err := convertMessagesToClaude(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("failed to convert messages to Claude format: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages:  converted,
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params, nil
}

// HealthCheck verifies the client is configured. A live probe would spend tokens.
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	if s.config.APIKey == "" {
		return fmt.Errorf("Claude client is not configured")
	}
	return ctx.Err()
}

// GetProvider returns LLMProviderClaude
func (s *ClaudeService) GetProvider() interfaces.LLMProvider {
	return interfaces.LLMProviderClaude
}

// Close releases resources
func (s *ClaudeService) Close() error {
	s.logger.Debug().Msg("Closing Claude LLM service")
	return nil
}
