package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/interfaces"
)

// NewLLMService creates the LLM service for a single provider
func NewLLMService(ctx context.Context, provider interfaces.LLMProvider, cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	switch provider {
	case interfaces.LLMProviderOllama:
		return NewOpenAIService(provider, &cfg.Ollama, logger)
	case interfaces.LLMProviderOpenAI:
		return NewOpenAIService(provider, &cfg.OpenAI, logger)
	case interfaces.LLMProviderGemini:
		return NewGeminiService(ctx, &cfg.Gemini, logger)
	case interfaces.LLMProviderClaude:
		return NewClaudeService(&cfg.Claude, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// NewServices creates the chat and embedding services from configuration.
// When both roles use the same provider a single instance is returned twice.
func NewServices(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (chat interfaces.LLMService, embed interfaces.LLMService, err error) {
	chatProvider := interfaces.LLMProvider(cfg.LLM.Provider)
	embedProvider := interfaces.LLMProvider(cfg.EmbedProvider())

	if embedProvider == interfaces.LLMProviderClaude {
		return nil, nil, fmt.Errorf("claude cannot serve embeddings: set llm.embed_provider to ollama, openai or gemini")
	}

	logger.Info().
		Str("chat_provider", string(chatProvider)).
		Str("embed_provider", string(embedProvider)).
		Msg("Initializing LLM services")

	chat, err = NewLLMService(ctx, chatProvider, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chat service: %w", err)
	}
	if embedProvider == chatProvider {
		return chat, chat, nil
	}

	embed, err = NewLLMService(ctx, embedProvider, cfg, logger)
	if err != nil {
		chat.Close()
		return nil, nil, fmt.Errorf("failed to create embedding service: %w", err)
	}
	return chat, embed, nil
}
