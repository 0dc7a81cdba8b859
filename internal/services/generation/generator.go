package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
)

// Generator produces grounded answers from reranked context
type Generator struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

// NewGenerator creates a generator over the chat provider
func NewGenerator(llm interfaces.LLMService, logger arbor.ILogger) *Generator {
	return &Generator{
		llm:    llm,
		logger: logger,
	}
}

// Messages builds the system instruction and user turn for one question
func Messages(contextText, question string) []interfaces.Message {
	return []interfaces.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: userTurn(contextText, question)},
	}
}

// Generate starts a streamed answer. The returned Stream must be drained or
// closed; closing it before completion releases the provider connection.
func (g *Generator) Generate(ctx context.Context, contextText, question string) (*Stream, error) {
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", interfaces.ErrInvalidInput)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	chunks, err := g.llm.ChatStream(streamCtx, Messages(contextText, question))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrGeneration, g.llm.GetProvider(), err)
	}

	g.logger.Debug().
		Str("provider", string(g.llm.GetProvider())).
		Int("context_length", len(contextText)).
		Msg("Generation stream started")

	return newStream(chunks, cancel, g.logger), nil
}

// Answer generates and fully drains an answer
func (g *Generator) Answer(ctx context.Context, contextText, question string) (string, error) {
	start := time.Now()

	stream, err := g.Generate(ctx, contextText, question)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	answer, err := stream.Drain(ctx)
	if err != nil {
		return "", err
	}

	g.logger.Info().
		Str("provider", string(g.llm.GetProvider())).
		Int("fragments", stream.Fragments()).
		Int("answer_length", len(answer)).
		Dur("duration", time.Since(start)).
		Msg("Answer generated")

	return answer, nil
}
