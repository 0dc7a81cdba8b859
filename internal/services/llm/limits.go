package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/interfaces"
	"golang.org/x/time/rate"
)

// newLimiter builds a limiter allowing one call per interval; "0" or "" disables limiting
func newLimiter(interval string) (*rate.Limiter, error) {
	d, err := common.ParseDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("invalid rate_limit: %w", err)
	}
	if d == 0 {
		return rate.NewLimiter(rate.Inf, 1), nil
	}
	return rate.NewLimiter(rate.Every(d), 1), nil
}

// withTimeout bounds ctx by d; a zero duration leaves ctx unbounded
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// splitSystem separates the first system message from the conversation turns.
// At least one user turn is required.
func splitSystem(messages []interfaces.Message) (string, []interfaces.Message, error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("messages cannot be empty")
	}

	var system string
	turns := make([]interfaces.Message, 0, len(messages))
	hasUser := false
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if system == "" {
				system = msg.Content
			}
			continue
		case "user":
			hasUser = true
		}
		turns = append(turns, msg)
	}

	if !hasUser {
		return "", nil, fmt.Errorf("at least one message must have role 'user'")
	}
	return system, turns, nil
}

// sendChunk delivers a chunk unless ctx is cancelled first
func sendChunk(ctx context.Context, out chan<- interfaces.StreamChunk, chunk interfaces.StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
