package rag

import (
	"context"
	"io"
	"strings"

	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/services/generation"
)

// forward relays fragments to onFragment and returns the joined answer.
// A callback error stops the stream.
func forward(ctx context.Context, stream *generation.Stream, onFragment interfaces.FragmentFunc) (string, error) {
	var answer strings.Builder
	for {
		fragment, err := stream.Recv(ctx)
		if err == io.EOF {
			return answer.String(), nil
		}
		if err != nil {
			return "", err
		}
		answer.WriteString(fragment)
		if err := onFragment(fragment); err != nil {
			return "", err
		}
	}
}
