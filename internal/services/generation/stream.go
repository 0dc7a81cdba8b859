package generation

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
)

// Stream is a finite, single-use sequence of answer fragments. Recv returns
// io.EOF once the provider signals completion. A stream that ends without
// that signal fails with ErrGeneration.
type Stream struct {
	chunks    <-chan interfaces.StreamChunk
	cancel    context.CancelFunc
	logger    arbor.ILogger
	finished  bool
	err       error
	fragments int
	closeOnce sync.Once
}

func newStream(chunks <-chan interfaces.StreamChunk, cancel context.CancelFunc, logger arbor.ILogger) *Stream {
	return &Stream{
		chunks: chunks,
		cancel: cancel,
		logger: logger,
	}
}

// Recv blocks for the next non-empty fragment
func (s *Stream) Recv(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.finished {
		return "", io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			s.fail(err)
			return "", s.err
		}

		select {
		case <-ctx.Done():
			s.fail(ctx.Err())
			return "", s.err

		case chunk, ok := <-s.chunks:
			switch {
			case !ok:
				s.fail(fmt.Errorf("%w: stream closed without completion signal", interfaces.ErrGeneration))
				return "", s.err
			case chunk.Err != nil:
				s.fail(fmt.Errorf("%w: %v", interfaces.ErrGeneration, chunk.Err))
				return "", s.err
			case chunk.Content != "":
				s.fragments++
				if chunk.Done {
					s.finished = true
					s.Close()
				}
				return chunk.Content, nil
			case chunk.Done:
				s.finished = true
				s.Close()
				return "", io.EOF
			}
		}
	}
}

// Drain reads every fragment and joins them in arrival order. On any
// failure no partial answer is returned.
func (s *Stream) Drain(ctx context.Context) (string, error) {
	var answer strings.Builder
	for {
		fragment, err := s.Recv(ctx)
		if err == io.EOF {
			return answer.String(), nil
		}
		if err != nil {
			return "", err
		}
		answer.WriteString(fragment)
	}
}

// Fragments returns the number of fragments received so far
func (s *Stream) Fragments() int {
	return s.fragments
}

// Close stops the provider stream. Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(s.cancel)
}

func (s *Stream) fail(err error) {
	s.err = err
	s.Close()
	s.logger.Warn().
		Err(err).
		Int("fragments", s.fragments).
		Msg("Generation stream aborted")
}
