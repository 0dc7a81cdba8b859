package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/interfaces"
)

func claudeEvent(name, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", name, data)
}

func newTestClaudeService(t *testing.T, events []string) *ClaudeService {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, event := range events {
			fmt.Fprint(w, event)
		}
	}))
	t.Cleanup(server.Close)

	service, err := NewClaudeService(&common.ClaudeConfig{
		APIKey:    "test-key",
		Model:     "claude-haiku-4-5",
		MaxTokens: 256,
		Timeout:   "10s",
		RateLimit: "0",
	}, arbor.NewLogger(), option.WithBaseURL(server.URL))
	require.NoError(t, err)
	return service
}

var claudePreamble = []string{
	claudeEvent("message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-haiku-4-5","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":1}}}`),
	claudeEvent("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
	claudeEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Revenue was "}}`),
	claudeEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"$5M."}}`),
	claudeEvent("content_block_stop", `{"type":"content_block_stop","index":0}`),
}

func TestClaudeService_ChatStream(t *testing.T) {
	events := append(append([]string{}, claudePreamble...),
		claudeEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":4}}`),
		claudeEvent("message_stop", `{"type":"message_stop"}`),
	)
	service := newTestClaudeService(t, events)

	ch, err := service.ChatStream(context.Background(), []interfaces.Message{
		{Role: "system", Content: "Answer from context."},
		{Role: "user", Content: "Context: x, Question: y"},
	})
	require.NoError(t, err)

	parts, done, err := drain(t, ch)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "Revenue was $5M.", strings.Join(parts, ""))
}

func TestClaudeService_ChatStreamWithoutStop(t *testing.T) {
	service := newTestClaudeService(t, claudePreamble)

	ch, err := service.ChatStream(context.Background(), []interfaces.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	_, done, err := drain(t, ch)
	assert.Error(t, err)
	assert.False(t, done)
}

func TestClaudeService_EmbedUnsupported(t *testing.T) {
	service := newTestClaudeService(t, nil)

	_, err := service.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, interfaces.ErrEmbeddingUnsupported)
}

func TestConvertMessagesToGemini(t *testing.T) {
	contents, system, err := convertMessagesToGemini([]interfaces.Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sys", system)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", string(contents[0].Role))
	assert.Equal(t, "model", string(contents[1].Role))
	assert.Equal(t, "question", contents[0].Parts[0].Text)
}

func TestNewServices_SharesInstanceForSameProvider(t *testing.T) {
	cfg := common.NewDefaultConfig()

	chat, embed, err := NewServices(context.Background(), cfg, arbor.NewLogger())
	require.NoError(t, err)
	assert.Same(t, chat, embed)
	assert.Equal(t, interfaces.LLMProviderOllama, chat.GetProvider())
}

func TestNewServices_RejectsClaudeEmbeddings(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.LLM.Provider = "claude"
	cfg.Claude.APIKey = "key"

	_, _, err := NewServices(context.Background(), cfg, arbor.NewLogger())
	assert.Error(t, err)
}

func TestNewServices_SeparateEmbedProvider(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.LLM.Provider = "claude"
	cfg.LLM.EmbedProvider = "ollama"
	cfg.Claude.APIKey = "key"

	chat, embed, err := NewServices(context.Background(), cfg, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, interfaces.LLMProviderClaude, chat.GetProvider())
	assert.Equal(t, interfaces.LLMProviderOllama, embed.GetProvider())
}
