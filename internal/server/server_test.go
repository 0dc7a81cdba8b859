package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/app"
	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/handlers"
)

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '$'
	})
}

func hashEmbedding(text string) []float32 {
	v := make([]float32, 32)
	for _, w := range words(text) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%32]++
	}
	v[31] += 0.01
	return v
}

// newFakeOllama serves the OpenAI-compatible endpoints the pipeline uses.
// Chat answers quote the context they were given.
func newFakeOllama(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"phi4","object":"model"},{"id":"nomic-embed-text:latest","object":"model"}]}`)
	})
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]interface{}, len(req.Input))
		for i, input := range req.Input {
			data[i] = map[string]interface{}{"object": "embedding", "index": i, "embedding": hashEmbedding(input)}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"object": "list", "model": "nomic-embed-text:latest", "data": data})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		turn := req.Messages[len(req.Messages)-1].Content
		contextText := strings.TrimPrefix(turn[:strings.LastIndex(turn, ", Question:")], "Context: ")

		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range strings.SplitAfter("According to the report, "+contextText, " ") {
			chunk, _ := json.Marshal(map[string]interface{}{
				"id": "chatcmpl-1", "object": "chat.completion.chunk", "model": "phi4",
				"choices": []map[string]interface{}{{"index": 0, "delta": map[string]string{"content": part}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, `data: {"id":"chatcmpl-1","object":"chat.completion.chunk","model":"phi4","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// newFakeReranker scores candidates by words shared with the query
func newFakeReranker(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string   `json:"query"`
			Texts []string `json:"texts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		queryWords := make(map[string]bool)
		for _, w := range words(req.Query) {
			queryWords[w] = true
		}
		scores := make([]map[string]interface{}, len(req.Texts))
		for i, text := range req.Texts {
			seen := make(map[string]bool)
			for _, w := range words(text) {
				if queryWords[w] {
					seen[w] = true
				}
			}
			score := float64(len(seen))
			scores[i] = map[string]interface{}{"index": i, "score": score}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(scores)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = t.TempDir()
	cfg.Ollama.BaseURL = newFakeOllama(t).URL + "/v1"
	cfg.Rerank.URL = newFakeReranker(t).URL
	cfg.Maintenance.Enabled = false

	application, err := app.New(context.Background(), cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })

	server := httptest.NewServer(New(application).Handler())
	t.Cleanup(server.Close)
	return server
}

func reportPDF(t *testing.T) []byte {
	t.Helper()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, text := range []string{
		"The weather in Paris was mild throughout the spring season.",
		"Total revenue was $5M in 2023.",
	} {
		doc.AddPage()
		doc.MultiCell(0, 6, text, "", "L", false)
	}

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func upload(t *testing.T, baseURL, filename, contentType string, data []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	part.Write(data)
	require.NoError(t, writer.Close())

	resp, err := http.Post(baseURL+"/process", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func ask(t *testing.T, baseURL, prompt string) map[string]interface{} {
	t.Helper()

	resp, err := http.PostForm(baseURL+"/ask", url.Values{"prompt": {prompt}})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestServer_UploadAndAsk(t *testing.T) {
	server := newTestServer(t)

	empty := ask(t, server.URL, "What is the total revenue?")
	assert.Equal(t, "No relevant documents found.", empty["response"])
	assert.Equal(t, []interface{}{}, empty["retrieved_documents"])

	resp := upload(t, server.URL, "Report v1.pdf", "application/pdf", reportPDF(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var processed map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&processed))
	assert.Equal(t, handlers.ProcessSuccessMessage, processed["message"])

	answer := ask(t, server.URL, "What is the total revenue?")
	assert.Contains(t, answer["response"], "$5M")

	retrieved := answer["retrieved_documents"].(map[string]interface{})
	ids := retrieved["ids"].([]interface{})[0].([]interface{})
	assert.ElementsMatch(t, []interface{}{"Report_v1_pdf_0", "Report_v1_pdf_1"}, ids)

	relevant := answer["relevant_ids"].([]interface{})
	require.Len(t, relevant, 2)
	documents := retrieved["documents"].([]interface{})[0].([]interface{})
	assert.Contains(t, documents[int(relevant[0].(float64))], "revenue")

	statsResp, err := http.Get(server.URL + "/api/collection")
	require.NoError(t, err)
	defer statsResp.Body.Close()
	var stats map[string]interface{}
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&stats))
	assert.Equal(t, "rag_app", stats["name"])
	assert.Equal(t, float64(2), stats["passage_count"])
	assert.Equal(t, "ollama/nomic-embed-text:latest", stats["embedding_model"])
}

func TestServer_RejectsNonPDF(t *testing.T) {
	server := newTestServer(t)

	resp := upload(t, server.URL, "notes.txt", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"error": "Invalid file type"}, body)
}

func TestServer_AskWebSocket(t *testing.T) {
	server := newTestServer(t)
	require.Equal(t, http.StatusOK, upload(t, server.URL, "report.pdf", "application/pdf", reportPDF(t)).StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ask/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteJSON(handlers.AskRequest{Prompt: "What is the total revenue?"}))

	var answer strings.Builder
	for {
		var msg handlers.AskMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "done" {
			assert.NotEmpty(t, msg.RelevantIDs)
			break
		}
		require.Equal(t, "fragment", msg.Type, msg.Error)
		answer.WriteString(msg.Content)
	}
	assert.Contains(t, answer.String(), "$5M")
}

func TestServer_Middleware(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/ask", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(server.URL + "/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	health, err := http.Get(server.URL + "/api/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
