package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/models"
)

// mockRAGService implements interfaces.RAGService for testing
type mockRAGService struct {
	ingestFunc    func(ctx context.Context, req interfaces.IngestRequest) (*interfaces.IngestResult, error)
	askStreamFunc func(ctx context.Context, prompt string, onFragment interfaces.FragmentFunc) (*models.Answer, error)
	statsFunc     func(ctx context.Context) (*models.CollectionStats, error)
}

func (m *mockRAGService) Ingest(ctx context.Context, req interfaces.IngestRequest) (*interfaces.IngestResult, error) {
	if m.ingestFunc != nil {
		return m.ingestFunc(ctx, req)
	}
	return &interfaces.IngestResult{}, nil
}

func (m *mockRAGService) Ask(ctx context.Context, prompt string) (*models.Answer, error) {
	return m.AskStream(ctx, prompt, nil)
}

func (m *mockRAGService) AskStream(ctx context.Context, prompt string, onFragment interfaces.FragmentFunc) (*models.Answer, error) {
	if m.askStreamFunc != nil {
		return m.askStreamFunc(ctx, prompt, onFragment)
	}
	return models.NoResultsAnswer(), nil
}

func (m *mockRAGService) Stats(ctx context.Context) (*models.CollectionStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx)
	}
	return &models.CollectionStats{}, nil
}

// revenueAnswer streams a fixed answer over a one-passage retrieval
func revenueAnswer(ctx context.Context, prompt string, onFragment interfaces.FragmentFunc) (*models.Answer, error) {
	result := models.NewQueryResult(1)
	result.IDs[0] = []string{"report_pdf_0"}
	result.Documents[0] = []string{"Total revenue was $5M in 2023."}
	result.Distances[0] = []float32{0.12}
	result.Metadatas[0] = []map[string]string{{"source": "report.pdf", "page": "0"}}

	parts := []string{"Total revenue was ", "**$5M**", " in 2023."}
	for _, part := range parts {
		if onFragment != nil {
			if err := onFragment(part); err != nil {
				return nil, err
			}
		}
	}
	return &models.Answer{
		Response:           strings.Join(parts, ""),
		RetrievedDocuments: result,
		RelevantIDs:        []int{0},
	}, nil
}

func uploadRequest(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func askRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestProcessHandler_Success(t *testing.T) {
	var captured interfaces.IngestRequest
	service := &mockRAGService{ingestFunc: func(ctx context.Context, req interfaces.IngestRequest) (*interfaces.IngestResult, error) {
		captured = req
		return &interfaces.IngestResult{DocumentID: "Report_v1_pdf", PassageCount: 3}, nil
	}}
	handler := NewRAGHandler(service, 1<<20, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.ProcessHandler(rec, uploadRequest(t, "Report v1.pdf", "application/pdf", []byte("%PDF-1.4 body")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "Data added to the vector store!"}`, rec.Body.String())
	assert.Equal(t, "Report v1.pdf", captured.Filename)
	assert.Equal(t, []byte("%PDF-1.4 body"), captured.Data)
}

func TestProcessHandler_InvalidFileType(t *testing.T) {
	called := false
	service := &mockRAGService{ingestFunc: func(ctx context.Context, req interfaces.IngestRequest) (*interfaces.IngestResult, error) {
		called = true
		return nil, nil
	}}
	handler := NewRAGHandler(service, 1<<20, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.ProcessHandler(rec, uploadRequest(t, "notes.txt", "text/plain", []byte("hello")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "Invalid file type"}`, rec.Body.String())
	assert.False(t, called)
}

func TestProcessHandler_Errors(t *testing.T) {
	handler := NewRAGHandler(&mockRAGService{}, 1<<20, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.ProcessHandler(rec, httptest.NewRequest(http.MethodGet, "/process", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	handler.ProcessHandler(rec, askRequest(url.Values{"prompt": {"hi"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	small := NewRAGHandler(&mockRAGService{}, 16, arbor.NewLogger())
	rec = httptest.NewRecorder()
	small.ProcessHandler(rec, uploadRequest(t, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 4096)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestProcessHandler_IngestFailureStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: no passages", interfaces.ErrIngest), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: store unreachable", interfaces.ErrIndexUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: broken xref", interfaces.ErrInvalidInput), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			service := &mockRAGService{ingestFunc: func(ctx context.Context, req interfaces.IngestRequest) (*interfaces.IngestResult, error) {
				return nil, tt.err
			}}
			rec := httptest.NewRecorder()
			NewRAGHandler(service, 1<<20, arbor.NewLogger()).ProcessHandler(rec, uploadRequest(t, "a.pdf", "application/pdf", []byte("%PDF")))

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decodeBody(t, rec)["error"], tt.err.Error())
		})
	}
}

func TestAskHandler_Answer(t *testing.T) {
	var prompt string
	service := &mockRAGService{askStreamFunc: func(ctx context.Context, p string, onFragment interfaces.FragmentFunc) (*models.Answer, error) {
		prompt = p
		return revenueAnswer(ctx, p, onFragment)
	}}
	handler := NewRAGHandler(service, 1<<20, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.AskHandler(rec, askRequest(url.Values{"prompt": {"What is the total revenue?"}}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "What is the total revenue?", prompt)

	body := decodeBody(t, rec)
	assert.Equal(t, "Total revenue was **$5M** in 2023.", body["response"])
	assert.Equal(t, []interface{}{float64(0)}, body["relevant_ids"])
	assert.NotContains(t, body, "response_html")

	retrieved := body["retrieved_documents"].(map[string]interface{})
	assert.Equal(t, []interface{}{[]interface{}{"Total revenue was $5M in 2023."}}, retrieved["documents"])
}

func TestAskHandler_HTMLFormat(t *testing.T) {
	handler := NewRAGHandler(&mockRAGService{askStreamFunc: revenueAnswer}, 1<<20, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.AskHandler(rec, askRequest(url.Values{"prompt": {"revenue?"}, "format": {"html"}}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["response_html"], "<strong>$5M</strong>")
}

func TestAskHandler_NoResults(t *testing.T) {
	handler := NewRAGHandler(&mockRAGService{}, 1<<20, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.AskHandler(rec, askRequest(url.Values{"prompt": {"anything"}}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response": "No relevant documents found.", "retrieved_documents": [], "relevant_ids": []}`, rec.Body.String())
}

func TestAskHandler_Errors(t *testing.T) {
	handler := NewRAGHandler(&mockRAGService{}, 1<<20, arbor.NewLogger())
	rec := httptest.NewRecorder()
	handler.AskHandler(rec, askRequest(url.Values{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: stream closed", interfaces.ErrGeneration), http.StatusBadGateway},
		{fmt.Errorf("%w: scorer down", interfaces.ErrRerank), http.StatusInternalServerError},
		{fmt.Errorf("%w: store closed", interfaces.ErrIndexUnavailable), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		service := &mockRAGService{askStreamFunc: func(ctx context.Context, prompt string, onFragment interfaces.FragmentFunc) (*models.Answer, error) {
			return nil, tt.err
		}}
		rec := httptest.NewRecorder()
		NewRAGHandler(service, 1<<20, arbor.NewLogger()).AskHandler(rec, askRequest(url.Values{"prompt": {"q"}}))
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
	}
}
