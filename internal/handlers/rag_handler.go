package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/services/rag"
)

// ProcessSuccessMessage is returned after a document is indexed
const ProcessSuccessMessage = "Data added to the vector store!"

// RAGHandler serves document upload and question answering
type RAGHandler struct {
	rag           interfaces.RAGService
	maxUploadSize int64
	logger        arbor.ILogger
}

// NewRAGHandler creates the upload and ask handler
func NewRAGHandler(ragService interfaces.RAGService, maxUploadSize int64, logger arbor.ILogger) *RAGHandler {
	return &RAGHandler{
		rag:           ragService,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// ProcessHandler handles POST /process: multipart field "file" holding a PDF
func (h *RAGHandler) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		WriteError(w, http.StatusBadRequest, "Expected multipart form with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType != rag.PDFContentType {
		h.logger.Debug().
			Str("filename", header.Filename).
			Str("content_type", contentType).
			Msg("Rejected upload")
		WriteError(w, http.StatusBadRequest, "Invalid file type")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	result, err := h.rag.Ingest(r.Context(), interfaces.IngestRequest{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("filename", header.Filename).
			Msg("Failed to process document")
		WritePipelineError(w, err)
		return
	}

	h.logger.Debug().
		Str("document_id", result.DocumentID).
		Int("passages", result.PassageCount).
		Msg("Processed upload")

	WriteJSON(w, http.StatusOK, map[string]string{
		"message": ProcessSuccessMessage,
	})
}

// AskHandler handles POST /ask: form field "prompt", optional "format=html"
func (h *RAGHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	prompt := r.FormValue("prompt")
	if prompt == "" {
		WriteError(w, http.StatusBadRequest, "Missing prompt field")
		return
	}

	answer, err := h.rag.Ask(r.Context(), prompt)
	if err != nil {
		if r.Context().Err() != nil {
			h.logger.Debug().Msg("Client disconnected before answer completed")
			return
		}
		h.logger.Error().Err(err).Msg("Failed to answer question")
		WritePipelineError(w, err)
		return
	}

	if r.FormValue("format") == "html" && !answer.NoResults {
		html, err := RenderMarkdown(answer.Response)
		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to render answer markdown")
		} else {
			answer.ResponseHTML = html
		}
	}

	WriteJSON(w, http.StatusOK, answer)
}
