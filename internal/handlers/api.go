package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/interfaces"
)

type APIHandler struct {
	rag    interfaces.RAGService
	llm    interfaces.LLMService
	logger arbor.ILogger
}

func NewAPIHandler(rag interfaces.RAGService, llm interfaces.LLMService, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		rag:    rag,
		llm:    llm,
		logger: logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}

// HealthHandler reports liveness and whether the chat provider answers
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := map[string]string{
		"status":   "ok",
		"provider": string(h.llm.GetProvider()),
		"llm":      "ok",
	}
	if err := h.llm.HealthCheck(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("LLM health check failed")
		response["status"] = "degraded"
		response["llm"] = err.Error()
		WriteJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	WriteJSON(w, http.StatusOK, response)
}

// CollectionHandler returns the collection name, passage count and embedding binding
func (h *APIHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.rag.Stats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read collection stats")
		WritePipelineError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
