package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Pipeline
	mux.HandleFunc("/process", s.app.RAGHandler.ProcessHandler) // POST - multipart PDF upload
	mux.HandleFunc("/ask", s.app.RAGHandler.AskHandler)         // POST - form field prompt
	mux.HandleFunc("/ask/ws", s.app.AskWSHandler.HandleWebSocket)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/collection", s.app.APIHandler.CollectionHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
