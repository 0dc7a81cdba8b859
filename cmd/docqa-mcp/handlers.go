package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/services/rag"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

// handleAskDocuments implements the ask_documents tool
func handleAskDocuments(ragService interfaces.RAGService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := request.RequireString("prompt")
		if err != nil || prompt == "" {
			return errorResult("Error: prompt parameter is required"), nil
		}

		answer, err := ragService.Ask(ctx, prompt)
		if err != nil {
			logger.Error().Err(err).Msg("Ask failed")
			return errorResult(fmt.Sprintf("Ask error: %v", err)), nil
		}

		return textResult(formatAnswer(prompt, answer)), nil
	}
}

// handleIngestPDF implements the ingest_pdf tool
func handleIngestPDF(ragService interfaces.RAGService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil || path == "" {
			return errorResult("Error: path parameter is required"), nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return errorResult(fmt.Sprintf("Cannot read %s: %v", path, err)), nil
		}

		result, err := ragService.Ingest(ctx, interfaces.IngestRequest{
			Filename:    filepath.Base(path),
			ContentType: rag.PDFContentType,
			Data:        data,
		})
		if err != nil {
			logger.Error().Err(err).Str("path", path).Msg("Ingest failed")
			return errorResult(fmt.Sprintf("Ingest error: %v", err)), nil
		}

		return textResult(formatIngestResult(filepath.Base(path), result)), nil
	}
}

// handleCollectionStats implements the collection_stats tool
func handleCollectionStats(ragService interfaces.RAGService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := ragService.Stats(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Stats failed")
			return errorResult(fmt.Sprintf("Stats error: %v", err)), nil
		}
		return textResult(formatStats(stats)), nil
	}
}
