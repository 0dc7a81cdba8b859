package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createAskDocumentsTool returns the ask_documents tool definition
func createAskDocumentsTool() mcp.Tool {
	return mcp.NewTool("ask_documents",
		mcp.WithDescription("Answer a question using only the PDF documents ingested into docqa"),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Natural-language question"),
		),
	)
}

// createIngestPDFTool returns the ingest_pdf tool definition
func createIngestPDFTool() mcp.Tool {
	return mcp.NewTool("ingest_pdf",
		mcp.WithDescription("Extract, split and index a local PDF file so it can be asked about"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to a PDF file readable by the docqa process"),
		),
	)
}

// createCollectionStatsTool returns the collection_stats tool definition
func createCollectionStatsTool() mcp.Tool {
	return mcp.NewTool("collection_stats",
		mcp.WithDescription("Report the passage count and embedding model of the document collection"),
	)
}
