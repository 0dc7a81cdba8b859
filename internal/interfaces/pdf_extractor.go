// -----------------------------------------------------------------------
// PDF Extractor Interface - Extract text content from PDF documents
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
)

// PDFPageContent represents extracted content from a single PDF page
type PDFPageContent struct {
	PageNumber int    `json:"page_number"` // zero-based
	Text       string `json:"text"`
}

// PDFMetadata contains metadata about a PDF document
type PDFMetadata struct {
	PageCount   int   `json:"page_count"`
	FileSize    int64 `json:"file_size"`
	IsEncrypted bool  `json:"is_encrypted"`
}

// PDFExtractor extracts page text from uploaded PDF bytes. Binary parsing is
// fully owned by the implementation; callers only see ordered pages.
type PDFExtractor interface {
	// ExtractPages returns page text in reading order.
	ExtractPages(ctx context.Context, data []byte) ([]PDFPageContent, error)

	// GetMetadata reads the document structure without extracting text.
	GetMetadata(ctx context.Context, data []byte) (*PDFMetadata, error)
}
