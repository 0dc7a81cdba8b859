// -----------------------------------------------------------------------
// PDF Extractor Service - Extract page text from uploaded PDF documents
// pdfcpu reads the document structure, ledongthuc/pdf decodes page text
// -----------------------------------------------------------------------

package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	ledongthuc "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
)

// Extractor implements the PDFExtractor interface over in-memory bytes
type Extractor struct {
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.PDFExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor service
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractPages returns the text of every page in order. PageNumber is
// zero-based. Pages without a content stream yield empty text.
func (e *Extractor) ExtractPages(ctx context.Context, data []byte) ([]interfaces.PDFPageContent, error) {
	metadata, err := e.GetMetadata(ctx, data)
	if err != nil {
		return nil, err
	}
	if metadata.IsEncrypted {
		return nil, fmt.Errorf("%w: encrypted PDFs are not supported", interfaces.ErrInvalidInput)
	}

	start := time.Now()
	pages, err := extractText(ctx, data)
	if err != nil {
		return nil, err
	}

	if len(pages) != metadata.PageCount {
		e.logger.Warn().
			Int("page_count", metadata.PageCount).
			Int("pages_decoded", len(pages)).
			Msg("Decoded page count differs from document structure")
	}

	e.logger.Debug().
		Int("pages", len(pages)).
		Int64("file_size", metadata.FileSize).
		Dur("duration", time.Since(start)).
		Msg("Extracted PDF pages")

	return pages, nil
}

// extractText decodes page text. The decoder panics on some malformed
// content streams, so panics are returned as errors.
func extractText(ctx context.Context, data []byte) (pages []interfaces.PDFPageContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: failed to decode PDF text: %v", interfaces.ErrInvalidInput, r)
		}
	}()

	reader, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %v", interfaces.ErrInvalidInput, err)
	}

	total := reader.NumPage()
	pages = make([]interfaces.PDFPageContent, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		content := interfaces.PDFPageContent{PageNumber: i - 1}
		if !page.V.IsNull() {
			text, err := page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
			}
			content.Text = strings.TrimRight(text, "\x00")
		}
		pages = append(pages, content)
	}
	return pages, nil
}

// GetMetadata validates the PDF structure and reads page count and encryption
func (e *Extractor) GetMetadata(ctx context.Context, data []byte) (*interfaces.PDFMetadata, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty PDF upload", interfaces.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read PDF context: %v", interfaces.ErrInvalidInput, err)
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: failed to count PDF pages: %v", interfaces.ErrInvalidInput, err)
	}

	metadata := &interfaces.PDFMetadata{
		PageCount:   pdfCtx.PageCount,
		FileSize:    int64(len(data)),
		IsEncrypted: pdfCtx.Encrypt != nil,
	}

	e.logger.Debug().
		Int("page_count", metadata.PageCount).
		Int64("file_size", metadata.FileSize).
		Bool("encrypted", metadata.IsEncrypted).
		Msg("Extracted PDF metadata")

	return metadata, nil
}
