package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/interfaces"
)

// buildPDF renders one page per entry using a core font
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		doc.MultiCell(0, 6, text, "", "L", false)
	}

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func TestExtractPages_TwoPages(t *testing.T) {
	data := buildPDF(t,
		"Quarterly report for 2023.",
		"Total revenue was $5M in 2023.",
	)

	extractor := NewExtractor(arbor.NewLogger())
	pages, err := extractor.ExtractPages(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, 0, pages[0].PageNumber)
	assert.Equal(t, 1, pages[1].PageNumber)
	assert.Contains(t, pages[0].Text, "Quarterly")
	assert.Contains(t, pages[1].Text, "revenue")
	assert.NotContains(t, pages[0].Text, "revenue")
}

func TestGetMetadata(t *testing.T) {
	data := buildPDF(t, "one", "two", "three")

	metadata, err := NewExtractor(arbor.NewLogger()).GetMetadata(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 3, metadata.PageCount)
	assert.Equal(t, int64(len(data)), metadata.FileSize)
	assert.False(t, metadata.IsEncrypted)
}

func TestExtractPages_RejectsNonPDF(t *testing.T) {
	extractor := NewExtractor(arbor.NewLogger())

	_, err := extractor.ExtractPages(context.Background(), []byte("plain text, not a pdf"))
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	_, err = extractor.ExtractPages(context.Background(), nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

func TestExtractPages_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(arbor.NewLogger()).ExtractPages(ctx, buildPDF(t, "page"))
	assert.ErrorIs(t, err, context.Canceled)
}
