package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/models"
)

// Splitter breaks text into bounded, overlapping fragments.
// Separators are tried coarsest first; a piece is only split further with a
// finer separator when it is still at least ChunkSize long. A separator stays
// attached to the start of the piece that follows it. Lengths are in runes.
// Stateless after construction and safe for concurrent use.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
	logger       arbor.ILogger
}

// NewSplitter creates a splitter from the chunking configuration
func NewSplitter(config common.ChunkingConfig, logger arbor.ILogger) (*Splitter, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", config.ChunkOverlap, config.ChunkSize)
	}

	separators := config.Separators
	if len(separators) == 0 {
		separators = common.DefaultSeparators
	}
	if logger == nil {
		logger = common.GetLogger()
	}

	return &Splitter{
		chunkSize:    config.ChunkSize,
		chunkOverlap: config.ChunkOverlap,
		separators:   append([]string(nil), separators...),
		logger:       logger,
	}, nil
}

// SplitText splits text into trimmed, non-empty chunks in reading order
func (s *Splitter) SplitText(text string) []string {
	return s.splitRecursive(text, s.separators)
}

// Split splits text and attaches the document metadata to every fragment
func (s *Splitter) Split(text string, metadata models.PassageMetadata) []models.Fragment {
	chunks := s.SplitText(text)
	fragments := make([]models.Fragment, 0, len(chunks))
	for _, chunk := range chunks {
		fragments = append(fragments, models.Fragment{Text: chunk, Metadata: metadata})
	}
	return fragments
}

// SplitPages splits each extracted page independently and concatenates the
// fragments in page order. Every fragment carries its page's metadata.
func (s *Splitter) SplitPages(source string, pages []interfaces.PDFPageContent) []models.Fragment {
	var fragments []models.Fragment
	for _, page := range pages {
		fragments = append(fragments, s.Split(page.Text, models.PassageMetadata{
			Source: source,
			Page:   page.PageNumber,
		})...)
	}
	return fragments
}

func (s *Splitter) splitRecursive(text string, separators []string) []string {
	var chunks []string

	// Pick the first separator present in the text; "" always matches
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}

		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}
		if len(finer) == 0 {
			// Unsplittable token, emitted as-is
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.splitRecursive(piece, finer)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}

	return chunks
}

// merge packs small pieces into chunks of at most chunkSize runes. When a
// chunk is emitted, pieces are dropped from its front until what remains is
// no longer than chunkOverlap and leaves room for the next piece; the
// remainder opens the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var window []string
	total := 0

	for _, piece := range pieces {
		length := runeLen(piece)

		if total+length > s.chunkSize {
			if total > s.chunkSize {
				s.logger.Warn().
					Int("size", total).
					Int("chunk_size", s.chunkSize).
					Msg("Created a chunk longer than the configured size")
			}
			if len(window) > 0 {
				if chunk := joinPieces(window); chunk != "" {
					chunks = append(chunks, chunk)
				}
				for total > s.chunkOverlap || (total+length > s.chunkSize && total > 0) {
					total -= runeLen(window[0])
					window = window[1:]
				}
			}
		}

		window = append(window, piece)
		total += length
	}

	if chunk := joinPieces(window); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitKeepingSeparator splits text on sep, prefixing every piece after the
// first with the separator. An empty separator yields single runes. Empty
// pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	var pieces []string

	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	for i, part := range strings.Split(text, sep) {
		if i > 0 {
			part = sep + part
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

func joinPieces(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
