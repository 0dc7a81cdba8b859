package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Metadata keys carried on every passage
const (
	MetadataKeySource = "source"
	MetadataKeyPage   = "page"
)

var metadataValidator = validator.New()

// PassageMetadata is the typed metadata attached to a passage.
// Only the source file name and the zero-based page number are tracked.
type PassageMetadata struct {
	Source string `json:"source" validate:"required"`
	Page   int    `json:"page" validate:"gte=0"`
}

// Validate checks the metadata at the ingestion boundary
func (m PassageMetadata) Validate() error {
	return metadataValidator.Struct(m)
}

// ToMap converts metadata to its wire form
func (m PassageMetadata) ToMap() map[string]string {
	return map[string]string{
		MetadataKeySource: m.Source,
		MetadataKeyPage:   strconv.Itoa(m.Page),
	}
}

// PassageMetadataFromMap parses the wire form. Unknown keys are rejected.
func PassageMetadataFromMap(values map[string]string) (PassageMetadata, error) {
	var m PassageMetadata
	for key, value := range values {
		switch key {
		case MetadataKeySource:
			m.Source = value
		case MetadataKeyPage:
			page, err := strconv.Atoi(value)
			if err != nil {
				return m, fmt.Errorf("invalid page %q: %w", value, err)
			}
			m.Page = page
		default:
			return m, fmt.Errorf("unknown metadata key %q", key)
		}
	}
	if err := m.Validate(); err != nil {
		return m, err
	}
	return m, nil
}

// Fragment is a chunk of document text before it has been assigned an ID
type Fragment struct {
	Text     string
	Metadata PassageMetadata
}

// Passage is an indexed fragment. ID is "<normalized document id>_<index>".
type Passage struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Metadata PassageMetadata `json:"metadata"`
}

// NormalizeDocumentID replaces '-', ' ' and '.' with '_' so ids derived from
// file names are stable across re-uploads.
func NormalizeDocumentID(documentID string) string {
	return strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(documentID)
}

// PassageID builds the deterministic id of the index-th passage of a document.
// documentID must already be normalized.
func PassageID(documentID string, index int) string {
	return documentID + "_" + strconv.Itoa(index)
}

// StoredPassage is the persisted form of a passage together with its embedding
type StoredPassage struct {
	Key        string    `json:"key"` // <collection>/<passage id>
	Collection string    `json:"collection" badgerhold:"index"`
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Text       string    `json:"text"`
	Source     string    `json:"source"`
	Page       int       `json:"page"`
	Embedding  []float32 `json:"embedding"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StoredPassageKey builds the storage key of a passage within a collection
func StoredPassageKey(collection, passageID string) string {
	return collection + "/" + passageID
}

// Metadata returns the typed metadata of a stored passage
func (p *StoredPassage) Metadata() PassageMetadata {
	return PassageMetadata{Source: p.Source, Page: p.Page}
}
