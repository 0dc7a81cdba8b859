package models

import "time"

// DistanceCosine is the only similarity space supported by collections
const DistanceCosine = "cosine"

// Collection is a named container of passages bound to one embedding model
type Collection struct {
	Name           string    `json:"name"`
	Space          string    `json:"space"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"` // 0 until the first passage is written
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CollectionStats summarises a collection for the API
type CollectionStats struct {
	Name           string `json:"name"`
	Space          string `json:"space"`
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
	PassageCount   int    `json:"passage_count"`
}
