package models

import "encoding/json"

// QueryResult holds similarity search results grouped per query text.
// Each group is ordered by ascending cosine distance (most similar first).
// The pipeline issues single-query batches, so there is one group per call.
type QueryResult struct {
	IDs       [][]string            `json:"ids"`
	Documents [][]string            `json:"documents"`
	Distances [][]float32           `json:"distances"`
	Metadatas [][]map[string]string `json:"metadatas"`
}

// NewQueryResult creates an empty result with one group per query
func NewQueryResult(groups int) *QueryResult {
	r := &QueryResult{
		IDs:       make([][]string, groups),
		Documents: make([][]string, groups),
		Distances: make([][]float32, groups),
		Metadatas: make([][]map[string]string, groups),
	}
	for i := 0; i < groups; i++ {
		r.IDs[i] = []string{}
		r.Documents[i] = []string{}
		r.Distances[i] = []float32{}
		r.Metadatas[i] = []map[string]string{}
	}
	return r
}

// FirstDocuments returns the document texts of the first query group
func (r *QueryResult) FirstDocuments() []string {
	if r == nil || len(r.Documents) == 0 {
		return nil
	}
	return r.Documents[0]
}

// IsEmpty reports whether the first group holds no documents
func (r *QueryResult) IsEmpty() bool {
	return len(r.FirstDocuments()) == 0
}

// RankedResult is the reranker output. SelectedIndices point into the first
// document group of the QueryResult the candidates came from, best first.
type RankedResult struct {
	ConcatenatedText string    `json:"concatenated_text"`
	SelectedIndices  []int     `json:"selected_indices"`
	Scores           []float32 `json:"scores"`
}

// NoResultsMessage is the canned answer returned for an empty retrieval
const NoResultsMessage = "No relevant documents found."

// Answer is the /ask response. RetrievedDocuments is the pre-rerank query
// result; the reranked order is only visible through RelevantIDs.
type Answer struct {
	Response           string       `json:"response"`
	RetrievedDocuments *QueryResult `json:"retrieved_documents"`
	RelevantIDs        []int        `json:"relevant_ids"`
	ResponseHTML       string       `json:"response_html,omitempty"`
	NoResults          bool         `json:"-"`
}

// NoResultsAnswer builds the fixed payload for an empty retrieval
func NoResultsAnswer() *Answer {
	return &Answer{
		Response:    NoResultsMessage,
		RelevantIDs: []int{},
		NoResults:   true,
	}
}

// MarshalJSON renders retrieved_documents as an empty list for the no-results payload
func (a Answer) MarshalJSON() ([]byte, error) {
	type answerAlias Answer
	if a.NoResults || a.RetrievedDocuments == nil {
		ids := a.RelevantIDs
		if ids == nil {
			ids = []int{}
		}
		return json.Marshal(struct {
			Response           string   `json:"response"`
			RetrievedDocuments []string `json:"retrieved_documents"`
			RelevantIDs        []int    `json:"relevant_ids"`
			ResponseHTML       string   `json:"response_html,omitempty"`
		}{
			Response:           a.Response,
			RetrievedDocuments: []string{},
			RelevantIDs:        ids,
			ResponseHTML:       a.ResponseHTML,
		})
	}
	return json.Marshal(answerAlias(a))
}
