package main

import (
	"fmt"
	"strings"

	"github.com/ternarybob/docqa/internal/interfaces"
	"github.com/ternarybob/docqa/internal/models"
)

// formatAnswer renders an answer and its supporting passage ids as markdown
func formatAnswer(prompt string, answer *models.Answer) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Answer to \"%s\"\n\n", prompt))
	sb.WriteString(answer.Response)
	sb.WriteString("\n")

	if len(answer.RelevantIDs) == 0 {
		return sb.String()
	}

	sb.WriteString("\n### Sources\n")
	for _, idx := range answer.RelevantIDs {
		sb.WriteString(fmt.Sprintf("- %s\n", sourceLabel(answer.RetrievedDocuments, idx)))
	}
	return sb.String()
}

// sourceLabel names a retrieved passage by id, file and zero-based page
func sourceLabel(result *models.QueryResult, idx int) string {
	if result == nil || len(result.IDs) == 0 || idx < 0 || idx >= len(result.IDs[0]) {
		return fmt.Sprintf("#%d", idx)
	}
	label := result.IDs[0][idx]
	if len(result.Metadatas) > 0 && idx < len(result.Metadatas[0]) {
		meta := result.Metadatas[0][idx]
		label = fmt.Sprintf("%s (%s, page %s)", label, meta["source"], meta["page"])
	}
	return label
}

func formatIngestResult(filename string, result *interfaces.IngestResult) string {
	return fmt.Sprintf("Indexed %s as %s: %d pages, %d passages\n",
		filename, result.DocumentID, result.PageCount, result.PassageCount)
}

func formatStats(stats *models.CollectionStats) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Collection %s\n\n", stats.Name))
	sb.WriteString(fmt.Sprintf("**Passages:** %d\n", stats.PassageCount))
	sb.WriteString(fmt.Sprintf("**Embedding model:** %s\n", stats.EmbeddingModel))
	sb.WriteString(fmt.Sprintf("**Dimension:** %d\n", stats.Dimension))
	sb.WriteString(fmt.Sprintf("**Space:** %s\n", stats.Space))
	return sb.String()
}
