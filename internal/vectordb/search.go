package vectordb

import (
	"fmt"
	"strings"
)

// FormatResults renders search results as human-readable text.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n\n", len(results)))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("--- Result %d (similarity: %.4f) ---\n", i+1, r.Similarity))

		if r.Payload.RelativePath != "" {
			location := r.Payload.RelativePath
			if r.Payload.LineStart > 0 {
				location += fmt.Sprintf(":%d", r.Payload.LineStart)
				if r.Payload.LineEnd > r.Payload.LineStart {
					location += fmt.Sprintf("-%d", r.Payload.LineEnd)
				}
			}
			sb.WriteString(fmt.Sprintf("File: %s\n", location))
		}

		if r.Payload.ChunkType != "" {
			sb.WriteString(fmt.Sprintf("Type: %s\n", r.Payload.ChunkType))
		}
		if r.Payload.Symbol != "" {
			sb.WriteString(fmt.Sprintf("Symbol: %s\n", r.Payload.Symbol))
		}
		if r.Payload.Language != "" {
			sb.WriteString(fmt.Sprintf("Language: %s\n", r.Payload.Language))
		}
		if r.Payload.Git != nil && r.Payload.Git.DominantAuthor != "" {
			sb.WriteString(fmt.Sprintf("Last touched by: %s\n", r.Payload.Git.DominantAuthor))
		}

		sb.WriteString("\n")
		sb.WriteString(r.Payload.Content)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
