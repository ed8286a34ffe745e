package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/amanknow/internal/search"
)

// FormatSearchResults renders hits as markdown for the tool's text content.
func FormatSearchResults(query string, hits []search.Hit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", len(hits))
	if len(hits) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, h := range hits {
		formatHit(&sb, i+1, h)
	}
	return sb.String()
}

func formatHit(sb *strings.Builder, n int, h search.Hit) {
	title := h.DocTitle
	if title == "" {
		title = h.DocID
	}
	fmt.Fprintf(sb, "### %d. %s (score: %.2f)\n\n", n, title, h.Score)
	fmt.Fprintf(sb, "- doc: `%s` chunk: `%s`\n", h.DocID, h.ChunkID)
	if h.Source != "" {
		fmt.Fprintf(sb, "- source: %s\n", h.Source)
	}
	if len(h.Tags) > 0 {
		fmt.Fprintf(sb, "- tags: %s\n", strings.Join(h.Tags, ", "))
	}
	if h.Snippet != "" {
		fmt.Fprintf(sb, "\n> %s\n", h.Snippet)
	}
	sb.WriteString("\n")
}
