package search

import (
	"strings"

	"github.com/Aman-CERP/amanknow/internal/store"
)

// ClampLimit bounds limit to [1, MaxLimit]. Zero and negative values give 1.
func ClampLimit(limit int) int {
	return max(1, min(limit, MaxLimit))
}

// FilterFunc reports whether a candidate chunk passes a filter.
type FilterFunc func(meta store.ChunkMeta) bool

// buildFilters creates the filters requested by opts.
func buildFilters(opts Options) []FilterFunc {
	var filters []FilterFunc
	if opts.Tag != "" {
		filters = append(filters, tagFilter(opts.Tag))
	}
	return filters
}

func tagFilter(tag string) FilterFunc {
	return func(meta store.ChunkMeta) bool {
		return meta.HasTag(tag)
	}
}

// matchesAllFilters checks meta against every filter (AND logic).
func matchesAllFilters(meta store.ChunkMeta, filters []FilterFunc) bool {
	for _, f := range filters {
		if !f(meta) {
			return false
		}
	}
	return true
}

// Snippet returns the first SnippetChars characters of text with newlines
// replaced by spaces, trimmed.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) > SnippetChars {
		runes = runes[:SnippetChars]
	}
	return strings.TrimSpace(strings.ReplaceAll(string(runes), "\n", " "))
}

// Score returns the fraction of distinct query terms present in chunkTerms.
func Score(queryTerms []string, chunkTerms map[string]struct{}) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	matched := 0
	for _, t := range queryTerms {
		if _, ok := chunkTerms[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}
