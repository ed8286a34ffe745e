package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/amanknow/internal/search"
)

func TestFormatSearchResults_Empty(t *testing.T) {
	assert.Equal(t, `No results found for "zebra"`, FormatSearchResults("zebra", nil))
}

func TestFormatSearchResults_Hits(t *testing.T) {
	// Given: two hits, one untitled
	hits := []search.Hit{
		{DocID: "know_a", DocTitle: "Fox", ChunkID: "chk_1", Score: 1, Snippet: "quick fox", Source: "manual", Tags: []string{"animals", "x"}},
		{DocID: "know_b", ChunkID: "chk_2", Score: 0.5},
	}

	// When: formatting
	md := FormatSearchResults("fox", hits)

	// Then: header, numbered entries, and details appear
	assert.Contains(t, md, `## Search Results for "fox"`)
	assert.Contains(t, md, "Found 2 results")
	assert.Contains(t, md, "### 1. Fox (score: 1.00)")
	assert.Contains(t, md, "- tags: animals, x")
	assert.Contains(t, md, "> quick fox")
	assert.Contains(t, md, "### 2. know_b (score: 0.50)")
}

func TestFormatSearchResults_SingularHeader(t *testing.T) {
	md := FormatSearchResults("fox", []search.Hit{{DocID: "know_a", ChunkID: "chk_1", Score: 1}})

	assert.Contains(t, md, "Found 1 result\n")
}
