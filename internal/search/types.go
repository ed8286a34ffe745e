// Package search ranks knowledge chunks against keyword queries using the
// inverted term index.
package search

import "context"

// Result limits and snippet width.
const (
	DefaultLimit = 10
	MaxLimit     = 50
	SnippetChars = 280
)

// Searcher answers keyword queries.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) ([]Hit, error)
}

// Options configures one query.
type Options struct {
	// Limit is the maximum number of hits, clamped to [1, MaxLimit].
	Limit int

	// Tag keeps only chunks whose document carries this tag.
	Tag string
}

// Hit is one ranked chunk with its document's projected metadata.
type Hit struct {
	DocID    string            `json:"doc_id"`
	DocTitle string            `json:"doc_title"`
	ChunkID  string            `json:"chunk_id"`
	Score    float64           `json:"score"`
	Snippet  string            `json:"snippet"`
	Source   string            `json:"source"`
	Tags     []string          `json:"tags"`
	Linked   map[string]string `json:"linked"`
}
