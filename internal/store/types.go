// Package store persists knowledge documents, their chunks, and the
// term index. Two repositories are provided: a JSON file store and a
// SQLite store. Both manage an inbox directory for batch ingestion.
package store

import (
	"maps"
	"slices"
	"time"
)

// Document is a piece of ingested knowledge. Documents are append-only.
type Document struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Source    string            `json:"source"`
	Tags      []string          `json:"tags"`
	Linked    map[string]string `json:"linked"`
	Meta      map[string]any    `json:"meta"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Chunk is a window of a document's normalized text covering the
// half-open range [CharStart, CharEnd) in code points.
type Chunk struct {
	ID        string    `json:"id"`
	DocID     string    `json:"doc_id"`
	Ord       int       `json:"ord"`
	Text      string    `json:"text"`
	CharStart int       `json:"char_start"`
	CharEnd   int       `json:"char_end"`
	TokensEst int       `json:"tokens_est"`
	CreatedAt time.Time `json:"created_at"`
}

// ChunkMeta is the per-chunk projection of its document kept in the index.
type ChunkMeta struct {
	DocID  string            `json:"doc_id"`
	Ord    int               `json:"ord"`
	Title  string            `json:"title"`
	Source string            `json:"source"`
	Tags   []string          `json:"tags"`
	Linked map[string]string `json:"linked"`
}

// NewChunkMeta projects doc onto the chunk at position ord.
func NewChunkMeta(doc Document, ord int) ChunkMeta {
	return ChunkMeta{
		DocID:  doc.ID,
		Ord:    ord,
		Title:  doc.Title,
		Source: doc.Source,
		Tags:   slices.Clone(doc.Tags),
		Linked: maps.Clone(doc.Linked),
	}
}

// HasTag reports whether tag is one of the chunk's document tags.
func (m ChunkMeta) HasTag(tag string) bool {
	return slices.Contains(m.Tags, tag)
}

// Index is the inverted term index. Terms maps a token to the IDs of the
// chunks containing it, in insertion order without duplicates.
type Index struct {
	Terms     map[string][]string  `json:"terms"`
	ChunkMeta map[string]ChunkMeta `json:"chunk_meta"`
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		Terms:     make(map[string][]string),
		ChunkMeta: make(map[string]ChunkMeta),
	}
}

// Clone returns a copy whose maps can be modified without affecting idx.
// Posting slices are shared but clipped, so appending to one in the clone
// reallocates instead of writing into idx's backing array.
func (idx *Index) Clone() *Index {
	out := &Index{
		Terms:     make(map[string][]string, len(idx.Terms)),
		ChunkMeta: maps.Clone(idx.ChunkMeta),
	}
	if out.ChunkMeta == nil {
		out.ChunkMeta = make(map[string]ChunkMeta)
	}
	for term, ids := range idx.Terms {
		out.Terms[term] = slices.Clip(ids)
	}
	return out
}

// Counts summarizes what a repository holds.
type Counts struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}
