package mcp

import (
	"time"

	"github.com/Aman-CERP/amanknow/internal/ingest"
	"github.com/Aman-CERP/amanknow/internal/search"
	"github.com/Aman-CERP/amanknow/internal/store"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"keywords to search for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10, max 50"`
	Tag   string `json:"tag,omitempty" jsonschema:"only return chunks of documents carrying this tag"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"ranked hits, best first"`
	Count   int                  `json:"count"`
}

// SearchResultOutput is one ranked chunk.
type SearchResultOutput struct {
	DocID    string            `json:"doc_id"`
	DocTitle string            `json:"doc_title"`
	ChunkID  string            `json:"chunk_id"`
	Score    float64           `json:"score" jsonschema:"fraction of query terms found in the chunk"`
	Snippet  string            `json:"snippet"`
	Source   string            `json:"source"`
	Tags     []string          `json:"tags"`
	Linked   map[string]string `json:"linked"`
}

// GetDocumentInput defines the input schema for the get_document tool.
type GetDocumentInput struct {
	ID string `json:"id" jsonschema:"document id, e.g. know_1a2b3c4d5e6f"`
}

// DocumentOutput is a stored document.
type DocumentOutput struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Source    string            `json:"source"`
	Tags      []string          `json:"tags"`
	Linked    map[string]string `json:"linked"`
	Meta      map[string]any    `json:"meta"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

// GetChunkInput defines the input schema for the get_chunk tool.
type GetChunkInput struct {
	ID string `json:"id" jsonschema:"chunk id, e.g. chk_1a2b3c4d5e6f7a"`
}

// ChunkOutput is a stored chunk.
type ChunkOutput struct {
	ID        string `json:"id"`
	DocID     string `json:"doc_id"`
	Ord       int    `json:"ord"`
	Text      string `json:"text"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
	TokensEst int    `json:"tokens_est"`
}

// IngestInput defines the input schema for the ingest tool.
type IngestInput struct {
	Title   string            `json:"title" jsonschema:"document title"`
	Content string            `json:"content" jsonschema:"raw text to store and index"`
	Source  string            `json:"source,omitempty" jsonschema:"origin of the text, default manual"`
	Tags    []string          `json:"tags,omitempty" jsonschema:"labels usable as search filters"`
	Linked  map[string]string `json:"linked,omitempty" jsonschema:"references to external entities"`
	Meta    map[string]any    `json:"meta,omitempty" jsonschema:"free-form metadata"`
}

// IngestOutput defines the output schema for the ingest tool.
type IngestOutput struct {
	Document      DocumentOutput `json:"document"`
	ChunksCreated int            `json:"chunks_created"`
}

// IngestInboxInput defines the input schema for the ingest_inbox tool.
type IngestInboxInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of files to ingest, default 25, max 200"`
}

// IngestInboxOutput defines the output schema for the ingest_inbox tool.
type IngestInboxOutput struct {
	Ingested int               `json:"ingested"`
	Files    []InboxFileOutput `json:"files"`
}

// InboxFileOutput is the outcome for one inbox file.
type InboxFileOutput struct {
	Name          string `json:"name"`
	DocID         string `json:"doc_id,omitempty"`
	ChunksCreated int    `json:"chunks_created"`
	Error         string `json:"error,omitempty"`
}

// RebuildIndexInput defines the input schema for the rebuild_index tool (no parameters).
type RebuildIndexInput struct{}

// RebuildIndexOutput defines the output schema for the rebuild_index tool.
type RebuildIndexOutput struct {
	DocsIndexed   int `json:"docs_indexed"`
	ChunksIndexed int `json:"chunks_indexed"`
	Terms         int `json:"terms"`
}

// StatsInput defines the input schema for the knowledge_stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the knowledge_stats tool.
type StatsOutput struct {
	Documents     int    `json:"documents"`
	Chunks        int    `json:"chunks"`
	IndexedChunks int    `json:"indexed_chunks"`
	Terms         int    `json:"terms"`
	Backend       string `json:"backend"`
	TotalQueries  int64  `json:"total_queries"`
	ZeroResults   int64  `json:"zero_results"`
}

// ToSearchResultOutput converts a hit to its tool output.
func ToSearchResultOutput(h search.Hit) SearchResultOutput {
	out := SearchResultOutput{
		DocID:    h.DocID,
		DocTitle: h.DocTitle,
		ChunkID:  h.ChunkID,
		Score:    h.Score,
		Snippet:  h.Snippet,
		Source:   h.Source,
		Tags:     h.Tags,
		Linked:   h.Linked,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if out.Linked == nil {
		out.Linked = map[string]string{}
	}
	return out
}

// ToDocumentOutput converts a stored document to its tool output.
func ToDocumentOutput(d *store.Document) DocumentOutput {
	out := DocumentOutput{
		ID:        d.ID,
		Title:     d.Title,
		Source:    d.Source,
		Tags:      d.Tags,
		Linked:    d.Linked,
		Meta:      d.Meta,
		CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: d.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if out.Linked == nil {
		out.Linked = map[string]string{}
	}
	if out.Meta == nil {
		out.Meta = map[string]any{}
	}
	return out
}

// ToChunkOutput converts a stored chunk to its tool output.
func ToChunkOutput(c *store.Chunk) ChunkOutput {
	return ChunkOutput{
		ID:        c.ID,
		DocID:     c.DocID,
		Ord:       c.Ord,
		Text:      c.Text,
		CharStart: c.CharStart,
		CharEnd:   c.CharEnd,
		TokensEst: c.TokensEst,
	}
}

// ToInboxFileOutput converts a per-file inbox result.
func ToInboxFileOutput(r ingest.FileResult) InboxFileOutput {
	out := InboxFileOutput{
		Name:          r.Name,
		DocID:         r.DocID,
		ChunksCreated: r.ChunksCreated,
	}
	if r.Err != nil {
		out.Error = MapError(r.Err).Message
	}
	return out
}
