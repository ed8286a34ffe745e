package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanknow/internal/index"
	"github.com/Aman-CERP/amanknow/internal/search"
	"github.com/Aman-CERP/amanknow/internal/store"
	"github.com/Aman-CERP/amanknow/internal/telemetry"
	"github.com/Aman-CERP/amanknow/pkg/knowledge"
)

func TestWriter_StatusLines_NoColorOffTerminal(t *testing.T) {
	// Given: a writer over a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing each kind of status
	w.Success("ingested")
	w.Warningf("%d skipped", 2)
	w.Error("failed")
	w.Status("", "detail")

	// Then: plain icons are used and nothing is styled
	assert.Equal(t, "✓ ingested\n! 2 skipped\n✗ failed\n  detail\n", buf.String())
}

func TestWriter_Code_IndentsLines(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Code("a\nb")

	assert.Equal(t, "\n  a\n  b\n\n", buf.String())
}

func TestWriter_JSON_Indented(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, New(buf).JSON([]search.Hit{{DocID: "know_1", Score: 1}}))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "know_1", got[0]["doc_id"])
	assert.Contains(t, buf.String(), "\n  {")
}

func TestWriter_Hits(t *testing.T) {
	// Given: two hits
	hits := []search.Hit{
		{DocID: "know_a", DocTitle: "Fox", ChunkID: "chk_1", Score: 1, Snippet: "the quick fox", Source: "manual", Tags: []string{"animals"}},
		{DocID: "know_b", ChunkID: "chk_2", Score: 0.5},
	}
	buf := &bytes.Buffer{}

	// When: printing them
	New(buf).Hits("quick fox", hits)

	// Then: ranks, titles, scores, locations, and snippets appear
	out := buf.String()
	assert.Contains(t, out, `2 results for "quick fox"`)
	assert.Contains(t, out, " 1. Fox (1.00)")
	assert.Contains(t, out, "know_a/chk_1  source=manual  tags=animals")
	assert.Contains(t, out, "the quick fox")
	assert.Contains(t, out, " 2. know_b (0.50)")
}

func TestWriter_Hits_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Hits("zebra", nil)

	assert.Equal(t, "No results for \"zebra\"\n", buf.String())
}

func TestWriter_Document(t *testing.T) {
	doc := &store.Document{
		ID:        "know_abc",
		Title:     "Notes",
		Source:    "inbox:notes.md",
		Tags:      []string{"inbox", "work"},
		Linked:    map[string]string{"ticket": "T-1"},
		Meta:      map[string]any{"filename": "notes.md"},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	buf := &bytes.Buffer{}

	New(buf).Document(doc)

	out := buf.String()
	assert.Contains(t, out, "id:        know_abc\n")
	assert.Contains(t, out, "tags:      inbox, work\n")
	assert.Contains(t, out, "link.ticket: T-1\n")
	assert.Contains(t, out, "meta.filename: notes.md\n")
	assert.Contains(t, out, "created:   2026-01-02 03:04:05Z\n")
}

func TestWriter_Chunk(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Chunk(&store.Chunk{ID: "chk_1", DocID: "know_a", Ord: 2, Text: "body", CharStart: 10, CharEnd: 14, TokensEst: 1})

	out := buf.String()
	assert.Contains(t, out, "ord:       2\n")
	assert.Contains(t, out, "chars:     10-14\n")
	assert.Contains(t, out, "\nbody\n")
}

func TestWriter_Stats(t *testing.T) {
	// Given: stats with recorded queries
	m := telemetry.NewQueryMetrics(telemetry.DefaultConfig())
	m.Record(telemetry.QueryEvent{Query: "fox", Terms: []string{"fox"}, ResultCount: 1})
	m.Record(telemetry.QueryEvent{Query: "zebra", Terms: []string{"zebra"}})
	snap := m.Snapshot()
	buf := &bytes.Buffer{}

	// When: printing
	New(buf).Stats(knowledge.Stats{Documents: 3, Chunks: 4, Terms: 9, IndexedChunks: 4, Backend: "json", Queries: snap})

	// Then: counts and query summary appear
	out := buf.String()
	assert.Contains(t, out, "backend:   json\n")
	assert.Contains(t, out, "documents: 3\n")
	assert.Contains(t, out, "queries:   2\n")
	assert.Contains(t, out, "1 (50.0%)")
	assert.Contains(t, out, "fox(1)")
}

func TestWriter_Check(t *testing.T) {
	t.Run("consistent", func(t *testing.T) {
		buf := &bytes.Buffer{}
		New(buf).Check(&index.CheckResult{Checked: 3})
		assert.Contains(t, buf.String(), "index consistent: 3 chunks checked")
	})

	t.Run("issues", func(t *testing.T) {
		buf := &bytes.Buffer{}
		New(buf).Check(&index.CheckResult{
			Checked: 2,
			Inconsistencies: []index.Inconsistency{
				{Type: index.InconsistencyMissingIndex, ChunkID: "chk_1"},
				{Type: index.InconsistencyMissingIndex, ChunkID: "chk_2"},
			},
		})
		out := buf.String()
		assert.Contains(t, out, "2 issues in 2 chunks")
		assert.Contains(t, out, "missing_index: 2")
		assert.NotContains(t, out, "orphan_chunk")
	})
}
