package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboxCmd_Plain(t *testing.T) {
	// Given: two inbox files
	env := newTestEnv(t)
	env.writeInbox("b.txt", "second file")
	env.writeInbox("a.txt", "first file")

	// When: ingesting the inbox with plain output
	out, err := env.run("", "inbox", "--plain")

	// Then: files are processed in name order and archived
	require.NoError(t, err)
	assert.Contains(t, out, "[INGEST] 1/2 - a.txt")
	assert.Contains(t, out, "[INGEST] 2/2 - b.txt")
	assert.Contains(t, out, "Complete: 2 files, 2 documents, 2 chunks")

	pending, err := os.ReadDir(filepath.Join(env.dataDir, "inbox"))
	require.NoError(t, err)
	assert.Empty(t, pending)
	archived, err := os.ReadDir(filepath.Join(env.dataDir, "clean"))
	require.NoError(t, err)
	assert.Len(t, archived, 2)

	// And: the documents are searchable by their inbox tag
	out, err = env.run("", "search", "file", "--tag", "inbox", "--format", "json")
	require.NoError(t, err)
	var hits []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	assert.Len(t, hits, 2)
}

func TestInboxCmd_LimitAndJSON(t *testing.T) {
	env := newTestEnv(t)
	env.writeInbox("a.txt", "one")
	env.writeInbox("b.txt", "two")
	env.writeInbox("c.txt", "three")

	out, err := env.run("", "inbox", "--limit", "2", "--format", "json")
	require.NoError(t, err)

	var res struct {
		Ingested int `json:"ingested"`
		Files    []struct {
			Name  string `json:"name"`
			DocID string `json:"doc_id"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Ingested)
	require.Len(t, res.Files, 2)
	assert.Equal(t, "a.txt", res.Files[0].Name)
	assert.Regexp(t, `^know_`, res.Files[0].DocID)

	pending, err := os.ReadDir(filepath.Join(env.dataDir, "inbox"))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c.txt", pending[0].Name())
}

func TestInboxCmd_Empty(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("", "inbox", "--plain")

	require.NoError(t, err)
	assert.Contains(t, out, "Complete: nothing to do")
}

func TestWatchCmd_DrainsThenStops(t *testing.T) {
	// Given: a file already waiting in the inbox
	env := newTestEnv(t)
	env.writeInbox("waiting.txt", "pending note")

	// When: watching until the context times out
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	out, err := env.runContext(ctx, "", "watch", "--poll")

	// Then: the pending file was ingested and the watch ended cleanly
	require.NoError(t, err)
	assert.Contains(t, out, "waiting.txt -> know_")
	assert.Contains(t, out, "Watching")
}
