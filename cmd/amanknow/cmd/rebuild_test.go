package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/store"
)

func TestRebuildCmd(t *testing.T) {
	env := newTestEnv(t)
	env.ingest("A", "alpha beta")
	env.ingest("B", "beta gamma")

	out, err := env.run("", "rebuild", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "[INDEX] rebuilding index")
	assert.Contains(t, out, "Complete: 2 documents, 2 chunks, 3 terms")

	out, err = env.run("", "rebuild", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"docs_indexed":2,"chunks_indexed":2,"terms":3}`, out)
}

func TestCheckCmd_ConsistentThenRepaired(t *testing.T) {
	// Given: an ingested document
	env := newTestEnv(t)
	env.ingest("A", "alpha beta")

	out, err := env.run("", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "index consistent: 1 chunks checked")

	// When: the index file is lost
	require.NoError(t, os.Remove(filepath.Join(env.dataDir, store.IndexFile)))

	// Then: check reports the missing chunk and fails
	out, err = env.run("", "check", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeIndexUnavailable, amerrors.GetCode(err))
	var res struct {
		Consistent bool `json:"consistent"`
		Issues     []struct {
			Type string `json:"type"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Consistent)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "missing_index", res.Issues[0].Type)

	// And: rebuild repairs it
	_, err = env.run("", "rebuild", "--plain")
	require.NoError(t, err)
	_, err = env.run("", "check")
	require.NoError(t, err)
}

func TestStatsCmd(t *testing.T) {
	env := newTestEnv(t)
	env.ingest("A", "alpha beta")

	out, err := env.run("", "stats", "--format", "json")
	require.NoError(t, err)
	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.EqualValues(t, 1, st["documents"])
	assert.EqualValues(t, 1, st["chunks"])
	assert.EqualValues(t, 2, st["terms"])
	assert.Equal(t, "json", st["backend"])

	out, err = env.run("", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "documents: 1\n")
}
