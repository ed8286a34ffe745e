package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanknow/internal/store"
)

func TestCheck_ConsistentAfterRebuild(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	ix := NewIndexer(repo)
	persist(t, repo, doc("know_a"), chunkOf("chk_a0", "know_a", 0, "hello world"))
	_, err := ix.Rebuild(ctx)
	require.NoError(t, err)

	result, err := ix.Check(ctx)

	require.NoError(t, err)
	assert.True(t, result.Consistent())
	assert.Equal(t, 1, result.Checked)
}

func TestCheck_ReportsEachKind(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	ix := NewIndexer(repo)

	// Given: a stored but unindexed chunk, an orphan chunk, and an index entry with no chunk
	persist(t, repo, doc("know_a"), chunkOf("chk_a0", "know_a", 0, "unindexed"))
	chunks, err := repo.ListChunks(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.SaveChunks(ctx, append(chunks, chunkOf("chk_b0", "know_missing", 0, "orphan"))))
	require.NoError(t, ix.IndexChunks(ctx, []store.Chunk{chunkOf("chk_c0", "know_a", 1, "ghost")}, doc("know_a")))

	// When: checking
	result, err := ix.Check(ctx)

	// Then: each issue is reported once, ordered by chunk ID
	require.NoError(t, err)
	require.Len(t, result.Inconsistencies, 3)
	assert.Equal(t, Inconsistency{Type: InconsistencyMissingIndex, ChunkID: "chk_a0", DocID: "know_a"}, result.Inconsistencies[0])
	assert.Equal(t, Inconsistency{Type: InconsistencyOrphanChunk, ChunkID: "chk_b0", DocID: "know_missing"}, result.Inconsistencies[1])
	assert.Equal(t, Inconsistency{Type: InconsistencyOrphanIndex, ChunkID: "chk_c0", DocID: "know_a"}, result.Inconsistencies[2])
	assert.Equal(t, 1, result.Count(InconsistencyOrphanChunk))
	assert.Equal(t, "missing_index", InconsistencyMissingIndex.String())
}
