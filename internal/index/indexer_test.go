package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/store"
)

// flakyRepo wraps a repository and fails index I/O on demand.
type flakyRepo struct {
	store.Repository
	mu        sync.Mutex
	failRead  bool
	failWrite bool
	writes    int
}

func (r *flakyRepo) ReadIndex(ctx context.Context) (*store.Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRead {
		return nil, errors.New("index file unreadable")
	}
	return r.Repository.ReadIndex(ctx)
}

func (r *flakyRepo) WriteIndex(ctx context.Context, idx *store.Index) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite {
		return errors.New("disk full")
	}
	r.writes++
	return r.Repository.WriteIndex(ctx, idx)
}

func newRepo(t *testing.T) *flakyRepo {
	t.Helper()
	repo, err := store.NewFileRepository(t.TempDir())
	require.NoError(t, err)
	return &flakyRepo{Repository: repo}
}

func doc(id string, tags ...string) store.Document {
	return store.Document{ID: id, Title: "Doc " + id, Source: "manual", Tags: tags, CreatedAt: time.Now().UTC()}
}

func chunkOf(id, docID string, ord int, text string) store.Chunk {
	return store.Chunk{ID: id, DocID: docID, Ord: ord, Text: text}
}

// persist stores doc and chunks the way the ingestion pipeline does.
func persist(t *testing.T, repo *flakyRepo, d store.Document, chunks ...store.Chunk) {
	t.Helper()
	require.NoError(t, repo.Repository.(store.Committer).CommitDocument(context.Background(), d, chunks))
}

func TestIndexer_IndexChunks_BuildsPostingsAndMeta(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	ix := NewIndexer(repo)
	d := doc("know_a", "food")

	// Given: two chunks sharing a term
	chunks := []store.Chunk{
		chunkOf("chk_1", "know_a", 0, "Apple pie apple"),
		chunkOf("chk_2", "know_a", 1, "Pie crust"),
	}

	// When: indexing
	require.NoError(t, ix.IndexChunks(ctx, chunks, d))

	// Then: postings are unique per chunk and in insertion order
	snap, err := ix.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chk_1"}, snap.Terms["apple"])
	assert.Equal(t, []string{"chk_1", "chk_2"}, snap.Terms["pie"])
	assert.Equal(t, []string{"chk_2"}, snap.Terms["crust"])
	assert.Equal(t, store.ChunkMeta{DocID: "know_a", Ord: 1, Title: "Doc know_a", Source: "manual", Tags: []string{"food"}}, snap.ChunkMeta["chk_2"])

	// And: the index was persisted
	persisted, err := repo.ReadIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Terms, persisted.Terms)
}

func TestIndexer_IndexChunks_Idempotent(t *testing.T) {
	ctx := context.Background()
	ix := NewIndexer(newRepo(t))
	d := doc("know_a")
	chunks := []store.Chunk{chunkOf("chk_1", "know_a", 0, "alpha beta")}

	require.NoError(t, ix.IndexChunks(ctx, chunks, d))
	first, err := ix.Snapshot(ctx)
	require.NoError(t, err)

	// When: indexing the same chunk again with changed document metadata
	d.Title = "Renamed"
	require.NoError(t, ix.IndexChunks(ctx, chunks, d))

	// Then: postings are unchanged and metadata is overwritten
	second, err := ix.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Terms, second.Terms)
	assert.Equal(t, "Renamed", second.ChunkMeta["chk_1"].Title)
	assert.Equal(t, "Doc know_a", first.ChunkMeta["chk_1"].Title, "old snapshot must stay untouched")
}

func TestIndexer_IndexChunks_EmptyIsNoop(t *testing.T) {
	repo := newRepo(t)
	ix := NewIndexer(repo)

	require.NoError(t, ix.IndexChunks(context.Background(), nil, doc("know_a")))
	assert.Zero(t, repo.writes)
}

func TestIndexer_IndexChunks_WriteFailureKeepsPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	ix := NewIndexer(repo)
	require.NoError(t, ix.IndexChunks(ctx, []store.Chunk{chunkOf("chk_1", "know_a", 0, "alpha")}, doc("know_a")))

	// Given: the next index write fails
	repo.failWrite = true

	// When: indexing more chunks
	err := ix.IndexChunks(ctx, []store.Chunk{chunkOf("chk_2", "know_b", 0, "alpha gamma")}, doc("know_b"))

	// Then: IndexUnavailable and nothing from the failed call is visible
	require.Error(t, err)
	assert.ErrorIs(t, err, amerrors.ErrIndexUnavailable)
	snap, err := ix.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chk_1"}, snap.Terms["alpha"])
	assert.NotContains(t, snap.Terms, "gamma")
	assert.NotContains(t, snap.ChunkMeta, "chk_2")
}

func TestIndexer_LoadFailureIsIndexUnavailable(t *testing.T) {
	repo := newRepo(t)
	repo.failRead = true
	ix := NewIndexer(repo)

	_, err := ix.Snapshot(context.Background())

	assert.ErrorIs(t, err, amerrors.ErrIndexUnavailable)
}

func TestIndexer_LazyLoadsPersistedIndex(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, NewIndexer(repo).IndexChunks(ctx, []store.Chunk{chunkOf("chk_1", "know_a", 0, "persisted")}, doc("know_a")))

	// When: a fresh indexer opens the same repository
	snap, err := NewIndexer(repo).Snapshot(ctx)

	// Then: it sees the persisted postings
	require.NoError(t, err)
	assert.Equal(t, []string{"chk_1"}, snap.Terms["persisted"])
}

func TestIndexer_Reset_ReloadsFromRepository(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	ix := NewIndexer(repo)
	_, err := ix.Snapshot(ctx)
	require.NoError(t, err)

	// Another writer updates the persisted index.
	require.NoError(t, NewIndexer(repo).IndexChunks(ctx, []store.Chunk{chunkOf("chk_9", "know_z", 0, "external")}, doc("know_z")))

	ix.Reset()
	snap, err := ix.Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap.Terms, "external")
}

func TestIndexer_Rebuild_EquivalentToIncremental(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	ix := NewIndexer(repo)

	// Given: documents ingested incrementally
	a, b := doc("know_a", "x"), doc("know_b")
	aChunks := []store.Chunk{chunkOf("chk_a0", "know_a", 0, "red green"), chunkOf("chk_a1", "know_a", 1, "green blue")}
	bChunks := []store.Chunk{chunkOf("chk_b0", "know_b", 0, "blue red red")}
	persist(t, repo, a, aChunks...)
	require.NoError(t, ix.IndexChunks(ctx, aChunks, a))
	persist(t, repo, b, bChunks...)
	require.NoError(t, ix.IndexChunks(ctx, bChunks, b))
	incremental, err := ix.Snapshot(ctx)
	require.NoError(t, err)

	// When: rebuilding
	stats, err := ix.Rebuild(ctx)

	// Then: same index, and stats describe it
	require.NoError(t, err)
	rebuilt, err := ix.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, incremental.Terms, rebuilt.Terms)
	assert.Equal(t, incremental.ChunkMeta, rebuilt.ChunkMeta)
	assert.Equal(t, RebuildStats{DocsIndexed: 2, ChunksIndexed: 3, Terms: 3}, stats)
}

func TestIndexer_Rebuild_SkipsOrphansAndDropsStaleEntries(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	ix := NewIndexer(repo)

	// Given: an orphan chunk in storage and a stale entry in the index
	persist(t, repo, doc("know_a"), chunkOf("chk_a0", "know_a", 0, "kept"))
	require.NoError(t, repo.SaveChunks(ctx, []store.Chunk{
		chunkOf("chk_a0", "know_a", 0, "kept"),
		chunkOf("chk_orphan", "know_gone", 0, "orphan words"),
	}))
	require.NoError(t, ix.IndexChunks(ctx, []store.Chunk{chunkOf("chk_stale", "know_old", 0, "stale")}, doc("know_old")))

	// When: rebuilding
	stats, err := ix.Rebuild(ctx)

	// Then: orphans are skipped but counted, stale entries are gone
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ChunksIndexed)
	assert.Equal(t, 1, stats.DocsIndexed)
	snap, err := ix.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"kept": {"chk_a0"}}, snap.Terms)
	assert.NotContains(t, snap.ChunkMeta, "chk_orphan")
	assert.NotContains(t, snap.ChunkMeta, "chk_stale")
}

func TestIndexer_Rebuild_WriteFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	ix := NewIndexer(repo)
	require.NoError(t, ix.IndexChunks(ctx, []store.Chunk{chunkOf("chk_1", "know_a", 0, "only")}, doc("know_a")))
	repo.failWrite = true

	_, err := ix.Rebuild(ctx)

	assert.ErrorIs(t, err, amerrors.ErrIndexUnavailable)
	snap, err := ix.Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap.Terms, "only")
}

func TestIndexer_ConcurrentWritersLoseNothing(t *testing.T) {
	ctx := context.Background()
	ix := NewIndexer(newRepo(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("chk_%02d", i)
			assert.NoError(t, ix.IndexChunks(ctx, []store.Chunk{chunkOf(id, "know_a", i, "shared unique"+id[4:])}, doc("know_a")))
		}(i)
	}
	wg.Wait()

	snap, err := ix.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Terms["shared"], 20)
	assert.Len(t, snap.ChunkMeta, 20)
}

func TestIndexer_SharedDataDir_MergesOtherWriters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	open := func() *store.FileRepository {
		repo, err := store.NewFileRepository(dir)
		require.NoError(t, err)
		return repo
	}

	// Given: an indexer holding a loaded snapshot
	long := NewIndexer(open())
	_, err := long.Snapshot(ctx)
	require.NoError(t, err)

	// When: another indexer on the same directory writes first
	require.NoError(t, NewIndexer(open()).IndexChunks(ctx, []store.Chunk{chunkOf("chk_z", "know_z", 0, "zebra stripes")}, doc("know_z")))

	// Then: the loaded indexer sees it without a reset
	snap, err := long.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chk_z"}, snap.Terms["zebra"])

	// And: its own write keeps the other writer's postings
	require.NoError(t, long.IndexChunks(ctx, []store.Chunk{chunkOf("chk_l", "know_l", 0, "lion mane")}, doc("know_l")))
	persisted, err := open().ReadIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chk_z"}, persisted.Terms["zebra"])
	assert.Equal(t, []string{"chk_l"}, persisted.Terms["lion"])
	assert.Len(t, persisted.ChunkMeta, 2)
}

func TestIndexer_IndexChunks_MergesWhatAnotherWriterPersisted(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	ix := NewIndexer(repo)
	_, err := ix.Snapshot(ctx)
	require.NoError(t, err)

	// Given: the persisted index changed behind the cached snapshot
	external := store.NewIndex()
	external.Terms["external"] = []string{"chk_x"}
	external.ChunkMeta["chk_x"] = store.NewChunkMeta(doc("know_x"), 0)
	require.NoError(t, repo.Repository.WriteIndex(ctx, external))

	// When: indexing through a repository without index stamps
	require.NoError(t, ix.IndexChunks(ctx, []store.Chunk{chunkOf("chk_1", "know_a", 0, "local")}, doc("know_a")))

	// Then: the write is merged into the persisted index, not the cached one
	snap, err := ix.Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap.Terms, "external")
	assert.Contains(t, snap.Terms, "local")
}
