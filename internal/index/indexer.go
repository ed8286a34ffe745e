// Package index maintains the inverted term index over knowledge chunks.
package index

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/store"
)

// RebuildStats reports the outcome of a full rebuild.
type RebuildStats struct {
	DocsIndexed   int `json:"docs_indexed"`
	ChunksIndexed int `json:"chunks_indexed"`
	Terms         int `json:"terms"`
}

// Indexer owns the in-memory index snapshot and its persisted copy.
//
// Writers (IndexChunks, Rebuild) are serialized by writeMu. IndexChunks
// merges into the persisted index as read under the repository's writer
// lock, so postings written by another process are kept. A snapshot is
// published only after it is persisted, so readers always see a complete
// index and a failed write leaves the previous one in place. When the
// repository is an IndexStamper, Snapshot reloads after another process
// changes the index.
type Indexer struct {
	repo store.Repository

	writeMu sync.Mutex

	mu      sync.RWMutex
	current *store.Index
	stamp   string
}

// NewIndexer creates an indexer over repo. The persisted index is loaded
// on first use.
func NewIndexer(repo store.Repository) *Indexer {
	return &Indexer{repo: repo}
}

// Snapshot returns the current index. Callers must not modify it.
func (ix *Indexer) Snapshot(ctx context.Context) (*store.Index, error) {
	stamp, err := ix.readStamp(ctx)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	cur, seen := ix.current, ix.stamp
	ix.mu.RUnlock()
	if cur != nil && seen == stamp {
		return cur, nil
	}

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	return ix.loadLocked(ctx, stamp)
}

// Reset drops the in-memory snapshot so the next use reloads it from the
// repository.
func (ix *Indexer) Reset() {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	ix.publish(nil, "")
}

// IndexChunks adds chunks of doc to the index. Re-indexing a chunk leaves
// its posting lists unchanged and overwrites its metadata.
func (ix *Indexer) IndexChunks(ctx context.Context, chunks []store.Chunk, doc store.Document) error {
	if len(chunks) == 0 {
		return nil
	}

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	next, err := ix.update(ctx, func(cur *store.Index) (*store.Index, error) {
		next := cur.Clone()
		for _, c := range chunks {
			for _, term := range UniqueTerms(c.Text) {
				if !slices.Contains(next.Terms[term], c.ID) {
					next.Terms[term] = append(next.Terms[term], c.ID)
				}
			}
			next.ChunkMeta[c.ID] = store.NewChunkMeta(doc, c.Ord)
		}
		return next, nil
	})
	if err != nil {
		return amerrors.IndexUnavailable("write index", err)
	}
	// An empty stamp never matches a stamper's token, so the next Snapshot
	// re-reads the stamp and the index once.
	ix.publish(next, "")

	slog.Debug("index_updated",
		slog.String("doc_id", doc.ID),
		slog.Int("chunks", len(chunks)),
		slog.Int("terms", len(next.Terms)))
	return nil
}

// update applies fn to a fresh read of the persisted index and writes the
// result. Caller holds writeMu.
func (ix *Indexer) update(ctx context.Context, fn func(*store.Index) (*store.Index, error)) (*store.Index, error) {
	if u, ok := ix.repo.(store.IndexUpdater); ok {
		return u.UpdateIndex(ctx, fn)
	}

	cur, err := ix.repo.ReadIndex(ctx)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		cur = store.NewIndex()
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if err := ix.repo.WriteIndex(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Rebuild discards the index and rebuilds it from every stored chunk
// whose document exists. ChunksIndexed counts all stored chunks read,
// orphans included.
func (ix *Indexer) Rebuild(ctx context.Context) (RebuildStats, error) {
	start := time.Now()

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	docs, err := ix.repo.ListDocuments(ctx)
	if err != nil {
		return RebuildStats{}, amerrors.StorageUnavailable("list documents", err)
	}
	chunks, err := ix.repo.ListChunks(ctx)
	if err != nil {
		return RebuildStats{}, amerrors.StorageUnavailable("list chunks", err)
	}

	next, orphans := build(docs, chunks)

	if err := ix.repo.WriteIndex(ctx, next); err != nil {
		return RebuildStats{}, amerrors.IndexUnavailable("write index", err)
	}
	ix.publish(next, "")

	stats := RebuildStats{
		DocsIndexed:   len(docs),
		ChunksIndexed: len(chunks),
		Terms:         len(next.Terms),
	}
	slog.Info("index_rebuilt",
		slog.Int("docs", stats.DocsIndexed),
		slog.Int("chunks", stats.ChunksIndexed),
		slog.Int("orphan_chunks", orphans),
		slog.Int("terms", stats.Terms),
		slog.Duration("duration", time.Since(start)))
	return stats, nil
}

// build constructs a fresh index from docs and chunks and returns it with
// the number of orphan chunks skipped.
func build(docs []store.Document, chunks []store.Chunk) (*store.Index, int) {
	byID := make(map[string]*store.Document, len(docs))
	for i := range docs {
		byID[docs[i].ID] = &docs[i]
	}

	idx := store.NewIndex()
	orphans := 0
	for _, c := range chunks {
		doc, ok := byID[c.DocID]
		if !ok {
			orphans++
			continue
		}
		if _, dup := idx.ChunkMeta[c.ID]; !dup {
			// Chunk IDs are unique here, so each posting list only
			// needs a check against its tail.
			for _, term := range UniqueTerms(c.Text) {
				ids := idx.Terms[term]
				if len(ids) == 0 || ids[len(ids)-1] != c.ID {
					idx.Terms[term] = append(ids, c.ID)
				}
			}
		}
		idx.ChunkMeta[c.ID] = store.NewChunkMeta(*doc, c.Ord)
	}
	return idx, orphans
}

// loadLocked reads the index from the repository unless the published
// snapshot already matches stamp. Caller holds writeMu.
func (ix *Indexer) loadLocked(ctx context.Context, stamp string) (*store.Index, error) {
	ix.mu.RLock()
	cur, seen := ix.current, ix.stamp
	ix.mu.RUnlock()
	if cur != nil && seen == stamp {
		return cur, nil
	}

	idx, err := ix.repo.ReadIndex(ctx)
	if err != nil {
		return nil, amerrors.IndexUnavailable("load index", err)
	}
	if idx == nil {
		idx = store.NewIndex()
	}
	ix.publish(idx, stamp)
	return idx, nil
}

// readStamp returns the repository's index stamp, or "" when it has none.
// The stamp is read before the index, so a concurrent change is seen on
// the next call at the latest.
func (ix *Indexer) readStamp(ctx context.Context) (string, error) {
	s, ok := ix.repo.(store.IndexStamper)
	if !ok {
		return "", nil
	}
	stamp, err := s.IndexStamp(ctx)
	if err != nil {
		return "", amerrors.IndexUnavailable("stat index", err)
	}
	return stamp, nil
}

func (ix *Indexer) publish(idx *store.Index, stamp string) {
	ix.mu.Lock()
	ix.current = idx
	ix.stamp = stamp
	ix.mu.Unlock()
}
