package index

import (
	"context"
	"log/slog"
	"sort"
	"time"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphanChunk is a stored chunk whose document does not exist.
	InconsistencyOrphanChunk InconsistencyType = iota
	// InconsistencyOrphanIndex is an indexed chunk with no stored chunk record.
	InconsistencyOrphanIndex
	// InconsistencyMissingIndex is a chunk of an existing document absent from the index.
	InconsistencyMissingIndex
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanChunk:
		return "orphan_chunk"
	case InconsistencyOrphanIndex:
		return "orphan_index"
	case InconsistencyMissingIndex:
		return "missing_index"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected issue.
type Inconsistency struct {
	Type    InconsistencyType
	ChunkID string
	DocID   string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of stored chunks verified.
	Checked int
	// Inconsistencies holds every issue found, ordered by chunk ID.
	Inconsistencies []Inconsistency
	// Duration is how long the check took.
	Duration time.Duration
}

// Consistent reports whether no issue was found.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// Count returns the number of issues of type t.
func (r *CheckResult) Count(t InconsistencyType) int {
	n := 0
	for _, inc := range r.Inconsistencies {
		if inc.Type == t {
			n++
		}
	}
	return n
}

// Check compares the stored documents and chunks with the index snapshot.
// Orphan chunks are expected after an interrupted ingestion and are never
// searchable; the other two kinds are repaired by Rebuild.
func (ix *Indexer) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	docs, err := ix.repo.ListDocuments(ctx)
	if err != nil {
		return nil, amerrors.StorageUnavailable("list documents", err)
	}
	chunks, err := ix.repo.ListChunks(ctx)
	if err != nil {
		return nil, amerrors.StorageUnavailable("list chunks", err)
	}
	snap, err := ix.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	docIDs := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		docIDs[d.ID] = struct{}{}
	}

	result := &CheckResult{Checked: len(chunks)}
	stored := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		stored[c.ID] = struct{}{}
		if _, ok := docIDs[c.DocID]; !ok {
			result.Inconsistencies = append(result.Inconsistencies,
				Inconsistency{Type: InconsistencyOrphanChunk, ChunkID: c.ID, DocID: c.DocID})
			continue
		}
		if _, ok := snap.ChunkMeta[c.ID]; !ok {
			result.Inconsistencies = append(result.Inconsistencies,
				Inconsistency{Type: InconsistencyMissingIndex, ChunkID: c.ID, DocID: c.DocID})
		}
	}
	for id, meta := range snap.ChunkMeta {
		if _, ok := stored[id]; !ok {
			result.Inconsistencies = append(result.Inconsistencies,
				Inconsistency{Type: InconsistencyOrphanIndex, ChunkID: id, DocID: meta.DocID})
		}
	}

	sort.Slice(result.Inconsistencies, func(i, j int) bool {
		return result.Inconsistencies[i].ChunkID < result.Inconsistencies[j].ChunkID
	})
	result.Duration = time.Since(start)

	if !result.Consistent() {
		slog.Warn("index_inconsistent",
			slog.Int("orphan_chunks", result.Count(InconsistencyOrphanChunk)),
			slog.Int("orphan_index", result.Count(InconsistencyOrphanIndex)),
			slog.Int("missing_index", result.Count(InconsistencyMissingIndex)))
	}
	return result, nil
}
