// Package ingest turns raw text into stored, indexed knowledge documents.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/amanknow/internal/chunk"
	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/index"
	"github.com/Aman-CERP/amanknow/internal/store"
)

// DefaultSource is recorded when a request names no source.
const DefaultSource = "manual"

// Request describes one document to ingest.
type Request struct {
	Title   string
	Source  string
	Tags    []string
	Content string
	Linked  map[string]string
	Meta    map[string]any
}

// Result is the outcome of a successful ingestion.
type Result struct {
	Document      store.Document
	ChunksCreated int
}

// Config configures a Pipeline.
type Config struct {
	// Chunker splits normalized content. Nil uses chunk.DefaultOptions.
	Chunker *chunk.Chunker
	// InboxWorkers bounds concurrent inbox file reads (default 4).
	InboxWorkers int
	// Now returns the current time. Nil uses time.Now.
	Now func() time.Time
}

// Pipeline normalizes, chunks, persists, and indexes documents.
//
// Normalization and chunking run without locks. Persistence goes through
// store.Committer when the repository provides it; otherwise the full
// document and chunk sets are rewritten under persistMu, chunks first.
type Pipeline struct {
	repo    store.Repository
	indexer *index.Indexer
	chunker *chunk.Chunker
	workers int
	now     func() time.Time

	persistMu sync.Mutex
}

// NewPipeline creates a pipeline writing to repo and indexing through indexer.
func NewPipeline(repo store.Repository, indexer *index.Indexer, cfg Config) (*Pipeline, error) {
	chunker := cfg.Chunker
	if chunker == nil {
		var err error
		if chunker, err = chunk.NewChunker(chunk.DefaultOptions()); err != nil {
			return nil, err
		}
	}
	if cfg.InboxWorkers <= 0 {
		cfg.InboxWorkers = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{
		repo:    repo,
		indexer: indexer,
		chunker: chunker,
		workers: cfg.InboxWorkers,
		now:     cfg.Now,
	}, nil
}

// Ingest stores req as a new document and indexes its chunks. Identical
// content ingested twice yields two independent documents.
//
// Storage commits before indexing. If indexing fails after the commit,
// Ingest returns an IndexUnavailable error although the document is
// stored; it stays unsearchable until Indexer.Rebuild ("amanknow
// rebuild"), and retrying the ingest stores a second copy. Check reports
// such documents as missing_index.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, chunks := p.prepare(req)

	if err := p.persist(ctx, doc, chunks); err != nil {
		return nil, err
	}
	if err := p.indexer.IndexChunks(ctx, chunks, doc); err != nil {
		slog.Warn("ingest_index_failed",
			slog.String("doc_id", doc.ID),
			slog.String("error", err.Error()))
		return nil, err
	}

	slog.Info("ingest_complete",
		slog.String("doc_id", doc.ID),
		slog.String("source", doc.Source),
		slog.Int("chunks", len(chunks)))
	return &Result{Document: doc, ChunksCreated: len(chunks)}, nil
}

// prepare builds the document and its chunks. It touches no shared state.
func (p *Pipeline) prepare(req Request) (store.Document, []store.Chunk) {
	now := p.now().UTC()

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = DefaultSource
	}
	linked := req.Linked
	if linked == nil {
		linked = map[string]string{}
	}
	meta := req.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	doc := store.Document{
		ID:        NewDocumentID(),
		Title:     strings.TrimSpace(req.Title),
		Source:    source,
		Tags:      NormalizeTags(req.Tags),
		Linked:    linked,
		Meta:      meta,
		CreatedAt: now,
		UpdatedAt: now,
	}

	windows := p.chunker.Chunk(chunk.Normalize(req.Content))
	chunks := make([]store.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = store.Chunk{
			ID:        NewChunkID(),
			DocID:     doc.ID,
			Ord:       i,
			Text:      w.Text,
			CharStart: w.Start,
			CharEnd:   w.End,
			TokensEst: chunk.EstimateTokens(w.Text),
			CreatedAt: now,
		}
	}
	return doc, chunks
}

func (p *Pipeline) persist(ctx context.Context, doc store.Document, chunks []store.Chunk) error {
	if c, ok := p.repo.(store.Committer); ok {
		if err := c.CommitDocument(ctx, doc, chunks); err != nil {
			return amerrors.StorageUnavailable("persist document "+doc.ID, err)
		}
		return nil
	}

	p.persistMu.Lock()
	defer p.persistMu.Unlock()

	existing, err := p.repo.ListChunks(ctx)
	if err != nil {
		return amerrors.StorageUnavailable("list chunks", err)
	}
	if err := p.repo.SaveChunks(ctx, append(existing, chunks...)); err != nil {
		return amerrors.StorageUnavailable("save chunks", err)
	}
	docs, err := p.repo.ListDocuments(ctx)
	if err != nil {
		return amerrors.StorageUnavailable("list documents", err)
	}
	if err := p.repo.SaveDocuments(ctx, append(docs, doc)); err != nil {
		return amerrors.StorageUnavailable("save documents", err)
	}
	return nil
}

// NormalizeTags trims tags, drops blanks, and removes duplicates keeping
// the first occurrence. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
