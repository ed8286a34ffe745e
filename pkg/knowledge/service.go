package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/amanknow/internal/chunk"
	"github.com/Aman-CERP/amanknow/internal/config"
	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/index"
	"github.com/Aman-CERP/amanknow/internal/ingest"
	"github.com/Aman-CERP/amanknow/internal/search"
	"github.com/Aman-CERP/amanknow/internal/store"
	"github.com/Aman-CERP/amanknow/internal/telemetry"
)

// Options configures a Service.
type Options struct {
	Backend        string
	DataDir        string
	SQLiteCacheMB  int
	ChunkCacheSize int

	MaxChars int
	Overlap  int

	// InboxWorkers bounds concurrent inbox reads.
	InboxWorkers int
}

// OptionsFromConfig maps a loaded configuration onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Backend:        cfg.Storage.Backend,
		DataDir:        cfg.Storage.DataDir,
		SQLiteCacheMB:  cfg.Storage.SQLiteCacheMB,
		ChunkCacheSize: cfg.Storage.ChunkCacheSize,
		MaxChars:       cfg.Chunking.MaxChars,
		Overlap:        cfg.Chunking.Overlap,
		InboxWorkers:   cfg.Inbox.Workers,
	}
}

// Stats describes what the service holds.
type Stats struct {
	Documents     int                 `json:"documents"`
	Chunks        int                 `json:"chunks"`
	Terms         int                 `json:"terms"`
	IndexedChunks int                 `json:"indexed_chunks"`
	Backend       string              `json:"backend"`
	DataDir       string              `json:"data_dir"`
	Queries       *telemetry.Snapshot `json:"queries,omitempty"`
}

// Service is the knowledge engine. It is safe for concurrent use.
type Service struct {
	repo     store.Repository
	indexer  *index.Indexer
	pipeline *ingest.Pipeline
	engine   *search.Engine
	metrics  *telemetry.QueryMetrics

	backend string
	dataDir string

	closeOnce sync.Once
	closeErr  error
}

// Open opens the repository described by opts and builds a service on it.
func Open(opts Options) (*Service, error) {
	repo, err := store.Open(store.Options{
		Backend:        opts.Backend,
		DataDir:        opts.DataDir,
		SQLiteCacheMB:  opts.SQLiteCacheMB,
		ChunkCacheSize: opts.ChunkCacheSize,
	})
	if err != nil {
		if _, ok := amerrors.As(err); ok {
			return nil, err
		}
		return nil, amerrors.StorageUnavailable("open repository", err)
	}

	svc, err := New(repo, opts)
	if err != nil {
		_ = store.Close(repo)
		return nil, err
	}
	return svc, nil
}

// New builds a service on an existing repository. Only the chunking and
// inbox fields of opts are used; Backend and DataDir are informational.
// Zero chunking options take the chunker defaults.
func New(repo store.Repository, opts Options) (*Service, error) {
	if repo == nil {
		return nil, errors.New("knowledge: nil repository")
	}
	chunkOpts := chunk.Options{MaxChars: opts.MaxChars, Overlap: opts.Overlap}
	if chunkOpts == (chunk.Options{}) {
		chunkOpts = chunk.DefaultOptions()
	}
	chunker, err := chunk.NewChunker(chunkOpts)
	if err != nil {
		return nil, err
	}

	ix := index.NewIndexer(repo)
	pipeline, err := ingest.NewPipeline(repo, ix, ingest.Config{
		Chunker:      chunker,
		InboxWorkers: opts.InboxWorkers,
	})
	if err != nil {
		return nil, err
	}
	metrics := telemetry.NewQueryMetrics(telemetry.DefaultConfig())
	engine, err := search.NewEngine(ix, repo, search.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}

	return &Service{
		repo:     repo,
		indexer:  ix,
		pipeline: pipeline,
		engine:   engine,
		metrics:  metrics,
		backend:  opts.Backend,
		dataDir:  opts.DataDir,
	}, nil
}

// Repository returns the underlying repository.
func (s *Service) Repository() store.Repository { return s.repo }

// DataDir returns the data directory the service was opened on.
func (s *Service) DataDir() string { return s.dataDir }

// Ingest stores a new document and returns it with its chunk count.
func (s *Service) Ingest(ctx context.Context, title, source string, tags []string, content string,
	linked map[string]string, meta map[string]any) (*store.Document, int, error) {
	res, err := s.pipeline.Ingest(ctx, ingest.Request{
		Title:   title,
		Source:  source,
		Tags:    tags,
		Content: content,
		Linked:  linked,
		Meta:    meta,
	})
	if err != nil {
		return nil, 0, err
	}
	return &res.Document, res.ChunksCreated, nil
}

// IngestInboxBatch ingests up to limit inbox files and returns how many
// succeeded along with one result per attempted file.
func (s *Service) IngestInboxBatch(ctx context.Context, limit int) (int, []ingest.FileResult, error) {
	return s.IngestInboxBatchFunc(ctx, limit, nil)
}

// IngestInboxBatchFunc is IngestInboxBatch reporting each processed file
// to progress, which may be nil.
func (s *Service) IngestInboxBatchFunc(ctx context.Context, limit int, progress ingest.ProgressFunc) (int, []ingest.FileResult, error) {
	batch, err := s.pipeline.IngestInboxFunc(ctx, limit, progress)
	if batch == nil {
		return 0, nil, err
	}
	return batch.Ingested, batch.Results, err
}

// RebuildIndex regenerates the index from stored documents and chunks.
func (s *Service) RebuildIndex(ctx context.Context) (docsIndexed, chunksIndexed, termsCount int, err error) {
	stats, err := s.indexer.Rebuild(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	return stats.DocsIndexed, stats.ChunksIndexed, stats.Terms, nil
}

// Search returns up to limit hits for query, optionally restricted to tag.
func (s *Service) Search(ctx context.Context, query string, limit int, tag string) ([]search.Hit, error) {
	return s.engine.Search(ctx, query, search.Options{Limit: limit, Tag: tag})
}

// GetDocument returns the document with id, or nil if there is none.
func (s *Service) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	if g, ok := s.repo.(store.Getter); ok {
		doc, err := g.GetDocument(ctx, id)
		if err != nil {
			return nil, amerrors.StorageUnavailable("get document", err)
		}
		return doc, nil
	}
	docs, err := s.repo.ListDocuments(ctx)
	if err != nil {
		return nil, amerrors.StorageUnavailable("list documents", err)
	}
	for i := range docs {
		if docs[i].ID == id {
			return &docs[i], nil
		}
	}
	return nil, nil
}

// GetChunk returns the chunk with id, or nil if there is none.
func (s *Service) GetChunk(ctx context.Context, id string) (*store.Chunk, error) {
	if g, ok := s.repo.(store.Getter); ok {
		c, err := g.GetChunk(ctx, id)
		if err != nil {
			return nil, amerrors.StorageUnavailable("get chunk", err)
		}
		return c, nil
	}
	chunks, err := s.repo.ListChunks(ctx)
	if err != nil {
		return nil, amerrors.StorageUnavailable("list chunks", err)
	}
	for i := range chunks {
		if chunks[i].ID == id {
			return &chunks[i], nil
		}
	}
	return nil, nil
}

// Stats reports stored and indexed record counts plus query metrics.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.counts(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := s.indexer.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Documents:     counts.Documents,
		Chunks:        counts.Chunks,
		Terms:         len(idx.Terms),
		IndexedChunks: len(idx.ChunkMeta),
		Backend:       s.backend,
		DataDir:       s.dataDir,
		Queries:       s.metrics.Snapshot(),
	}, nil
}

func (s *Service) counts(ctx context.Context) (store.Counts, error) {
	if c, ok := s.repo.(store.Counter); ok {
		counts, err := c.Counts(ctx)
		if err != nil {
			return store.Counts{}, amerrors.StorageUnavailable("count records", err)
		}
		return counts, nil
	}
	docs, err := s.repo.ListDocuments(ctx)
	if err != nil {
		return store.Counts{}, amerrors.StorageUnavailable("list documents", err)
	}
	chunks, err := s.repo.ListChunks(ctx)
	if err != nil {
		return store.Counts{}, amerrors.StorageUnavailable("list chunks", err)
	}
	return store.Counts{Documents: len(docs), Chunks: len(chunks)}, nil
}

// Check compares storage with the index.
func (s *Service) Check(ctx context.Context) (*index.CheckResult, error) {
	return s.indexer.Check(ctx)
}

// Refresh drops the cached index so the next operation reloads it. The
// built-in backends detect index writes by other processes on their own;
// Refresh serves repositories that cannot.
func (s *Service) Refresh() {
	s.indexer.Reset()
}

// Close releases the repository. It is safe to call more than once.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		if err := store.Close(s.repo); err != nil {
			s.closeErr = fmt.Errorf("close repository: %w", err)
		}
		slog.Debug("knowledge_service_closed", slog.String("data_dir", s.dataDir))
	})
	return s.closeErr
}
