package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Repository is the persistence collaborator of the knowledge engine.
// Implementations must be safe for concurrent use.
type Repository interface {
	// ListDocuments returns every document in insertion order.
	ListDocuments(ctx context.Context) ([]Document, error)
	// SaveDocuments replaces the full document set.
	SaveDocuments(ctx context.Context, docs []Document) error
	// ListChunks returns every chunk in insertion order.
	ListChunks(ctx context.Context) ([]Chunk, error)
	// SaveChunks replaces the full chunk set.
	SaveChunks(ctx context.Context, chunks []Chunk) error
	// ReadIndex returns the persisted index, or an empty one if none exists.
	ReadIndex(ctx context.Context) (*Index, error)
	// WriteIndex replaces the persisted index.
	WriteIndex(ctx context.Context, idx *Index) error
	// ListInboxFiles returns inbox file names sorted by name.
	ListInboxFiles(ctx context.Context) ([]string, error)
	// ReadInboxFile returns the raw content of an inbox file.
	ReadInboxFile(ctx context.Context, name string) (string, error)
	// MoveInboxToClean archives cleaned content for name and removes the
	// inbox file. It returns the archived path.
	MoveInboxToClean(ctx context.Context, name, cleaned string) (string, error)
}

// Committer persists one new document together with its chunks. Chunks
// become durable no later than the document, so a reader never sees a
// document whose chunks are missing.
type Committer interface {
	CommitDocument(ctx context.Context, doc Document, chunks []Chunk) error
}

// ChunkGetter fetches chunks by ID. Missing IDs are absent from the result.
type ChunkGetter interface {
	GetChunks(ctx context.Context, ids []string) (map[string]Chunk, error)
}

// Getter looks up single records. A miss returns (nil, nil).
type Getter interface {
	GetDocument(ctx context.Context, id string) (*Document, error)
	GetChunk(ctx context.Context, id string) (*Chunk, error)
}

// Counter reports record counts without loading records.
type Counter interface {
	Counts(ctx context.Context) (Counts, error)
}

// IndexUpdater applies fn to the persisted index as one read-modify-write
// held under the repository's cross-process writer lock. fn receives a
// freshly read index it may modify and returns the index to persist.
type IndexUpdater interface {
	UpdateIndex(ctx context.Context, fn func(*Index) (*Index, error)) (*Index, error)
}

// IndexStamper reports a token that changes whenever another writer may
// have replaced the persisted index. Tokens are never empty.
type IndexStamper interface {
	IndexStamp(ctx context.Context) (string, error)
}

// Options selects and configures a repository.
type Options struct {
	Backend        string // "sqlite" or "json"
	DataDir        string
	SQLiteCacheMB  int
	ChunkCacheSize int
}

// Closer is implemented by repositories holding resources.
type Closer interface {
	Close() error
}

// Open creates the repository selected by opts.Backend under opts.DataDir.
func Open(opts Options) (Repository, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	switch strings.ToLower(opts.Backend) {
	case "", "sqlite":
		return NewSQLiteRepository(filepath.Join(opts.DataDir, "knowledge.db"), SQLiteOptions{
			DataDir:        opts.DataDir,
			CacheMB:        opts.SQLiteCacheMB,
			ChunkCacheSize: opts.ChunkCacheSize,
		})
	case "json":
		return NewFileRepository(opts.DataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// Close releases repo's resources if it holds any.
func Close(repo Repository) error {
	if c, ok := repo.(Closer); ok {
		return c.Close()
	}
	return nil
}
