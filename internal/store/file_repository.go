package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// File names used by FileRepository under its data directory.
const (
	DocumentsFile = "docs.json"
	ChunksFile    = "chunks.json"
	IndexFile     = "index.json"
)

// FileRepository stores documents, chunks, and the index as JSON files.
// Writes go through a temp file and rename, so a crash leaves either the
// old or the new file. Writers are serialized in-process by mu and across
// processes by a file lock.
type FileRepository struct {
	dataDir string
	inbox   *Inbox

	mu   sync.Mutex
	lock *FileLock
}

var (
	_ Repository = (*FileRepository)(nil)
	_ Committer  = (*FileRepository)(nil)
	_ Getter     = (*FileRepository)(nil)
	_ Counter    = (*FileRepository)(nil)

	_ IndexUpdater = (*FileRepository)(nil)
	_ IndexStamper = (*FileRepository)(nil)
)

// NewFileRepository creates the data directory and its inbox layout.
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	inbox := NewInbox(dataDir)
	if err := inbox.Ensure(); err != nil {
		return nil, err
	}
	return &FileRepository{
		dataDir: dataDir,
		inbox:   inbox,
		lock:    NewFileLock(dataDir),
	}, nil
}

// Inbox returns the repository's inbox.
func (r *FileRepository) Inbox() *Inbox { return r.inbox }

// ListDocuments implements Repository.
func (r *FileRepository) ListDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := r.readJSON(ctx, DocumentsFile, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// SaveDocuments implements Repository.
func (r *FileRepository) SaveDocuments(ctx context.Context, docs []Document) error {
	return r.withWriteLock(ctx, func() error {
		return r.writeJSON(DocumentsFile, nonNil(docs))
	})
}

// ListChunks implements Repository.
func (r *FileRepository) ListChunks(ctx context.Context) ([]Chunk, error) {
	var chunks []Chunk
	if err := r.readJSON(ctx, ChunksFile, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// SaveChunks implements Repository.
func (r *FileRepository) SaveChunks(ctx context.Context, chunks []Chunk) error {
	return r.withWriteLock(ctx, func() error {
		return r.writeJSON(ChunksFile, nonNil(chunks))
	})
}

// ReadIndex implements Repository.
func (r *FileRepository) ReadIndex(ctx context.Context) (*Index, error) {
	return r.readIndex(ctx)
}

func (r *FileRepository) readIndex(ctx context.Context) (*Index, error) {
	idx := NewIndex()
	if err := r.readJSON(ctx, IndexFile, idx); err != nil {
		return nil, err
	}
	if idx.Terms == nil {
		idx.Terms = make(map[string][]string)
	}
	if idx.ChunkMeta == nil {
		idx.ChunkMeta = make(map[string]ChunkMeta)
	}
	return idx, nil
}

// WriteIndex implements Repository.
func (r *FileRepository) WriteIndex(ctx context.Context, idx *Index) error {
	return r.withWriteLock(ctx, func() error {
		return r.writeJSON(IndexFile, idx)
	})
}

// UpdateIndex implements IndexUpdater. The index file is read and
// replaced while the write lock is held.
func (r *FileRepository) UpdateIndex(ctx context.Context, fn func(*Index) (*Index, error)) (*Index, error) {
	var next *Index
	err := r.withWriteLock(ctx, func() error {
		cur, err := r.readIndex(ctx)
		if err != nil {
			return err
		}
		if next, err = fn(cur); err != nil {
			return err
		}
		return r.writeJSON(IndexFile, next)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// IndexStamp implements IndexStamper from the index file's modification
// time and size.
func (r *FileRepository) IndexStamp(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	info, err := os.Stat(filepath.Join(r.dataDir, IndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "none", nil
		}
		return "", fmt.Errorf("stat %s: %w", IndexFile, err)
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 10) + "-" + strconv.FormatInt(info.Size(), 10), nil
}

// CommitDocument appends doc and chunks. The chunks file is replaced
// first, so a failure between the two writes leaves only unreferenced
// chunks behind.
func (r *FileRepository) CommitDocument(ctx context.Context, doc Document, chunks []Chunk) error {
	return r.withWriteLock(ctx, func() error {
		var existing []Chunk
		if err := r.readJSON(ctx, ChunksFile, &existing); err != nil {
			return err
		}
		if err := r.writeJSON(ChunksFile, append(existing, chunks...)); err != nil {
			return err
		}

		var docs []Document
		if err := r.readJSON(ctx, DocumentsFile, &docs); err != nil {
			return err
		}
		return r.writeJSON(DocumentsFile, append(docs, doc))
	})
}

// GetDocument implements Getter.
func (r *FileRepository) GetDocument(ctx context.Context, id string) (*Document, error) {
	docs, err := r.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID == id {
			return &docs[i], nil
		}
	}
	return nil, nil
}

// GetChunk implements Getter.
func (r *FileRepository) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	chunks, err := r.ListChunks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		if chunks[i].ID == id {
			return &chunks[i], nil
		}
	}
	return nil, nil
}

// Counts implements Counter.
func (r *FileRepository) Counts(ctx context.Context) (Counts, error) {
	docs, err := r.ListDocuments(ctx)
	if err != nil {
		return Counts{}, err
	}
	chunks, err := r.ListChunks(ctx)
	if err != nil {
		return Counts{}, err
	}
	return Counts{Documents: len(docs), Chunks: len(chunks)}, nil
}

// ListInboxFiles implements Repository.
func (r *FileRepository) ListInboxFiles(ctx context.Context) ([]string, error) {
	return r.inbox.List(ctx)
}

// ReadInboxFile implements Repository.
func (r *FileRepository) ReadInboxFile(ctx context.Context, name string) (string, error) {
	return r.inbox.Read(ctx, name)
}

// MoveInboxToClean implements Repository.
func (r *FileRepository) MoveInboxToClean(ctx context.Context, name, cleaned string) (string, error) {
	return r.inbox.MoveToClean(ctx, name, cleaned)
}

func (r *FileRepository) withWriteLock(ctx context.Context, fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lock.Lock(ctx); err != nil {
		return err
	}
	defer func() { _ = r.lock.Unlock() }()

	return fn()
}

// readJSON decodes name into v. A missing file leaves v untouched.
func (r *FileRepository) readJSON(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(r.dataDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (r *FileRepository) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := writeFileAtomic(filepath.Join(r.dataDir, name), data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// nonNil makes empty sets encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
