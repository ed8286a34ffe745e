package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
)

// DefaultChunkCacheSize is the number of chunks GetChunks keeps in memory.
const DefaultChunkCacheSize = 1024

// sqliteBatchSize bounds the number of parameters in one IN (...) lookup.
const sqliteBatchSize = 500

// SQLiteOptions configures a SQLiteRepository.
type SQLiteOptions struct {
	// DataDir holds the inbox and clean directories.
	DataDir string
	// CacheMB is the SQLite page cache size (default 16).
	CacheMB int
	// ChunkCacheSize is the LRU capacity for GetChunks (default 1024).
	ChunkCacheSize int
}

// SQLiteRepository stores knowledge in a single SQLite database using the
// pure Go modernc.org/sqlite driver. Document and chunk inserts for one
// ingestion commit in a single transaction.
type SQLiteRepository struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	inbox  *Inbox
	cache  *lru.Cache[string, Chunk]
	closed bool
}

var (
	_ Repository  = (*SQLiteRepository)(nil)
	_ Committer   = (*SQLiteRepository)(nil)
	_ ChunkGetter = (*SQLiteRepository)(nil)
	_ Getter      = (*SQLiteRepository)(nil)
	_ Counter     = (*SQLiteRepository)(nil)

	_ IndexUpdater = (*SQLiteRepository)(nil)
	_ IndexStamper = (*SQLiteRepository)(nil)
)

// validateSQLiteIntegrity checks an existing database before it is opened
// for writing. A missing file is valid.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteRepository opens or creates the database at path. An empty path
// opens an in-memory database.
func NewSQLiteRepository(path string, opts SQLiteOptions) (*SQLiteRepository, error) {
	if opts.CacheMB <= 0 {
		opts.CacheMB = 16
	}
	if opts.ChunkCacheSize <= 0 {
		opts.ChunkCacheSize = DefaultChunkCacheSize
	}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		// Unlike a derived search index this database is the source of
		// truth, so corruption is reported rather than cleared.
		if err := validateSQLiteIntegrity(path); err != nil {
			slog.Error("knowledge_db_corrupted", slog.String("path", path), slog.String("error", err.Error()))
			return nil, amerrors.New(amerrors.ErrCodeCorruptStore, "knowledge database is corrupted: "+path, err).
				WithSuggestion("Restore the database from a backup or move it aside and re-ingest")
		}
		// Writers take the database lock at BEGIN, so a read-modify-write
		// in UpdateIndex cannot interleave with another process.
		dsn = path + "?_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: one writer, and :memory: stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", opts.CacheMB*1024),
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = OFF",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	cache, err := lru.New[string, Chunk](opts.ChunkCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create chunk cache: %w", err)
	}

	dataDir := opts.DataDir
	if dataDir == "" && path != "" {
		dataDir = filepath.Dir(path)
	}
	var inbox *Inbox
	if dataDir != "" {
		inbox = NewInbox(dataDir)
		if err := inbox.Ensure(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	r := &SQLiteRepository{
		db:    db,
		path:  path,
		inbox: inbox,
		cache: cache,
	}
	if err := r.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return r, nil
}

func (r *SQLiteRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		source     TEXT NOT NULL,
		tags       TEXT NOT NULL,
		linked     TEXT NOT NULL,
		meta       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id         TEXT PRIMARY KEY,
		doc_id     TEXT NOT NULL,
		ord        INTEGER NOT NULL,
		text       TEXT NOT NULL,
		char_start INTEGER NOT NULL,
		char_end   INTEGER NOT NULL,
		tokens_est INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id, ord);

	-- pos keeps each posting list in insertion order
	CREATE TABLE IF NOT EXISTS postings (
		term     TEXT NOT NULL,
		pos      INTEGER NOT NULL,
		chunk_id TEXT NOT NULL,
		PRIMARY KEY (term, pos)
	);

	CREATE TABLE IF NOT EXISTS chunk_meta (
		chunk_id TEXT PRIMARY KEY,
		doc_id   TEXT NOT NULL,
		ord      INTEGER NOT NULL,
		title    TEXT NOT NULL,
		source   TEXT NOT NULL,
		tags     TEXT NOT NULL,
		linked   TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Path returns the database path ("" for in-memory).
func (r *SQLiteRepository) Path() string { return r.path }

// Inbox returns the repository's inbox.
func (r *SQLiteRepository) Inbox() *Inbox { return r.inbox }

const documentColumns = `id, title, source, tags, linked, meta, created_at, updated_at`
const chunkColumns = `id, doc_id, ord, text, char_start, char_end, tokens_est, created_at`

// ListDocuments implements Repository.
func (r *SQLiteRepository) ListDocuments(ctx context.Context) ([]Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errClosed
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// SaveDocuments implements Repository.
func (r *SQLiteRepository) SaveDocuments(ctx context.Context, docs []Document) error {
	return r.writeTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
			return fmt.Errorf("clear documents: %w", err)
		}
		return insertDocuments(ctx, tx, docs)
	})
}

// ListChunks implements Repository.
func (r *SQLiteRepository) ListChunks(ctx context.Context) ([]Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errClosed
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	return chunks, rows.Err()
}

// SaveChunks implements Repository.
func (r *SQLiteRepository) SaveChunks(ctx context.Context, chunks []Chunk) error {
	err := r.writeTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
			return fmt.Errorf("clear chunks: %w", err)
		}
		return insertChunks(ctx, tx, chunks)
	})
	// Full replacement may drop chunks the cache still holds.
	r.cache.Purge()
	return err
}

// CommitDocument implements Committer in one transaction.
func (r *SQLiteRepository) CommitDocument(ctx context.Context, doc Document, chunks []Chunk) error {
	return r.writeTx(ctx, func(tx *sql.Tx) error {
		if err := insertChunks(ctx, tx, chunks); err != nil {
			return err
		}
		return insertDocuments(ctx, tx, []Document{doc})
	})
}

// ReadIndex implements Repository.
func (r *SQLiteRepository) ReadIndex(ctx context.Context) (*Index, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errClosed
	}

	return readIndex(ctx, r.db)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readIndex(ctx context.Context, q queryer) (*Index, error) {
	idx := NewIndex()

	rows, err := q.QueryContext(ctx, `SELECT term, chunk_id FROM postings ORDER BY term, pos`)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	for rows.Next() {
		var term, chunkID string
		if err := rows.Scan(&term, &chunkID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		idx.Terms[term] = append(idx.Terms[term], chunkID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = q.QueryContext(ctx, `SELECT chunk_id, doc_id, ord, title, source, tags, linked FROM chunk_meta`)
	if err != nil {
		return nil, fmt.Errorf("query chunk meta: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			chunkID      string
			meta         ChunkMeta
			tags, linked string
		)
		if err := rows.Scan(&chunkID, &meta.DocID, &meta.Ord, &meta.Title, &meta.Source, &tags, &linked); err != nil {
			return nil, fmt.Errorf("scan chunk meta: %w", err)
		}
		if err := decodeJSONColumn(tags, &meta.Tags); err != nil {
			return nil, err
		}
		if err := decodeJSONColumn(linked, &meta.Linked); err != nil {
			return nil, err
		}
		idx.ChunkMeta[chunkID] = meta
	}
	return idx, rows.Err()
}

// WriteIndex implements Repository by replacing both index tables in one
// transaction.
func (r *SQLiteRepository) WriteIndex(ctx context.Context, idx *Index) error {
	return r.writeTx(ctx, func(tx *sql.Tx) error {
		return writeIndex(ctx, tx, idx)
	})
}

// UpdateIndex implements IndexUpdater inside one immediate transaction.
func (r *SQLiteRepository) UpdateIndex(ctx context.Context, fn func(*Index) (*Index, error)) (*Index, error) {
	var next *Index
	err := r.writeTx(ctx, func(tx *sql.Tx) error {
		cur, err := readIndex(ctx, tx)
		if err != nil {
			return err
		}
		if next, err = fn(cur); err != nil {
			return err
		}
		return writeIndex(ctx, tx, next)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// IndexStamp implements IndexStamper with PRAGMA data_version, which
// changes when another connection commits.
func (r *SQLiteRepository) IndexStamp(ctx context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return "", errClosed
	}

	var version int64
	if err := r.db.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&version); err != nil {
		return "", fmt.Errorf("read data version: %w", err)
	}
	return "v" + strconv.FormatInt(version, 10), nil
}

func writeIndex(ctx context.Context, tx *sql.Tx, idx *Index) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM postings`); err != nil {
		return fmt.Errorf("clear postings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_meta`); err != nil {
		return fmt.Errorf("clear chunk meta: %w", err)
	}

	postStmt, err := tx.PrepareContext(ctx, `INSERT INTO postings(term, pos, chunk_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare posting statement: %w", err)
	}
	defer postStmt.Close()

	for term, ids := range idx.Terms {
		for pos, id := range ids {
			if _, err := postStmt.ExecContext(ctx, term, pos, id); err != nil {
				return fmt.Errorf("insert posting %s: %w", term, err)
			}
		}
	}

	metaStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunk_meta(chunk_id, doc_id, ord, title, source, tags, linked) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk meta statement: %w", err)
	}
	defer metaStmt.Close()

	for chunkID, meta := range idx.ChunkMeta {
		tags, err := encodeJSONColumn(nonNil(meta.Tags))
		if err != nil {
			return err
		}
		linked, err := encodeJSONColumn(meta.Linked)
		if err != nil {
			return err
		}
		if _, err := metaStmt.ExecContext(ctx, chunkID, meta.DocID, meta.Ord, meta.Title, meta.Source, tags, linked); err != nil {
			return fmt.Errorf("insert chunk meta %s: %w", chunkID, err)
		}
	}
	return nil
}

// GetChunks implements ChunkGetter. Chunks are immutable once committed,
// so cached entries stay valid until a full SaveChunks.
func (r *SQLiteRepository) GetChunks(ctx context.Context, ids []string) (map[string]Chunk, error) {
	out := make(map[string]Chunk, len(ids))
	var missing []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if c, ok := r.cache.Get(id); ok {
			out[id] = c
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errClosed
	}

	for start := 0; start < len(missing); start += sqliteBatchSize {
		batch := missing[start:min(len(missing), start+sqliteBatchSize)]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id IN (?` + strings.Repeat(",?", len(batch)-1) + `)`

		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query chunks by id: %w", err)
		}
		for rows.Next() {
			c, err := scanChunk(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[c.ID] = *c
			r.cache.Add(c.ID, *c)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// GetDocument implements Getter.
func (r *SQLiteRepository) GetDocument(ctx context.Context, id string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errClosed
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

// GetChunk implements Getter.
func (r *SQLiteRepository) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	got, err := r.GetChunks(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	c, ok := got[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Counts implements Counter.
func (r *SQLiteRepository) Counts(ctx context.Context) (Counts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return Counts{}, errClosed
	}

	var c Counts
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&c.Documents); err != nil {
		return Counts{}, fmt.Errorf("count documents: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&c.Chunks); err != nil {
		return Counts{}, fmt.Errorf("count chunks: %w", err)
	}
	return c, nil
}

// ListInboxFiles implements Repository.
func (r *SQLiteRepository) ListInboxFiles(ctx context.Context) ([]string, error) {
	if r.inbox == nil {
		return nil, nil
	}
	return r.inbox.List(ctx)
}

// ReadInboxFile implements Repository.
func (r *SQLiteRepository) ReadInboxFile(ctx context.Context, name string) (string, error) {
	if r.inbox == nil {
		return "", amerrors.InboxFileError(name, fmt.Errorf("repository has no inbox"))
	}
	return r.inbox.Read(ctx, name)
}

// MoveInboxToClean implements Repository.
func (r *SQLiteRepository) MoveInboxToClean(ctx context.Context, name, cleaned string) (string, error) {
	if r.inbox == nil {
		return "", amerrors.InboxFileError(name, fmt.Errorf("repository has no inbox"))
	}
	return r.inbox.MoveToClean(ctx, name, cleaned)
}

// Close closes the database. Further calls fail.
func (r *SQLiteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}

var errClosed = errors.New("repository is closed")

func (r *SQLiteRepository) writeTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errClosed
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func insertDocuments(ctx context.Context, tx *sql.Tx, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents(`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare document statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		tags, err := encodeJSONColumn(nonNil(doc.Tags))
		if err != nil {
			return err
		}
		linked, err := encodeJSONColumn(doc.Linked)
		if err != nil {
			return err
		}
		meta, err := encodeJSONColumn(doc.Meta)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Title, doc.Source, tags, linked, meta,
			formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt)); err != nil {
			return fmt.Errorf("insert document %s: %w", doc.ID, err)
		}
	}
	return nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks(`+chunkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocID, c.Ord, c.Text, c.CharStart, c.CharEnd,
			c.TokensEst, formatTime(c.CreatedAt)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc                  Document
		tags, linked, meta   string
		createdAt, updatedAt string
	)
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Source, &tags, &linked, &meta, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if err := decodeJSONColumn(tags, &doc.Tags); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(linked, &doc.Linked); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(meta, &doc.Meta); err != nil {
		return nil, err
	}
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return &doc, nil
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var (
		c         Chunk
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.DocID, &c.Ord, &c.Text, &c.CharStart, &c.CharEnd, &c.TokensEst, &createdAt); err != nil {
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func encodeJSONColumn(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode column: %w", err)
	}
	return string(data), nil
}

func decodeJSONColumn(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode column: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
