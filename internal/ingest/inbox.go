package ingest

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanknow/internal/chunk"
	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
)

// Inbox batch limits.
const (
	DefaultInboxLimit = 25
	MaxInboxLimit     = 200

	// InboxTag is attached to every document ingested from the inbox.
	InboxTag = "inbox"
)

// FileResult is the outcome for one inbox file.
type FileResult struct {
	Name          string `json:"name"`
	DocID         string `json:"doc_id,omitempty"`
	ChunksCreated int    `json:"chunks_created"`
	ArchivedPath  string `json:"archived_path,omitempty"`
	Err           error  `json:"-"`
}

// OK reports whether the file was ingested.
func (r FileResult) OK() bool { return r.Err == nil }

// BatchResult summarizes an inbox batch.
type BatchResult struct {
	Ingested int          `json:"ingested"`
	Results  []FileResult `json:"results"`
}

// Failed returns the number of files that could not be ingested.
func (b *BatchResult) Failed() int {
	return len(b.Results) - b.Ingested
}

// ClampInboxLimit bounds limit to [0, MaxInboxLimit].
func ClampInboxLimit(limit int) int {
	return max(0, min(limit, MaxInboxLimit))
}

// ProgressFunc is told about each inbox file once it has been processed.
// done counts processed files, including res.
type ProgressFunc func(res FileResult, done, total int)

type inboxFile struct {
	cleaned string
	err     error
}

// IngestInbox ingests up to limit inbox files in filename order. Each file
// is archived to the clean area with its normalized text and then ingested.
// A failing file is recorded in its FileResult and the batch continues.
// Only a failure to list the inbox fails the whole call.
func (p *Pipeline) IngestInbox(ctx context.Context, limit int) (*BatchResult, error) {
	return p.IngestInboxFunc(ctx, limit, nil)
}

// IngestInboxFunc is IngestInbox reporting each file to progress, which
// may be nil.
func (p *Pipeline) IngestInboxFunc(ctx context.Context, limit int, progress ProgressFunc) (*BatchResult, error) {
	names, err := p.repo.ListInboxFiles(ctx)
	if err != nil {
		return nil, amerrors.StorageUnavailable("list inbox", err)
	}
	if n := ClampInboxLimit(limit); len(names) > n {
		names = names[:n]
	}

	files := p.prefetch(ctx, names)

	batch := &BatchResult{Results: make([]FileResult, 0, len(names))}
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		res := p.ingestInboxFile(ctx, name, files[i])
		if res.OK() {
			batch.Ingested++
		} else {
			attrs := append([]any{slog.String("file", name)}, amerrors.LogAttrs(res.Err)...)
			slog.Warn("inbox_file_failed", attrs...)
		}
		batch.Results = append(batch.Results, res)
		if progress != nil {
			progress(res, i+1, len(names))
		}
	}

	slog.Info("inbox_batch_complete",
		slog.Int("files", len(names)),
		slog.Int("ingested", batch.Ingested),
		slog.Int("failed", batch.Failed()))
	return batch, nil
}

// prefetch reads and normalizes names concurrently. Read errors are kept
// per file; the group itself never fails.
func (p *Pipeline) prefetch(ctx context.Context, names []string) []inboxFile {
	files := make([]inboxFile, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, name := range names {
		g.Go(func() error {
			raw, err := p.repo.ReadInboxFile(gctx, name)
			if err != nil {
				files[i].err = err
				return nil
			}
			files[i].cleaned = chunk.Normalize(raw)
			return nil
		})
	}
	_ = g.Wait()
	return files
}

func (p *Pipeline) ingestInboxFile(ctx context.Context, name string, f inboxFile) FileResult {
	res := FileResult{Name: name}
	if f.err != nil {
		res.Err = inboxError(name, f.err)
		return res
	}

	archived, err := p.repo.MoveInboxToClean(ctx, name, f.cleaned)
	if err != nil {
		res.Err = inboxError(name, err)
		return res
	}
	res.ArchivedPath = archived

	out, err := p.Ingest(ctx, Request{
		Title:   name,
		Source:  "inbox:" + name,
		Tags:    []string{InboxTag},
		Content: f.cleaned,
		Meta:    map[string]any{"filename": name},
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.DocID = out.Document.ID
	res.ChunksCreated = out.ChunksCreated
	return res
}

// inboxError tags err with the file name unless it is already structured.
func inboxError(name string, err error) error {
	if _, ok := amerrors.As(err); ok {
		return err
	}
	return amerrors.InboxFileError(name, err)
}
