package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
)

// Inbox is a drop directory of text files awaiting ingestion. Ingested
// files are archived, normalized, under the clean directory.
type Inbox struct {
	dir      string
	cleanDir string
}

// NewInbox returns an inbox rooted at dataDir/inbox archiving to dataDir/clean.
func NewInbox(dataDir string) *Inbox {
	return &Inbox{
		dir:      filepath.Join(dataDir, "inbox"),
		cleanDir: filepath.Join(dataDir, "clean"),
	}
}

// Dir returns the inbox directory.
func (b *Inbox) Dir() string { return b.dir }

// CleanDir returns the archive directory.
func (b *Inbox) CleanDir() string { return b.cleanDir }

// Ensure creates both directories.
func (b *Inbox) Ensure() error {
	for _, dir := range []string{b.dir, b.cleanDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// List returns regular, non-hidden file names in the inbox, sorted.
// A missing inbox directory is empty.
func (b *Inbox) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list inbox: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the content of the named inbox file.
func (b *Inbox) Read(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := b.pathFor(b.dir, name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", amerrors.InboxFileError(name, err)
	}
	return string(data), nil
}

// MoveToClean writes cleaned to the archive under name and removes the
// inbox original. The archive write completes before the removal.
func (b *Inbox) MoveToClean(ctx context.Context, name, cleaned string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := b.pathFor(b.dir, name)
	if err != nil {
		return "", err
	}
	dst, err := b.pathFor(b.cleanDir, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.cleanDir, 0o755); err != nil {
		return "", amerrors.InboxFileError(name, err)
	}
	if err := writeFileAtomic(dst, []byte(cleaned)); err != nil {
		return "", amerrors.InboxFileError(name, err)
	}
	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		return "", amerrors.InboxFileError(name, err)
	}
	return dst, nil
}

// pathFor joins dir and name, rejecting names that would escape dir.
func (b *Inbox) pathFor(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", amerrors.ValidationError(fmt.Sprintf("invalid inbox file name %q", name), nil)
	}
	return filepath.Join(dir, name), nil
}

// writeFileAtomic writes data to a temp file beside path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
