package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

const sampleLog = `{"time":"2026-01-02T10:00:00.000Z","level":"DEBUG","msg":"index_updated","doc_id":"know_1"}
{"time":"2026-01-02T10:00:01.000Z","level":"INFO","msg":"inbox_batch_complete","files":2}
not json at all
{"time":"2026-01-02T10:00:02.500Z","level":"WARN","msg":"inbox_file_failed","file":"b.txt","error_code":"ERR_203_INBOX_FILE"}
{"time":"2026-01-02T10:00:03.000Z","level":"ERROR","msg":"search_failed"}
`

func writeSampleLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "amanknow.log")
	if err := os.WriteFile(path, []byte(sampleLog), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestViewer_Tail_LastLines(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(writeSampleLog(t), 2)
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Msg != "inbox_file_failed" || entries[1].Msg != "search_failed" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestViewer_Tail_LevelFilter(t *testing.T) {
	v := NewViewer(ViewerConfig{Level: "warn", NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(writeSampleLog(t), 50)
	if err != nil {
		t.Fatal(err)
	}

	// the non-JSON line has no level and counts as info
	if len(entries) != 2 {
		t.Fatalf("expected warn and error only, got %d", len(entries))
	}
}

func TestViewer_Tail_PatternFilter(t *testing.T) {
	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`inbox_`), NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(writeSampleLog(t), 50)
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 inbox entries, got %d", len(entries))
	}
}

func TestViewer_Tail_MissingFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})

	if _, err := v.Tail(filepath.Join(t.TempDir(), "none.log"), 10); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestViewer_Format(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	e := v.parseLine(`{"time":"2026-01-02T10:00:02.500Z","level":"WARN","msg":"inbox_file_failed","z":1,"file":"b.txt"}`)

	got := v.Format(e)

	want := "10:00:02.500 WARN  inbox_file_failed file=b.txt z=1"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
	if raw := v.Format(v.parseLine("plain text")); raw != "plain text" {
		t.Errorf("non-JSON line should print raw, got %q", raw)
	}
}

func TestViewer_Print(t *testing.T) {
	var buf bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)

	entries, err := v.Tail(writeSampleLog(t), 50)
	if err != nil {
		t.Fatal(err)
	}
	v.Print(entries)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[2] != "not json at all" {
		t.Errorf("expected raw line preserved, got %q", lines[2])
	}
}

func TestViewer_Follow_SeesAppendedLines(t *testing.T) {
	path := writeSampleLog(t)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var (
		mu   sync.Mutex
		seen []string
	)
	done := make(chan error, 1)
	go func() {
		done <- v.Follow(ctx, path, func(e Entry) {
			mu.Lock()
			seen = append(seen, e.Msg)
			n := len(seen)
			mu.Unlock()
			if n == 1 {
				cancel()
			}
		})
	}()

	// give Follow time to seek to the end before appending
	time.Sleep(3 * followInterval)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(`{"time":"2026-01-02T10:00:04Z","level":"INFO","msg":"appended"}` + "\n")
	_ = f.Close()

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "appended" {
		t.Errorf("expected only the appended entry, got %v", seen)
	}
}
