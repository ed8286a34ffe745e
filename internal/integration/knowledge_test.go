package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanknow/internal/watcher"
	"github.com/Aman-CERP/amanknow/pkg/knowledge"
)

var backends = []string{"sqlite", "json"}

func openService(t *testing.T, backend, dataDir string) *knowledge.Service {
	t.Helper()
	svc, err := knowledge.Open(knowledge.Options{
		Backend:  backend,
		DataDir:  dataDir,
		MaxChars: 120,
		Overlap:  20,
	})
	require.NoError(t, err)
	return svc
}

// TestKnowledge_SurvivesRestart ingests, closes, reopens, and searches.
func TestKnowledge_SurvivesRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			dataDir := t.TempDir()

			// Given: a multi-chunk document and a short one
			svc := openService(t, backend, dataDir)
			long := strings.Repeat("Raft elects a leader by majority vote. ", 12)
			doc, n, err := svc.Ingest(ctx, "Raft notes", "wiki", []string{"consensus"}, long,
				map[string]string{"ticket": "OPS-7"}, nil)
			require.NoError(t, err)
			require.Greater(t, n, 1)
			_, _, err = svc.Ingest(ctx, "Lunch", "", nil, "Leader of the lunch order is Sam.", nil, nil)
			require.NoError(t, err)
			require.NoError(t, svc.Close())

			// When: reopening the data directory
			svc = openService(t, backend, dataDir)
			defer func() { _ = svc.Close() }()

			// Then: search sees both documents, tag filter narrows to one
			hits, err := svc.Search(ctx, "leader majority", 50, "")
			require.NoError(t, err)
			require.NotEmpty(t, hits)
			assert.Equal(t, doc.ID, hits[0].DocID)
			assert.Equal(t, 1.0, hits[0].Score)
			assert.Equal(t, "OPS-7", hits[0].Linked["ticket"])

			tagged, err := svc.Search(ctx, "leader", 50, "consensus")
			require.NoError(t, err)
			assert.Len(t, tagged, n)
			for _, h := range tagged {
				assert.Equal(t, doc.ID, h.DocID)
			}

			// And: the index is consistent and a rebuild reproduces it
			res, err := svc.Check(ctx)
			require.NoError(t, err)
			assert.True(t, res.Consistent())

			stats, err := svc.Stats(ctx)
			require.NoError(t, err)
			docs, chunks, terms, err := svc.RebuildIndex(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, docs)
			assert.Equal(t, stats.Chunks, chunks)
			assert.Equal(t, stats.Terms, terms)
		})
	}
}

// TestKnowledge_WatchedInbox drives the inbox watcher into the service the
// way the watch command does.
func TestKnowledge_WatchedInbox(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			dataDir := t.TempDir()
			inbox := filepath.Join(dataDir, "inbox")
			require.NoError(t, os.MkdirAll(inbox, 0o755))

			svc := openService(t, backend, dataDir)
			defer func() { _ = svc.Close() }()

			w, err := watcher.NewInboxWatcher(inbox, watcher.Options{
				DebounceWindow: 50 * time.Millisecond,
				PollInterval:   50 * time.Millisecond,
				ForcePolling:   true,
			})
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			ingested := make(chan string, 4)
			go func() { _ = w.Start(ctx) }()
			go func() {
				_ = watcher.Drain(ctx, w, func(ctx context.Context, _ []string) error {
					_, results, err := svc.IngestInboxBatch(ctx, 10)
					for _, r := range results {
						if r.OK() {
							ingested <- r.DocID
						}
					}
					return err
				})
			}()
			defer func() { _ = w.Stop() }()

			// Given: the watcher has taken its first snapshot
			time.Sleep(150 * time.Millisecond)

			// When: a file lands in the inbox
			require.NoError(t, os.WriteFile(filepath.Join(inbox, "runbook.txt"),
				[]byte("Restart   the\r\nqueue worker before paging."), 0o644))

			// Then: it is ingested, archived, and searchable
			var docID string
			select {
			case docID = <-ingested:
			case <-ctx.Done():
				t.Fatal("timed out waiting for inbox ingestion")
			}

			doc, err := svc.GetDocument(context.Background(), docID)
			require.NoError(t, err)
			require.NotNil(t, doc)
			assert.Equal(t, "runbook.txt", doc.Title)
			assert.Equal(t, []string{"inbox"}, doc.Tags)

			hits, err := svc.Search(context.Background(), "queue worker", 10, "inbox")
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, docID, hits[0].DocID)

			assert.FileExists(t, filepath.Join(dataDir, "clean", "runbook.txt"))
			assert.NoFileExists(t, filepath.Join(inbox, "runbook.txt"))
		})
	}
}
