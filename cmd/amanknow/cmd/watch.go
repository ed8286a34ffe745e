package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanknow/internal/ingest"
	"github.com/Aman-CERP/amanknow/internal/output"
	"github.com/Aman-CERP/amanknow/internal/watcher"
	"github.com/Aman-CERP/amanknow/pkg/knowledge"
)

// watchOptions holds CLI flags for watch.
type watchOptions struct {
	limit int
	poll  bool
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ingest inbox files as they arrive",
		Long: `Ingest pending inbox files, then watch the inbox directory and
ingest new files after they settle. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, root, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", ingest.DefaultInboxLimit, "Maximum number of files per batch (max 200)")
	cmd.Flags().BoolVar(&opts.poll, "poll", false, "Poll the inbox instead of using filesystem events")

	return cmd
}

func runWatch(cmd *cobra.Command, root *rootOptions, opts watchOptions) error {
	svc, cfg, err := root.openService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	limit := opts.limit
	if !cmd.Flags().Changed("limit") {
		limit = cfg.Inbox.BatchLimit
	}
	debounce, err := cfg.WatchDebounce()
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	ctx := cmd.Context()

	if err := ingestBatch(ctx, svc, out, limit); err != nil {
		return err
	}

	w, err := watcher.NewInboxWatcher(cfg.InboxDir(), watcher.Options{
		DebounceWindow: debounce,
		ForcePolling:   opts.poll,
	})
	if err != nil {
		return err
	}
	out.Statusf("👀", "Watching %s (%s)", w.Dir(), w.Mode())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Start(gctx)
	})
	g.Go(func() error {
		defer func() { _ = w.Stop() }()
		return watcher.Drain(gctx, w, func(ctx context.Context, arrived []string) error {
			slog.Debug("inbox_arrivals", slog.Any("files", arrived))
			return ingestBatch(ctx, svc, out, limit)
		})
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if dropped := w.DroppedBatches(); dropped > 0 {
		out.Warningf("%d event batches dropped; run 'amanknow inbox' to catch up", dropped)
	}
	return err
}

// ingestBatch runs one inbox batch and prints a line per file.
func ingestBatch(ctx context.Context, svc *knowledge.Service, out *output.Writer, limit int) error {
	_, results, err := svc.IngestInboxBatch(ctx, limit)
	for _, r := range results {
		if r.OK() {
			out.Successf("%s -> %s (%d chunks)", r.Name, r.DocID, r.ChunksCreated)
		} else {
			out.Errorf("%s: %v", r.Name, r.Err)
		}
	}
	return err
}
