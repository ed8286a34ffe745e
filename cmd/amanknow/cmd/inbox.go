package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanknow/internal/ingest"
	"github.com/Aman-CERP/amanknow/internal/output"
	"github.com/Aman-CERP/amanknow/internal/ui"
)

// inboxOptions holds CLI flags for inbox.
type inboxOptions struct {
	limit  int
	plain  bool
	format string
}

// inboxResult is the JSON output of inbox.
type inboxResult struct {
	Ingested int               `json:"ingested"`
	Files    []inboxFileResult `json:"files"`
}

type inboxFileResult struct {
	ingest.FileResult
	Error string `json:"error,omitempty"`
}

func newInboxCmd(root *rootOptions) *cobra.Command {
	var opts inboxOptions

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Ingest pending files from the inbox directory",
		Long: `Ingest files from <data-dir>/inbox in name order.

Each file is normalized, archived to <data-dir>/clean, and stored as a
document tagged "inbox". A failing file is reported and left in place;
the rest of the batch continues.`,
		Example: `  amanknow inbox
  amanknow inbox --limit 100 --plain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInbox(cmd, root, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", ingest.DefaultInboxLimit, "Maximum number of files to ingest (max 200)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain progress output")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runInbox(cmd *cobra.Command, root *rootOptions, opts inboxOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}

	svc, cfg, err := root.openService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	limit := opts.limit
	if !cmd.Flags().Changed("limit") {
		limit = cfg.Inbox.BatchLimit
	}

	if opts.format == "json" {
		ingested, results, err := svc.IngestInboxBatch(cmd.Context(), limit)
		if err != nil && results == nil {
			return err
		}
		res := inboxResult{Ingested: ingested, Files: make([]inboxFileResult, 0, len(results))}
		for _, r := range results {
			fr := inboxFileResult{FileResult: r}
			if r.Err != nil {
				fr.Error = r.Err.Error()
			}
			res.Files = append(res.Files, fr)
		}
		return output.New(cmd.OutOrStdout()).JSON(res)
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithTitle("amanknow inbox")))
	if err := renderer.Start(cmd.Context()); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	start := time.Now()
	chunks := 0
	ingested, results, err := svc.IngestInboxBatchFunc(cmd.Context(), limit, func(res ingest.FileResult, done, total int) {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageIngesting,
			Current:     done,
			Total:       total,
			CurrentFile: res.Name,
		})
		if !res.OK() {
			renderer.AddError(ui.ErrorEvent{File: res.Name, Err: res.Err})
			return
		}
		chunks += res.ChunksCreated
	})
	if err != nil && results == nil {
		return err
	}

	renderer.Complete(ui.CompletionStats{
		Files:     len(results),
		Documents: ingested,
		Chunks:    chunks,
		Errors:    len(results) - ingested,
		Duration:  time.Since(start),
	})
	return err
}
