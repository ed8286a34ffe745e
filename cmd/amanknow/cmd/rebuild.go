package cmd

import (
	"time"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/index"
	"github.com/Aman-CERP/amanknow/internal/output"
	"github.com/Aman-CERP/amanknow/internal/ui"
)

func newRebuildCmd(root *rootOptions) *cobra.Command {
	var format string
	var plain bool

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the search index from stored chunks",
		Long: `Discard the index and rebuild it from every stored chunk whose
document exists. Use after 'amanknow check' reports issues or after
editing the data directory by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			svc, _, err := root.openService()
			if err != nil {
				return err
			}
			defer closeService(svc)

			if format == "json" {
				docs, chunks, terms, err := svc.RebuildIndex(cmd.Context())
				if err != nil {
					return err
				}
				return output.New(cmd.OutOrStdout()).JSON(index.RebuildStats{
					DocsIndexed:   docs,
					ChunksIndexed: chunks,
					Terms:         terms,
				})
			}

			renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
				ui.WithForcePlain(plain),
				ui.WithTitle("amanknow rebuild")))
			if err := renderer.Start(cmd.Context()); err != nil {
				return err
			}
			defer func() { _ = renderer.Stop() }()

			start := time.Now()
			renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Message: "rebuilding index"})
			docs, chunks, terms, err := svc.RebuildIndex(cmd.Context())
			if err != nil {
				renderer.AddError(ui.ErrorEvent{Err: err})
				return err
			}
			renderer.Complete(ui.CompletionStats{
				Documents: docs,
				Chunks:    chunks,
				Terms:     terms,
				Duration:  time.Since(start),
			})
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&plain, "plain", false, "Plain progress output")
	return cmd
}

// checkIssue is one inconsistency in check's JSON output.
type checkIssue struct {
	Type    string `json:"type"`
	ChunkID string `json:"chunk_id"`
	DocID   string `json:"doc_id,omitempty"`
}

// checkResult is the JSON output of check.
type checkResult struct {
	Checked    int          `json:"checked"`
	Consistent bool         `json:"consistent"`
	Issues     []checkIssue `json:"issues"`
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the index against stored chunks",
		Long: `Compare the index with stored documents and chunks and report
orphan chunks, orphan index entries, and chunks missing from the index.
Exits non-zero when any issue is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			svc, _, err := root.openService()
			if err != nil {
				return err
			}
			defer closeService(svc)

			res, err := svc.Check(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if format == "json" {
				jr := checkResult{
					Checked:    res.Checked,
					Consistent: res.Consistent(),
					Issues:     make([]checkIssue, 0, len(res.Inconsistencies)),
				}
				for _, inc := range res.Inconsistencies {
					jr.Issues = append(jr.Issues, checkIssue{Type: inc.Type.String(), ChunkID: inc.ChunkID, DocID: inc.DocID})
				}
				if err := out.JSON(jr); err != nil {
					return err
				}
			} else {
				out.Check(res)
			}

			if !res.Consistent() {
				return amerrors.New(amerrors.ErrCodeIndexUnavailable, "index is inconsistent", nil).
					WithSuggestion("Run 'amanknow rebuild'.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
