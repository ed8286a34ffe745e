package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanknow/internal/output"
	"github.com/Aman-CERP/amanknow/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	tag    string
	format string
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored knowledge",
		Long: `Search stored chunks by keyword.

Each hit is scored by the fraction of distinct query terms it contains.
Ties keep index order.`,
		Example: `  amanknow search "quick fox"
  amanknow search deploy checklist --tag ops --limit 5
  amanknow search "error budget" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, root, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", search.DefaultLimit, "Maximum number of results (max 50)")
	cmd.Flags().StringVar(&opts.tag, "tag", "", "Only return chunks of documents with this tag")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, root *rootOptions, query string, opts searchOptions) error {
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
		limit = cfg.Search.DefaultLimit
	}

	hits, err := svc.Search(cmd.Context(), query, limit, strings.TrimSpace(opts.tag))
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		if hits == nil {
			hits = []search.Hit{}
		}
		return out.JSON(hits)
	}
	out.Hits(query, hits)
	return nil
}
