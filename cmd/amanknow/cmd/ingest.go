package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/output"
	"github.com/Aman-CERP/amanknow/internal/store"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	title  string
	source string
	text   string
	tags   []string
	links  map[string]string
	meta   map[string]string
	format string
}

// ingestResult is the JSON output of ingest.
type ingestResult struct {
	Document      *store.Document `json:"document"`
	ChunksCreated int             `json:"chunks_created"`
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [file|-]",
		Short: "Store and index a text document",
		Long: `Store a document and index it immediately.

Content comes from --text, a file argument, or stdin ("-" or no argument).
The title defaults to the file name; reading stdin requires --title.`,
		Example: `  amanknow ingest notes.md --tag work
  echo "the quick brown fox" | amanknow ingest --title Fox
  amanknow ingest --title "Meeting" --text "..." --link ticket=T-42 --meta author=sam`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, root, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.title, "title", "", "Document title")
	cmd.Flags().StringVar(&opts.source, "source", "", "Document source (default: file:<path>, or manual)")
	cmd.Flags().StringVar(&opts.text, "text", "", "Content to ingest instead of a file or stdin")
	cmd.Flags().StringSliceVarP(&opts.tags, "tag", "t", nil, "Tag (repeatable)")
	cmd.Flags().StringToStringVar(&opts.links, "link", nil, "Linked entity as key=value (repeatable)")
	cmd.Flags().StringToStringVar(&opts.meta, "meta", nil, "Metadata as key=value (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runIngest(cmd *cobra.Command, root *rootOptions, args []string, opts ingestOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}

	content, title, source, err := readIngestInput(cmd, args, opts)
	if err != nil {
		return err
	}

	svc, _, err := root.openService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	var meta map[string]any
	if len(opts.meta) > 0 {
		meta = make(map[string]any, len(opts.meta))
		for k, v := range opts.meta {
			meta[k] = v
		}
	}

	doc, n, err := svc.Ingest(cmd.Context(), title, source, opts.tags, content, opts.links, meta)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return out.JSON(ingestResult{Document: doc, ChunksCreated: n})
	}
	out.Successf("Ingested %s %q (%d chunks)", doc.ID, doc.Title, n)
	return nil
}

// readIngestInput resolves the content, title, and source for ingest.
func readIngestInput(cmd *cobra.Command, args []string, opts ingestOptions) (content, title, source string, err error) {
	title, source = opts.title, opts.source

	switch {
	case cmd.Flags().Changed("text"):
		content = opts.text
	case len(args) == 0 || args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", "", fmt.Errorf("read stdin: %w", err)
		}
		content = string(data)
	default:
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return "", "", "", amerrors.ValidationError("cannot read "+path, err)
		}
		content = string(data)
		if title == "" {
			title = filepath.Base(path)
		}
		if source == "" {
			source = "file:" + path
		}
	}

	if title == "" {
		return "", "", "", amerrors.ValidationError("--title is required unless ingesting a file", nil)
	}
	return content, title, source, nil
}
