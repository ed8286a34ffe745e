package cmd

import (
	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/output"
)

func newGetCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show a stored document or chunk",
		Example: `  amanknow get document know_1a2b3c4d5e6f
  amanknow get chunk chk_1a2b3c4d5e6f7a --format json`,
	}

	cmd.AddCommand(newGetDocumentCmd(root))
	cmd.AddCommand(newGetChunkCmd(root))
	return cmd
}

func newGetDocumentCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "document <id>",
		Aliases: []string{"doc"},
		Short:   "Show a document",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			svc, _, err := root.openService()
			if err != nil {
				return err
			}
			defer closeService(svc)

			doc, err := svc.GetDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if doc == nil {
				return amerrors.NotFound("document", args[0])
			}

			out := output.New(cmd.OutOrStdout())
			if format == "json" {
				return out.JSON(doc)
			}
			out.Document(doc)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func newGetChunkCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "chunk <id>",
		Short: "Show a chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			svc, _, err := root.openService()
			if err != nil {
				return err
			}
			defer closeService(svc)

			chunk, err := svc.GetChunk(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if chunk == nil {
				return amerrors.NotFound("chunk", args[0])
			}

			out := output.New(cmd.OutOrStdout())
			if format == "json" {
				return out.JSON(chunk)
			}
			out.Chunk(chunk)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
