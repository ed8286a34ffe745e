package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanknow/internal/output"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show document, chunk, and term counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			svc, _, err := root.openService()
			if err != nil {
				return err
			}
			defer closeService(svc)

			st, err := svc.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if format == "json" {
				return out.JSON(st)
			}
			out.Stats(*st)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
