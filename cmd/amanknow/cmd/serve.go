package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanknow/internal/logging"
	"github.com/Aman-CERP/amanknow/internal/mcp"
	"github.com/Aman-CERP/amanknow/pkg/version"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the Model Context Protocol server on stdin/stdout.

Stdout carries JSON-RPC only, so logs go to ` + logging.DefaultLogPath() + `.
Tools: search, get_document, get_chunk, ingest, ingest_inbox,
rebuild_index, knowledge_stats.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{selfLoggingAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}

			level := cfg.Server.LogLevel
			if root.debug {
				level = "debug"
			}
			cleanup, err := logging.SetupDefault(logging.ServeConfig(level))
			if err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}
			defer cleanup()

			slog.Info("serve_starting",
				slog.String("version", version.Version),
				slog.String("data_dir", cfg.Storage.DataDir),
				slog.String("backend", cfg.Storage.Backend))

			svc, _, err := root.openService()
			if err != nil {
				return err
			}
			defer closeService(svc)

			server, err := mcp.NewServer(svc)
			if err != nil {
				return err
			}
			return server.Serve(cmd.Context(), cfg.Server.Transport)
		},
	}
	return cmd
}
