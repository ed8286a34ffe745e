package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/logging"
	"github.com/Aman-CERP/amanknow/internal/ui"
)

// logsOptions holds CLI flags for logs.
type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	file    string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View the amanknow log file",
		Long: `Show recent entries from the log written by 'amanknow serve' and
--debug runs. Use -f to follow new entries until interrupted.`,
		Example: `  amanknow logs -n 100
  amanknow logs -f --level warn
  amanknow logs --filter inbox_`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only lines matching this regular expression")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file (default "+logging.DefaultLogPath()+")")

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	path, err := logging.FindLogFile(opts.file)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeNotFound, err.Error(), nil)
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		if pattern, err = regexp.Compile(opts.filter); err != nil {
			return amerrors.ValidationError("invalid --filter pattern", err)
		}
	}

	out := cmd.OutOrStdout()
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: opts.noColor || ui.DetectNoColor() || !ui.IsTTY(out),
	}, out)

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Log file: %s\n---\n", path)

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}
	return viewer.Follow(cmd.Context(), path, func(e logging.Entry) {
		_, _ = fmt.Fprintln(out, viewer.Format(e))
	})
}
