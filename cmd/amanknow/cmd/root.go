// Package cmd provides the CLI commands for amanknow.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanknow/internal/config"
	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/logging"
	"github.com/Aman-CERP/amanknow/internal/profiling"
	"github.com/Aman-CERP/amanknow/pkg/knowledge"
	"github.com/Aman-CERP/amanknow/pkg/version"
)

// selfLoggingAnnotation marks commands that configure logging themselves.
const selfLoggingAnnotation = "amanknow/self-logging"

// rootOptions holds persistent flags and per-invocation state.
type rootOptions struct {
	dataDir string
	backend string
	debug   bool
	profile profiling.Options

	cfg            *config.Config
	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the amanknow CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "amanknow",
		Short: "Local knowledge store with keyword search",
		Long: `amanknow stores text documents, splits them into overlapping chunks,
and answers keyword queries from an inverted index.

Documents arrive through 'amanknow ingest', through files dropped into
the inbox directory, or from AI assistants over MCP ('amanknow serve').`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("amanknow version {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.dataDir, "data-dir", "", "Data directory (overrides storage.data_dir)")
	flags.StringVar(&opts.backend, "backend", "", "Storage backend: sqlite, json (overrides storage.backend)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging to "+logging.DefaultLogPath())
	flags.StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	flags.StringVar(&opts.profile.Heap, "profile-mem", "", "Write memory profile to file")
	flags.StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = opts.start
	cmd.PersistentPostRunE = opts.stop

	cmd.AddCommand(newIngestCmd(opts))
	cmd.AddCommand(newInboxCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newGetCmd(opts))
	cmd.AddCommand(newRebuildCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command, cancelling on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, err := NewRootCmd().ExecuteContextC(ctx)
	if err != nil {
		printError(os.Stderr, cmd, err)
	}
	return err
}

// printError writes err in the form the failed command asked for: JSON
// under --format json, with its cause under --debug, concise otherwise.
func printError(w io.Writer, cmd *cobra.Command, err error) {
	if f := cmd.Flags().Lookup("format"); f != nil && f.Value.String() == "json" {
		if data, jerr := amerrors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(w, string(data))
			return
		}
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		_, _ = fmt.Fprintln(w, amerrors.FormatForUser(err, true))
		return
	}
	if _, ok := amerrors.As(err); ok {
		_, _ = fmt.Fprint(w, amerrors.FormatForCLI(err))
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}

// start sets up logging and profiling for the invoked command.
func (o *rootOptions) start(cmd *cobra.Command, _ []string) error {
	if _, self := cmd.Annotations[selfLoggingAnnotation]; !self {
		logCfg := logging.DefaultConfig()
		logCfg.Level = "warn"
		if o.debug {
			logCfg = logging.DebugConfig()
		}
		cleanup, err := logging.SetupDefault(logCfg)
		if err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
		o.loggingCleanup = cleanup
	}

	if o.profile.Enabled() {
		session, err := profiling.Start(o.profile)
		if err != nil {
			return err
		}
		o.profiler = session
	}
	return nil
}

// stop flushes profiles and closes the log file.
func (o *rootOptions) stop(_ *cobra.Command, _ []string) error {
	err := o.profiler.Stop()
	o.profiler = nil

	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
	return err
}

// config loads the effective configuration once per invocation, with
// --data-dir and --backend applied last.
func (o *rootOptions) config() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(wd)
	if err != nil {
		return nil, err
	}

	if o.dataDir != "" {
		abs, err := filepath.Abs(o.dataDir)
		if err != nil {
			return nil, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.Storage.DataDir = abs
	}
	if o.backend != "" {
		cfg.Storage.Backend = o.backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o.cfg = cfg
	return cfg, nil
}

// openService opens the knowledge service for the effective configuration.
func (o *rootOptions) openService() (*knowledge.Service, *config.Config, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	svc, err := knowledge.Open(knowledge.OptionsFromConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("service_opened",
		slog.String("backend", cfg.Storage.Backend),
		slog.String("data_dir", cfg.Storage.DataDir))
	return svc, cfg, nil
}

// closeService closes svc, logging any error.
func closeService(svc *knowledge.Service) {
	if err := svc.Close(); err != nil {
		slog.Warn("service_close_failed", slog.String("error", err.Error()))
	}
}

// validateFormat rejects output formats other than text and json.
func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return amerrors.ValidationError(fmt.Sprintf("unknown format %q (supported: text, json)", format), nil)
	}
}
