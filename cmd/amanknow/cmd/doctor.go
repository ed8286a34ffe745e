package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/output"
	"github.com/Aman-CERP/amanknow/internal/preflight"
)

// doctorResult is the JSON output of doctor.
type doctorResult struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func newDoctorCmd(root *rootOptions) *cobra.Command {
	var (
		format  string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the data directory and index for problems",
		Long: `Run diagnostics against the configured data directory.

Checks:
  - Write permissions on the data directory
  - Free disk space (100 MB minimum)
  - File descriptor limit
  - Inbox backlog
  - Storage backend and index consistency

Exits non-zero when a required check fails.`,
		Example: `  amanknow doctor
  amanknow doctor --verbose
  amanknow doctor --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, root, format, verbose)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for each check")
	return cmd
}

func runDoctor(cmd *cobra.Command, root *rootOptions, format string, verbose bool) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	cfg, err := root.config()
	if err != nil {
		return err
	}

	checker := preflight.New(preflight.Target{
		DataDir:    cfg.Storage.DataDir,
		InboxDir:   cfg.InboxDir(),
		BatchLimit: cfg.Inbox.BatchLimit,
	})
	results := checker.RunAll(cmd.Context())
	if !preflight.HasCriticalFailures(results) {
		results = append(results, indexCheck(cmd, root))
	}

	out := output.New(cmd.OutOrStdout())
	status := preflight.SummaryStatus(results)
	if format == "json" {
		if err := out.JSON(doctorResult{Status: status, Checks: results}); err != nil {
			return err
		}
	} else {
		printDoctor(out, results, status, verbose)
	}

	if preflight.HasCriticalFailures(results) {
		return amerrors.New(amerrors.ErrCodeStorageUnavailable, "system check failed", nil).
			WithSuggestion("Fix the failed checks above, or choose another --data-dir.")
	}
	return nil
}

// indexCheck opens the configured backend and verifies the index.
func indexCheck(cmd *cobra.Command, root *rootOptions) preflight.CheckResult {
	result := preflight.CheckResult{Name: "index", Required: true}

	svc, cfg, err := root.openService()
	if err != nil {
		result.Status = preflight.StatusFail
		result.Message = err.Error()
		return result
	}
	defer closeService(svc)

	res, err := svc.Check(cmd.Context())
	if err != nil {
		result.Status = preflight.StatusFail
		result.Message = err.Error()
		return result
	}

	if res.Consistent() {
		result.Status = preflight.StatusPass
		result.Message = fmt.Sprintf("%s backend, %d chunks consistent", cfg.Storage.Backend, res.Checked)
		return result
	}
	result.Status = preflight.StatusWarn
	result.Message = fmt.Sprintf("%d issues in %d chunks", len(res.Inconsistencies), res.Checked)
	result.Details = "Run 'amanknow rebuild' to repair"
	return result
}

func printDoctor(out *output.Writer, results []preflight.CheckResult, status string, verbose bool) {
	for _, r := range results {
		line := fmt.Sprintf("%s: %s", r.Name, r.Message)
		switch {
		case r.Status == preflight.StatusPass:
			out.Success(line)
		case r.IsCritical():
			out.Error(line)
		default:
			out.Warning(line)
		}
		if r.Details != "" && (verbose || r.Status != preflight.StatusPass) {
			out.Status("", "  "+r.Details)
		}
	}
	out.Newline()
	out.Statusf("", "Status: %s", strings.ToUpper(status))
}
