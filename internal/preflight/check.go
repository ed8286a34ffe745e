package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical problem.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status as its string form.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target names the directories a Checker inspects.
type Target struct {
	DataDir  string
	InboxDir string
	// BatchLimit is the inbox batch size; a larger backlog is reported.
	BatchLimit int
}

// Checker runs preflight checks against a Target.
type Checker struct {
	target   Target
	minDisk  uint64
	minFiles uint64
}

// Option configures a Checker.
type Option func(*Checker)

// WithMinDiskSpace overrides MinDiskSpaceBytes.
func WithMinDiskSpace(bytes uint64) Option {
	return func(c *Checker) {
		c.minDisk = bytes
	}
}

// WithMinFileDescriptors overrides MinFileDescriptors.
func WithMinFileDescriptors(n uint64) Option {
	return func(c *Checker) {
		c.minFiles = n
	}
}

// New creates a Checker for target.
func New(target Target, opts ...Option) *Checker {
	c := &Checker{
		target:   target,
		minDisk:  MinDiskSpaceBytes,
		minFiles: MinFileDescriptors,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check. The data directory is created if missing so
// later checks have something to inspect.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	checks := []func() CheckResult{
		c.CheckWritePermissions,
		c.CheckDiskSpace,
		c.CheckFileDescriptors,
		c.CheckInbox,
	}
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		if ctx.Err() != nil {
			break
		}
		results = append(results, check())
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "ready", "ready_with_warnings", or "failed".
func SummaryStatus(results []CheckResult) string {
	warned := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			warned = true
		}
	}
	if warned {
		return "ready_with_warnings"
	}
	return "ready"
}

// CheckWritePermissions verifies the data directory accepts new files.
func (c *Checker) CheckWritePermissions() CheckResult {
	result := CheckResult{Name: "write_permissions", Required: true}

	if err := os.MkdirAll(c.target.DataDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", c.target.DataDir, err)
		return result
	}

	f, err := os.CreateTemp(c.target.DataDir, ".amanknow-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = c.target.DataDir
	return result
}

// CheckInbox reports the number of files waiting in the inbox. A missing
// inbox is fine; it is created on first use.
func (c *Checker) CheckInbox() CheckResult {
	result := CheckResult{Name: "inbox", Status: StatusPass}

	entries, err := os.ReadDir(c.target.InboxDir)
	if os.IsNotExist(err) {
		result.Message = "empty (not created yet)"
		return result
	}
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot read %s: %v", c.target.InboxDir, err)
		return result
	}

	pending := 0
	for _, e := range entries {
		if e.Type().IsRegular() && !isHidden(e.Name()) {
			pending++
		}
	}
	result.Message = fmt.Sprintf("%d files pending", pending)
	if c.target.BatchLimit > 0 && pending > c.target.BatchLimit {
		result.Status = StatusWarn
		result.Details = fmt.Sprintf("more than one batch (%d) waiting; run 'amanknow inbox' repeatedly or 'amanknow watch'", c.target.BatchLimit)
	}
	return result
}

func isHidden(name string) bool {
	return filepath.Base(name)[0] == '.'
}
