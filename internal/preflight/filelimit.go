package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the file descriptor limit below which watch and
// inbox prefetch may run out of handles.
const MinFileDescriptors = 256

// CheckFileDescriptors checks the soft file descriptor limit. A low limit
// is a warning only.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{
		Name: "file_descriptors",
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, c.minFiles)
	if rLimit.Cur < c.minFiles {
		result.Status = StatusWarn
		result.Details = "Run 'ulimit -n 1024' to increase the limit"
		return result
	}
	result.Status = StatusPass
	return result
}
