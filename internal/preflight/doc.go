// Package preflight checks that the host can run amanknow against a data
// directory: write access, free disk space, the file descriptor limit, and
// the inbox backlog.
//
//	checker := preflight.New(preflight.Target{DataDir: dir, InboxDir: inbox})
//	results := checker.RunAll(ctx)
//	if preflight.HasCriticalFailures(results) {
//	    // refuse to continue
//	}
package preflight
