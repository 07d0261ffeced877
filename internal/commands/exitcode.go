package commands

import "fmt"

// ExitCodeError carries a specific process exit code out of a command's
// RunE. wait propagates the job's own exit code (or 1 if it exited without
// one) or 124 on timeout (SPEC_FULL.md §6); logs --follow propagates the
// job's exit code the same way.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
