//go:build !unix

package supervisor

import (
	"os"
	"syscall"

	"github.com/joshuarubin/job/internal/joberrors"
)

// sysProcAttr is a no-op on non-Unix hosts: there is no process-group
// concept to set up.
func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

// killProcessGroup falls back to signalling only the direct child process,
// per SPEC_FULL.md §4.4.4's non-Unix fallback.
func killProcessGroup(pid int, sig syscall.Signal) error {
	if pid == 0 {
		return joberrors.ErrRefusedPidZero
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}
