//go:build unix

package supervisor

import (
	"syscall"

	"github.com/joshuarubin/job/internal/joberrors"
)

// sysProcAttr places the spawned shell in its own process group, with the
// shell as group leader (pgid == pid). Descendants forked by the shell
// inherit the group, which is what makes killProcessGroup below able to
// signal the whole tree atomically. This is the one property SPEC_FULL.md
// §9 calls out as mandatory: losing it (e.g. spawning without
// setsid/setpgid) is non-compliant.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup signals the entire process group led by pid. A pid of 0
// is refused outright: syscall.Kill(0, sig) would signal the caller's own
// group, which is the daemon itself (B4).
func killProcessGroup(pid int, sig syscall.Signal) error {
	if pid == 0 {
		return joberrors.ErrRefusedPidZero
	}
	return syscall.Kill(-pid, sig)
}
