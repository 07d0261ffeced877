// Package paths computes the on-disk layout of a user's job directory. It is
// a pure function of the home directory; the only I/O it performs is the
// directory creation in EnsureDirs.
package paths

import (
	"os"
	"path/filepath"

	"github.com/joshuarubin/job/internal/job"
)

const (
	rootDirName    = ".job"
	dbFileName     = "job.db"
	logsDirName    = "logs"
	socketFileName = "daemon.sock"
	pidFileName    = "daemon.pid"
)

// Layout holds the resolved filesystem paths for one user's job root.
type Layout struct {
	Root string
}

// New resolves a Layout rooted at <home>/.job. If home is empty,
// os.UserHomeDir is consulted.
func New(home string) (Layout, error) {
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return Layout{}, err
		}
	}
	return Layout{Root: filepath.Join(home, rootDirName)}, nil
}

// DB returns the path to the store file.
func (l Layout) DB() string {
	return filepath.Join(l.Root, dbFileName)
}

// LogsDir returns the path to the directory holding per-job log files.
func (l Layout) LogsDir() string {
	return filepath.Join(l.Root, logsDirName)
}

// LogFile returns the path to the combined stdout/stderr capture file for a
// given job id.
func (l Layout) LogFile(id job.ID) string {
	return filepath.Join(l.LogsDir(), id.String()+".log")
}

// Socket returns the path to the Unix-domain listener.
func (l Layout) Socket() string {
	return filepath.Join(l.Root, socketFileName)
}

// PidFile returns the path to the daemon's pid file.
func (l Layout) PidFile() string {
	return filepath.Join(l.Root, pidFileName)
}

// EnsureDirs creates the root and logs directories if they do not already
// exist. It is idempotent.
func (l Layout) EnsureDirs() error {
	if err := os.MkdirAll(l.Root, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(l.LogsDir(), 0o755)
}
