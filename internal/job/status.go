package job

import (
	"strings"

	"github.com/joshuarubin/job/internal/joberrors"
)

// Status is the enum representing the lifecycle state of a job.
type Status int

const (
	StatusUnspecified Status = iota
	StatusPending              // submitted, not yet spawned
	StatusRunning              // spawned, process group alive
	StatusCompleted            // exited zero on its own
	StatusFailed               // exited non-zero on its own
	StatusStopped              // terminated by Stop or timeout escalation
	StatusInterrupted          // terminated by daemon shutdown or orphan recovery
)

var statusNames = [...]string{
	StatusUnspecified: "unspecified",
	StatusPending:     "pending",
	StatusRunning:     "running",
	StatusCompleted:   "completed",
	StatusFailed:      "failed",
	StatusStopped:     "stopped",
	StatusInterrupted: "interrupted",
}

// String returns the lower-case wire/display form of the status.
func (s Status) String() string {
	if int(s) < 0 || int(s) >= len(statusNames) {
		return "unspecified"
	}
	return statusNames[s]
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Status) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	st, err := StatusFromString(str)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// IsTerminal reports whether the status is one from which a job never
// transitions away.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped, StatusInterrupted:
		return true
	default:
		return false
	}
}

// StatusFromString parses the wire/display form of a status, case
// insensitively.
func StatusFromString(s string) (Status, error) {
	lower := strings.ToLower(strings.TrimSpace(s))
	for st, name := range statusNames {
		if name == lower {
			return Status(st), nil
		}
	}
	return StatusUnspecified, joberrors.ErrInvalidStatus
}
