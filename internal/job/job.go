// Package job defines the durable Job record and its status enum. The Job
// Store (internal/jobstore) owns instances of this type; the Supervisor
// (internal/supervisor) associates a separate, runtime-only handle with a
// job's id while it is spawned. See Job's doc comment for the ownership
// split.
package job

import (
	"encoding/json"
	"time"
)

// Job is the durable record of a user-submitted command and its lifecycle.
// A Job never carries a live process handle; that association is owned
// exclusively by the Supervisor for as long as the job is running.
type Job struct {
	ID             ID              `json:"id"`
	Name           *string         `json:"name,omitempty"`
	Command        string          `json:"command"`
	Status         Status          `json:"status"`
	Project        string          `json:"project"`
	Cwd            string          `json:"cwd"`
	Pid            *int            `json:"pid,omitempty"`
	ExitCode       *int            `json:"exit_code,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	TimeoutSecs    *int            `json:"timeout_secs,omitempty"`
	Context        json.RawMessage `json:"context,omitempty"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
}

// New builds a fresh pending Job with a newly allocated id. created_at is
// supplied by the caller (the supervisor stamps it from its own clock) so
// that store and supervisor agree on a single wall-clock source for the
// data model's ordering invariant (created_at <= started_at <= finished_at).
func New(command, cwd, project string, now time.Time) (*Job, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:        id,
		Command:   command,
		Status:    StatusPending,
		Project:   project,
		Cwd:       cwd,
		CreatedAt: now,
	}, nil
}

// ShortID returns a truncated, human-friendly rendering of the id suitable
// for table output; it is never used for lookups (see jobstore.Get's
// unique-prefix matching, which operates on the full string form).
func (j *Job) ShortID() string {
	s := j.ID.String()
	const shortLen = 12
	if len(s) <= shortLen {
		return s
	}
	return s[:shortLen]
}

// DisplayName returns Name if set, otherwise an empty string.
func (j *Job) DisplayName() string {
	if j.Name == nil {
		return ""
	}
	return *j.Name
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}
