// Package joberrors defines the sentinel error kinds shared across the job
// store, supervisor, and daemon, and the propagation contract each one
// follows when it reaches a client.
package joberrors

import "errors"

var (
	// ErrNotFound is returned by store lookups that find nothing.
	ErrNotFound = errors.New("no job found")

	// ErrAmbiguous is returned when an id prefix or name resolves to more
	// than one job.
	ErrAmbiguous = errors.New("ambiguous job reference")

	// ErrDuplicateID is returned by Insert when the id already exists.
	ErrDuplicateID = errors.New("duplicate job id")

	// ErrDuplicateKey is returned by Insert when the idempotency key
	// already exists.
	ErrDuplicateKey = errors.New("duplicate idempotency key")

	// ErrInvalidStatus is returned when parsing an unrecognized status
	// string.
	ErrInvalidStatus = errors.New("invalid job status")

	// ErrNotPending is returned by UpdateStarted when the job is not
	// currently pending.
	ErrNotPending = errors.New("job is not pending")

	// ErrNotRunning is returned by Stop when the job has no live runtime
	// entry.
	ErrNotRunning = errors.New("job is not running")

	// ErrFrameTooLarge is returned by the IPC codec when a frame exceeds
	// the maximum payload size.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrWaitTimedOut is returned by Wait when the deadline elapses before
	// the job reaches a terminal state.
	ErrWaitTimedOut = errors.New("wait timed out")

	// ErrRefusedPidZero is returned when an attempt is made to signal
	// process group 0.
	ErrRefusedPidZero = errors.New("refusing to signal process group 0")
)
