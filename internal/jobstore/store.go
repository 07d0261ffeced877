// Package jobstore is the persistent Job Store: an embedded SQLite database
// (via the pure-Go modernc.org/sqlite driver, see SPEC_FULL.md §4.2.1)
// holding durable job records, atomic state transitions, indexed lookup by
// id prefix/name/idempotency key, and the orphan-recovery query run once at
// daemon startup.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joshuarubin/job/internal/job"
	"github.com/joshuarubin/job/internal/joberrors"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id              TEXT PRIMARY KEY,
	name            TEXT,
	command         TEXT NOT NULL,
	status          TEXT NOT NULL,
	project         TEXT NOT NULL,
	cwd             TEXT NOT NULL,
	pid             INTEGER,
	exit_code       INTEGER,
	created_at      TEXT NOT NULL,
	started_at      TEXT,
	finished_at     TEXT,
	timeout_secs    INTEGER,
	context         TEXT,
	idempotency_key TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_name ON jobs(name);
CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_idempotency_key ON jobs(idempotency_key) WHERE idempotency_key IS NOT NULL;
`

// Store is the Job Store. A single *sql.DB with its pool capped at one open
// connection (see New) realizes the "single exclusive transaction scope"
// requirement in SPEC_FULL.md §4.2 without a separate application-level
// mutex.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the SQLite database at path and ensures
// the schema exists.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("jobstore: open: %w", err)
	}

	// SQLite allows only one writer at a time; capping the pool at a single
	// connection makes that constraint the serialization point for the
	// store, matching the "exclusive transaction scope" requirement.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("jobstore: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type row struct {
	id             string
	name           sql.NullString
	command        string
	status         string
	project        string
	cwd            string
	pid            sql.NullInt64
	exitCode       sql.NullInt64
	createdAt      string
	startedAt      sql.NullString
	finishedAt     sql.NullString
	timeoutSecs    sql.NullInt64
	context        sql.NullString
	idempotencyKey sql.NullString
}

func scanRow(scanner interface{ Scan(...any) error }) (row, error) {
	var r row
	err := scanner.Scan(
		&r.id, &r.name, &r.command, &r.status, &r.project, &r.cwd,
		&r.pid, &r.exitCode, &r.createdAt, &r.startedAt, &r.finishedAt,
		&r.timeoutSecs, &r.context, &r.idempotencyKey,
	)
	return r, err
}

func (r row) toJob() (*job.Job, error) {
	id, err := job.ParseID(r.id)
	if err != nil {
		return nil, fmt.Errorf("jobstore: parse id %q: %w", r.id, err)
	}

	status, err := job.StatusFromString(r.status)
	if err != nil {
		return nil, fmt.Errorf("jobstore: parse status for %q: %w", r.id, err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, r.createdAt)
	if err != nil {
		return nil, fmt.Errorf("jobstore: parse created_at for %q: %w", r.id, err)
	}

	j := job.Job{
		ID:      id,
		Command: r.command,
		Status:  status,
		Project: r.project,
		Cwd:     r.cwd,

		CreatedAt: createdAt,
	}

	if r.name.Valid {
		j.Name = &r.name.String
	}
	if r.pid.Valid {
		pid := int(r.pid.Int64)
		j.Pid = &pid
	}
	if r.exitCode.Valid {
		ec := int(r.exitCode.Int64)
		j.ExitCode = &ec
	}
	if r.startedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, r.startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("jobstore: parse started_at for %q: %w", r.id, err)
		}
		j.StartedAt = &t
	}
	if r.finishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, r.finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("jobstore: parse finished_at for %q: %w", r.id, err)
		}
		j.FinishedAt = &t
	}
	if r.timeoutSecs.Valid {
		secs := int(r.timeoutSecs.Int64)
		j.TimeoutSecs = &secs
	}
	if r.context.Valid {
		j.Context = []byte(r.context.String)
	}
	if r.idempotencyKey.Valid {
		j.IdempotencyKey = &r.idempotencyKey.String
	}

	return &j, nil
}

const selectCols = `id, name, command, status, project, cwd, pid, exit_code,
	created_at, started_at, finished_at, timeout_secs, context, idempotency_key`

// Insert writes a new record. It fails with joberrors.ErrDuplicateID if the
// id already exists, joberrors.ErrDuplicateKey if the idempotency key
// already exists.
func (s *Store) Insert(ctx context.Context, j *job.Job) error {
	var name, idempotencyKey, contextStr any
	if j.Name != nil {
		name = *j.Name
	}
	if j.IdempotencyKey != nil {
		idempotencyKey = *j.IdempotencyKey
	}
	if len(j.Context) > 0 {
		contextStr = string(j.Context)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, name, command, status, project, cwd, created_at, timeout_secs, context, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID.String(), name, j.Command, j.Status.String(), j.Project, j.Cwd,
		j.CreatedAt.Format(time.RFC3339Nano), nullableInt(j.TimeoutSecs), contextStr, idempotencyKey,
	)
	if err != nil {
		// checked first: "jobs.idempotency_key" also contains "jobs.id"
		if isUniqueViolation(err, "jobs.idempotency_key") {
			return joberrors.ErrDuplicateKey
		}
		if isUniqueViolation(err, "jobs.id") {
			return joberrors.ErrDuplicateID
		}
		return fmt.Errorf("jobstore: insert: %w", err)
	}
	return nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func isUniqueViolation(err error, what string) bool {
	// modernc.org/sqlite reports constraint violations with messages of the
	// form "constraint failed: UNIQUE constraint failed: <table.col> (2067)".
	// Matching on a substring keeps this from depending on the driver's
	// internal error type.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") && strings.Contains(err.Error(), what)
}

// Get performs an exact-id lookup, falling back to a unique-prefix match
// when no exact match exists. It fails with joberrors.ErrNotFound if nothing
// matches, or an *AmbiguousError (unwraps to joberrors.ErrAmbiguous) naming
// every colliding job if the prefix matches more than one.
func (s *Store) Get(ctx context.Context, idOrPrefix string) (*job.Job, error) {
	r := s.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM jobs WHERE id = ?`, idOrPrefix)
	rw, err := scanRow(r)
	if err == nil {
		return rw.toJob()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("jobstore: get: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+selectCols+` FROM jobs WHERE id LIKE ? ESCAPE '\'`, escapeLike(idOrPrefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("jobstore: get prefix: %w", err)
	}
	defer rows.Close()

	var matches []*job.Job
	for rows.Next() {
		rw, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("jobstore: get prefix scan: %w", err)
		}
		j, err := rw.toJob()
		if err != nil {
			return nil, err
		}
		matches = append(matches, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, joberrors.ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, &AmbiguousError{Query: idOrPrefix, Candidates: matches}
	}
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '%', '_':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// GetByName returns all jobs with the given name, most recent first.
func (s *Store) GetByName(ctx context.Context, name string) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectCols+` FROM jobs WHERE name = ? ORDER BY created_at DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("jobstore: get by name: %w", err)
	}
	defer rows.Close()

	var out []*job.Job
	for rows.Next() {
		rw, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		j, err := rw.toJob()
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// GetByIdempotencyKey returns the job with the given idempotency key, if
// any.
func (s *Store) GetByIdempotencyKey(ctx context.Context, key string) (*job.Job, error) {
	r := s.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM jobs WHERE idempotency_key = ?`, key)
	rw, err := scanRow(r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: get by idempotency key: %w", err)
	}
	return rw.toJob()
}

// List returns jobs ordered by created_at descending, optionally filtered by
// status and bounded by limit (nil/<=0 means unbounded).
func (s *Store) List(ctx context.Context, status *job.Status, limit *int) ([]*job.Job, error) {
	query := `SELECT ` + selectCols + ` FROM jobs`
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, status.String())
	}
	query += ` ORDER BY created_at DESC`
	if limit != nil && *limit > 0 {
		query += ` LIMIT ?`
		args = append(args, *limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("jobstore: list: %w", err)
	}
	defer rows.Close()

	var out []*job.Job
	for rows.Next() {
		rw, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		j, err := rw.toJob()
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Count returns the number of jobs, optionally filtered by status.
func (s *Store) Count(ctx context.Context, status *job.Status) (int, error) {
	query := `SELECT COUNT(*) FROM jobs`
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, status.String())
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("jobstore: count: %w", err)
	}
	return n, nil
}

// UpdateStarted performs the atomic pending -> running transition, setting
// started_at and pid. It fails with joberrors.ErrNotPending if the current
// status is not pending.
func (s *Store) UpdateStarted(ctx context.Context, id job.ID, pid int, startedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, pid = ?, started_at = ?
		WHERE id = ? AND status = ?`,
		job.StatusRunning.String(), pid, startedAt.Format(time.RFC3339Nano),
		id.String(), job.StatusPending.String(),
	)
	if err != nil {
		return fmt.Errorf("jobstore: update started: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("jobstore: update started rows affected: %w", err)
	}
	if n == 0 {
		return joberrors.ErrNotPending
	}
	return nil
}

// UpdateFinished performs the running -> terminal transition, setting
// finished_at and exit_code. Calling it again on an already-terminal job
// with the same status succeeds and overwrites finished_at and exit_code,
// matching SPEC_FULL.md §4.2's last-writer-wins contract.
func (s *Store) UpdateFinished(ctx context.Context, id job.ID, status job.Status, exitCode *int, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, exit_code = ?, finished_at = ?
		WHERE id = ? AND (status = ? OR status = ?)`,
		status.String(), nullableInt(exitCode), finishedAt.Format(time.RFC3339Nano),
		id.String(), job.StatusRunning.String(), status.String(),
	)
	if err != nil {
		return fmt.Errorf("jobstore: update finished: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// either the id doesn't exist, or it's terminal with a different
		// status than requested; the latter is a logic error upstream, the
		// former we surface as NotFound.
		if _, getErr := s.Get(ctx, id.String()); getErr != nil {
			return getErr
		}
	}
	return nil
}

// DeleteOld deletes terminal jobs finished before the given timestamp,
// optionally restricted to a single status. It never deletes non-terminal
// jobs. It returns the number of rows deleted.
func (s *Store) DeleteOld(ctx context.Context, before time.Time, status *job.Status) (int, error) {
	terminal := []job.Status{job.StatusCompleted, job.StatusFailed, job.StatusStopped, job.StatusInterrupted}

	query := `DELETE FROM jobs WHERE finished_at IS NOT NULL AND finished_at < ?`
	args := []any{before.Format(time.RFC3339Nano)}

	if status != nil {
		query += ` AND status = ?`
		args = append(args, status.String())
	} else {
		placeholders := ""
		for i, st := range terminal {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, st.String())
		}
		query += ` AND status IN (` + placeholders + `)`
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("jobstore: delete old: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// RecoverOrphans transitions every pending/running record to interrupted.
// It is intended to run exactly once, at daemon startup, before any new
// spawns.
func (s *Store) RecoverOrphans(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, finished_at = ?, exit_code = NULL
		WHERE status = ? OR status = ?`,
		job.StatusInterrupted.String(), now.Format(time.RFC3339Nano),
		job.StatusPending.String(), job.StatusRunning.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("jobstore: recover orphans: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Resolve tries Get, then GetByName; it fails with joberrors.ErrNotFound if
// both are empty, or an *AmbiguousError naming every colliding job if the
// id prefix or the name matches more than one.
func (s *Store) Resolve(ctx context.Context, idOrName string) (*job.Job, error) {
	j, err := s.Get(ctx, idOrName)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, joberrors.ErrNotFound) {
		return nil, err
	}

	matches, err := s.GetByName(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, joberrors.ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, &AmbiguousError{Query: idOrName, Candidates: matches}
	}
}
