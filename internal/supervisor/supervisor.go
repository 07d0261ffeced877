// Package supervisor is the daemon's job lifecycle engine (SPEC_FULL.md
// §4.4): process-group spawning, stdout/stderr capture to a log file,
// timeout enforcement, stop/kill propagation, completion observation, and
// orphan recovery across daemon restarts. It is grounded on the donor
// repository's atomic-status/sync.Once job wrapper and mutex-guarded worker
// registry, generalized from a namespaced/cgrouped single process to a
// process-group leader with store-backed persistence.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/joshuarubin/job/internal/job"
	"github.com/joshuarubin/job/internal/joberrors"
	"github.com/joshuarubin/job/internal/jobstore"
	"github.com/joshuarubin/job/internal/paths"
)

// waitPollInterval is how often Wait polls the store for a terminal status.
const waitPollInterval = 100 * time.Millisecond

// stopGracePeriod is how long the monitor waits after a SIGTERM (whether
// from a timeout or a non-forced Stop) before escalating to SIGKILL.
const stopGracePeriod = 5 * time.Second

// RunningJob is the runtime-only association the Supervisor keeps for a
// spawned job: its process-group-leader pid, and a channel the monitor
// selects on to learn it should signal the group. This is the "most
// complete variant" chosen for Open Question 1 in SPEC_FULL.md §9: pid is
// needed for killProcessGroup, and routing the signal request through a
// channel to the monitor (rather than signalling directly from the Stop
// RPC handler) keeps the monitor the single writer of the job's terminal
// state.
type RunningJob struct {
	pid  int
	stop chan syscall.Signal
}

// SubmitParams carries everything a caller supplies to Submit; it mirrors
// the Request.Submit wire variant in internal/ipc without depending on that
// package.
type SubmitParams struct {
	Command        string
	Name           *string
	Cwd            string
	Project        string
	TimeoutSecs    *int
	Context        json.RawMessage
	IdempotencyKey *string
}

// Info summarizes daemon-wide status for the Status request.
type Info struct {
	UptimeSecs   int64
	RunningCount int
	TotalJobs    int
}

// Supervisor owns the runtime table and drives job lifecycles against a
// Store.
type Supervisor struct {
	store  *jobstore.Store
	layout paths.Layout

	startedAt time.Time

	mu       sync.Mutex
	running  map[job.ID]*RunningJob
	shutdown chan struct{}
	once     sync.Once
}

// New constructs a Supervisor. Call RecoverOrphans once, before accepting
// any connections, per SPEC_FULL.md §4.4.6.
func New(store *jobstore.Store, layout paths.Layout) *Supervisor {
	return &Supervisor{
		store:     store,
		layout:    layout,
		startedAt: time.Now(),
		running:   make(map[job.ID]*RunningJob),
		shutdown:  make(chan struct{}),
	}
}

// RecoverOrphans transitions every pre-existing pending/running record to
// interrupted. Must run exactly once, before the daemon accepts connections.
func (s *Supervisor) RecoverOrphans(ctx context.Context) (int, error) {
	return s.store.RecoverOrphans(ctx, time.Now().UTC())
}

// Submit implements SPEC_FULL.md §4.4.1: idempotency-key short-circuit,
// persist-as-pending, asynchronous spawn handoff.
func (s *Supervisor) Submit(ctx context.Context, params SubmitParams) (*job.Job, error) {
	if params.IdempotencyKey != nil && *params.IdempotencyKey != "" {
		existing, err := s.store.GetByIdempotencyKey(ctx, *params.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	now := time.Now().UTC()
	j, err := job.New(params.Command, params.Cwd, params.Project, now)
	if err != nil {
		return nil, fmt.Errorf("supervisor: allocate job: %w", err)
	}
	j.Name = params.Name
	j.TimeoutSecs = params.TimeoutSecs
	j.Context = params.Context
	j.IdempotencyKey = params.IdempotencyKey

	if err := s.store.Insert(ctx, j); err != nil {
		if errors.Is(err, joberrors.ErrDuplicateKey) {
			// lost a race with a concurrent submit carrying the same key
			if existing, gerr := s.store.GetByIdempotencyKey(ctx, *params.IdempotencyKey); gerr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	go s.spawnAndMonitor(j)

	return j, nil
}

// Retry resolves an existing job and resubmits it through the normal Submit
// path (SPEC_FULL.md §4.4.7, resolving Open Question 2): same spawn
// pipeline, a brand new id, name/timeout/context preserved, idempotency_key
// never carried over.
func (s *Supervisor) Retry(ctx context.Context, idOrName string) (*job.Job, error) {
	prior, err := s.store.Resolve(ctx, idOrName)
	if err != nil {
		return nil, err
	}

	return s.Submit(ctx, SubmitParams{
		Command:     prior.Command,
		Name:        prior.Name,
		Cwd:         prior.Cwd,
		Project:     prior.Project,
		TimeoutSecs: prior.TimeoutSecs,
		Context:     prior.Context,
	})
}

func (s *Supervisor) spawnAndMonitor(j *job.Job) {
	ctx := context.Background()

	logFile, err := os.Create(s.layout.LogFile(j.ID))
	if err != nil {
		s.failSpawn(ctx, j, err)
		return
	}

	cmd := exec.Command("sh", "-c", j.Command)
	cmd.Dir = j.Cwd
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(logFile, "job failed to start: %v\n", err)
		logFile.Close()
		s.failSpawn(ctx, j, err)
		return
	}

	pid := cmd.Process.Pid
	startedAt := time.Now().UTC()
	if err := s.store.UpdateStarted(ctx, j.ID, pid, startedAt); err != nil {
		// the job record vanished or was already started by a concurrent
		// caller; there is nothing sane to do but let the process run to
		// completion unobserved by the store. This should not happen in
		// practice since submit->spawn is single-shot per job id.
		_ = err
	}

	rj := &RunningJob{pid: pid, stop: make(chan syscall.Signal, 1)}
	s.mu.Lock()
	s.running[j.ID] = rj
	s.mu.Unlock()

	s.monitor(ctx, j, cmd, rj, logFile)
}

func (s *Supervisor) failSpawn(ctx context.Context, j *job.Job, spawnErr error) {
	now := time.Now().UTC()
	if err := s.store.UpdateStarted(ctx, j.ID, 0, now); err == nil {
		// best effort: UpdateFinished only moves a running job, so pass
		// through running with a placeholder pid of 0, which stays on the
		// failed record; ignore the intermediate state's error either way.
		_ = err
	}
	_ = s.store.UpdateFinished(ctx, j.ID, job.StatusFailed, nil, now)
	_ = spawnErr
}

func (s *Supervisor) monitor(ctx context.Context, j *job.Job, cmd *exec.Cmd, rj *RunningJob, logFile *os.File) {
	defer logFile.Close()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	var timeoutCh <-chan time.Time
	if j.TimeoutSecs != nil {
		timer := time.NewTimer(time.Duration(*j.TimeoutSecs) * time.Second)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var (
		status   job.Status
		exitCode *int
	)

	select {
	case <-s.shutdown:
		// Shutdown already drained the runtime table and owns the
		// terminal-state write for this job; nothing left for us to do.
		return

	case waitErr := <-waitDone:
		status, exitCode = exitStatus(waitErr)

	case <-timeoutCh:
		_ = killProcessGroup(rj.pid, syscall.SIGTERM)
		waitErr := waitWithGrace(rj.pid, waitDone)
		_ = waitErr
		status, exitCode = job.StatusStopped, nil

	case sig := <-rj.stop:
		_ = killProcessGroup(rj.pid, sig)
		if sig == syscall.SIGKILL {
			<-waitDone
		} else {
			_ = waitWithGrace(rj.pid, waitDone)
		}
		status, exitCode = job.StatusStopped, nil
	}

	finishedAt := time.Now().UTC()

	s.mu.Lock()
	delete(s.running, j.ID)
	s.mu.Unlock()

	_ = s.store.UpdateFinished(ctx, j.ID, status, exitCode, finishedAt)
}

// waitWithGrace waits up to stopGracePeriod for waitDone to fire after an
// initial SIGTERM; if the grace period elapses first, it escalates to
// SIGKILL and blocks until the process actually exits.
func waitWithGrace(pid int, waitDone <-chan error) error {
	grace := time.NewTimer(stopGracePeriod)
	defer grace.Stop()

	select {
	case err := <-waitDone:
		return err
	case <-grace.C:
		_ = killProcessGroup(pid, syscall.SIGKILL)
		return <-waitDone
	}
}

func exitStatus(waitErr error) (job.Status, *int) {
	if waitErr == nil {
		ec := 0
		return job.StatusCompleted, &ec
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		ec := exitErr.ExitCode()
		if ec >= 0 {
			return job.StatusFailed, &ec
		}
		// negative ExitCode means the process was terminated by a signal;
		// no usable exit code.
		return job.StatusFailed, nil
	}

	return job.StatusFailed, nil
}

// Stop implements SPEC_FULL.md §4.4.4: resolves the runtime entry for
// idOrName and signals its process group with SIGTERM (force=false) or
// SIGKILL (force=true), handled distinctly rather than collapsed into one
// signal (Open Question 3).
func (s *Supervisor) Stop(ctx context.Context, idOrName string, force bool) error {
	j, err := s.store.Resolve(ctx, idOrName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	rj, ok := s.running[j.ID]
	s.mu.Unlock()
	if !ok {
		return joberrors.ErrNotRunning
	}

	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}

	select {
	case rj.stop <- sig:
	default:
		// a stop/timeout signal is already in flight for this job
	}
	return nil
}

// Wait implements SPEC_FULL.md §4.4.5: polls the store, not the runtime
// table, at waitPollInterval until idOrName reaches a terminal status or
// the timeout elapses.
func (s *Supervisor) Wait(ctx context.Context, idOrName string, timeoutSecs *int) (*job.Job, error) {
	var deadline <-chan time.Time
	if timeoutSecs != nil {
		timer := time.NewTimer(time.Duration(*timeoutSecs) * time.Second)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		j, err := s.store.Resolve(ctx, idOrName)
		if err != nil {
			return nil, err
		}
		if j.IsTerminal() {
			return j, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, joberrors.ErrWaitTimedOut
		case <-ticker.C:
		}
	}
}

// Shutdown implements the shutdown half of SPEC_FULL.md §4.5: drains the
// runtime table (releasing its lock before touching the store, per the §5
// lock-order rule), signals every still-running process group with
// SIGTERM, and marks each job interrupted.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.once.Do(func() { close(s.shutdown) })

	s.mu.Lock()
	drained := make(map[job.ID]*RunningJob, len(s.running))
	for id, rj := range s.running {
		drained[id] = rj
	}
	s.running = make(map[job.ID]*RunningJob)
	s.mu.Unlock()

	now := time.Now().UTC()
	for id, rj := range drained {
		_ = killProcessGroup(rj.pid, syscall.SIGTERM)
		_ = s.store.UpdateFinished(ctx, id, job.StatusInterrupted, nil, now)
	}
}

// Info returns daemon-wide status for the Status request.
func (s *Supervisor) Info(ctx context.Context) (Info, error) {
	total, err := s.store.Count(ctx, nil)
	if err != nil {
		return Info{}, err
	}

	s.mu.Lock()
	running := len(s.running)
	s.mu.Unlock()

	return Info{
		UptimeSecs:   int64(time.Since(s.startedAt).Seconds()),
		RunningCount: running,
		TotalJobs:    total,
	}, nil
}
