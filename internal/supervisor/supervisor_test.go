package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuarubin/job/internal/job"
	"github.com/joshuarubin/job/internal/jobstore"
	"github.com/joshuarubin/job/internal/paths"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *jobstore.Store) {
	t.Helper()

	home := t.TempDir()
	layout, err := paths.New(home)
	require.NoError(t, err)
	require.NoError(t, layout.EnsureDirs())

	store, err := jobstore.New(layout.DB())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return New(store, layout), store
}

// waitForTerminal blocks on Wait with an explicit deadline; Wait itself
// never returns a non-terminal job, so one call suffices once it succeeds.
func waitForTerminal(t *testing.T, s *Supervisor, id string, timeout time.Duration) *job.Job {
	t.Helper()

	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	j, err := s.Wait(context.Background(), id, &secs)
	require.NoError(t, err)
	require.True(t, j.IsTerminal())
	return j
}

func TestSubmitAndWaitSimpleCommand(t *testing.T) {
	t.Parallel()

	s, _ := newTestSupervisor(t)

	j, err := s.Submit(context.Background(), SubmitParams{Command: "sleep 0", Cwd: ".", Project: "proj"})
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, j.Status)

	got, err := s.Wait(context.Background(), j.ID.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, got.Status)
	require.NotNil(t, got.ExitCode)
	assert.Equal(t, 0, *got.ExitCode)
}

func TestSubmitTimeout(t *testing.T) {
	t.Parallel()

	s, _ := newTestSupervisor(t)

	timeout := 1
	j, err := s.Submit(context.Background(), SubmitParams{
		Command: "sleep 60", Cwd: ".", Project: "proj", TimeoutSecs: &timeout,
	})
	require.NoError(t, err)

	got := waitForTerminal(t, s, j.ID.String(), 10*time.Second)
	assert.Equal(t, job.StatusStopped, got.Status)
	assert.Nil(t, got.ExitCode)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.FinishedAt)
	assert.GreaterOrEqual(t, got.FinishedAt.Sub(*got.StartedAt), time.Second)
}

func TestSubmitIdempotencyKeyCollapses(t *testing.T) {
	t.Parallel()

	s, store := newTestSupervisor(t)

	key := "K1"
	first, err := s.Submit(context.Background(), SubmitParams{
		Command: "echo hi", Cwd: ".", Project: "proj", IdempotencyKey: &key,
	})
	require.NoError(t, err)

	second, err := s.Submit(context.Background(), SubmitParams{
		Command: "echo world", Cwd: ".", Project: "proj", IdempotencyKey: &key,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID.String(), second.ID.String())
	assert.Equal(t, "echo hi", second.Command)

	n, err := store.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStopNotRunningIsError(t *testing.T) {
	t.Parallel()

	s, store := newTestSupervisor(t)
	ctx := context.Background()

	j, err := job.New("sleep 60", ".", "proj", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, j))

	err = s.Stop(ctx, j.ID.String(), false)
	assert.Error(t, err)
}

func TestStopPropagatesToProcessGroup(t *testing.T) {
	t.Parallel()

	s, store := newTestSupervisor(t)
	ctx := context.Background()

	j, err := s.Submit(ctx, SubmitParams{Command: "sleep 30 & wait", Cwd: ".", Project: "proj"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := store.Get(ctx, j.ID.String())
		return err == nil && got.Status == job.StatusRunning
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Stop(ctx, j.ID.String(), false))

	got := waitForTerminal(t, s, j.ID.String(), 5*time.Second)
	assert.Equal(t, job.StatusStopped, got.Status)
}

func TestRetryResubmitsWithNewID(t *testing.T) {
	t.Parallel()

	s, _ := newTestSupervisor(t)
	ctx := context.Background()

	name := "my-job"
	key := "K1"
	first, err := s.Submit(ctx, SubmitParams{
		Command: "sleep 0", Name: &name, Cwd: ".", Project: "proj", IdempotencyKey: &key,
	})
	require.NoError(t, err)
	waitForTerminal(t, s, first.ID.String(), 5*time.Second)

	second, err := s.Retry(ctx, first.ID.String())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID.String(), second.ID.String())
	assert.Equal(t, first.Command, second.Command)
	require.NotNil(t, second.Name)
	assert.Equal(t, name, *second.Name)
	assert.Nil(t, second.IdempotencyKey)
}

func TestRecoverOrphans(t *testing.T) {
	t.Parallel()

	s, store := newTestSupervisor(t)
	ctx := context.Background()

	j, err := job.New("sleep 60", ".", "proj", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, j))
	require.NoError(t, store.UpdateStarted(ctx, j.ID, 99999, time.Now().UTC().Add(-time.Hour)))

	n, err := s.RecoverOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, j.ID.String())
	require.NoError(t, err)
	assert.Equal(t, job.StatusInterrupted, got.Status)
	assert.Nil(t, got.ExitCode)
	require.NotNil(t, got.FinishedAt)
}
