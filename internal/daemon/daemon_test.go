package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuarubin/job/internal/ipc"
	"github.com/joshuarubin/job/internal/job"
	"github.com/joshuarubin/job/internal/paths"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()

	layout, err := paths.New(t.TempDir())
	require.NoError(t, err)

	d, err := New(layout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })
	return d
}

func writeLog(t *testing.T, layout paths.Layout, name string) string {
	t.Helper()

	path := filepath.Join(layout.LogsDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("output\n"), 0o644))
	return path
}

// TestHandleCleanSweepsOrphanLogs grounds review-comment 2's fix: clean must
// remove not just the deleted DB rows but any log file left behind, the way
// the original implementation's `clean` command does, without touching the
// log file of a job whose row still exists.
func TestHandleCleanSweepsOrphanLogs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newTestDaemon(t)

	old := newJobAt(t, d, "echo old", time.Now().UTC().Add(-48*time.Hour))
	fresh := newJobAt(t, d, "echo fresh", time.Now().UTC())

	oldLog := writeLog(t, d.layout, old.ID.String()+".log")
	freshLog := writeLog(t, d.layout, fresh.ID.String()+".log")
	strayLog := writeLog(t, d.layout, "job_doesnotexist0000000000000.log")

	resp := d.handleClean(ctx, &ipc.Request{Type: ipc.RequestClean, OlderThanSecs: 3600})
	require.Equal(t, ipc.ResponseOk, resp.Type)

	assert.NoFileExists(t, oldLog, "log of a deleted job must be swept")
	assert.NoFileExists(t, strayLog, "log with no matching row at all must be swept")
	assert.FileExists(t, freshLog, "log of a surviving job must be left alone")
}

// newJobAt inserts and finishes a job with the given finish time so it is
// eligible (or not) for DeleteOld's age cutoff.
func newJobAt(t *testing.T, d *Daemon, command string, finishedAt time.Time) *job.Job {
	t.Helper()

	j, err := job.New(command, ".", "proj", finishedAt)
	require.NoError(t, err)
	require.NoError(t, d.store.Insert(context.Background(), j))
	require.NoError(t, d.store.UpdateStarted(context.Background(), j.ID, 1, finishedAt))
	ec := 0
	require.NoError(t, d.store.UpdateFinished(context.Background(), j.ID, job.StatusCompleted, &ec, finishedAt))
	return j
}
