package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuarubin/job/internal/job"
)

func TestNewRootsAtDotJob(t *testing.T) {
	t.Parallel()

	l, err := New("/home/alice")
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/.job", l.Root)
	assert.Equal(t, "/home/alice/.job/job.db", l.DB())
	assert.Equal(t, "/home/alice/.job/logs", l.LogsDir())
	assert.Equal(t, "/home/alice/.job/daemon.sock", l.Socket())
	assert.Equal(t, "/home/alice/.job/daemon.pid", l.PidFile())
}

func TestLogFilePerJobID(t *testing.T) {
	t.Parallel()

	id, err := job.NewID()
	require.NoError(t, err)

	l, err := New("/home/alice")
	require.NoError(t, err)

	want := filepath.Join(l.LogsDir(), id.String()+".log")
	assert.Equal(t, want, l.LogFile(id))
}

func TestEnsureDirsIdempotent(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	l, err := New(home)
	require.NoError(t, err)

	require.NoError(t, l.EnsureDirs())
	require.NoError(t, l.EnsureDirs())

	info, err := os.Stat(l.LogsDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
