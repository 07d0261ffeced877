package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobIsPending(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	j, err := New("echo hi", "/tmp", "tmp", now)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, j.Status)
	assert.Equal(t, "echo hi", j.Command)
	assert.Nil(t, j.StartedAt)
	assert.Nil(t, j.FinishedAt)
	assert.Nil(t, j.Pid)
	assert.Nil(t, j.ExitCode)
	assert.False(t, j.IsTerminal())
	assert.Equal(t, now, j.CreatedAt)
}

func TestJobIDUniqueness(t *testing.T) {
	t.Parallel()

	a, err := New("a", "/tmp", "tmp", time.Now().UTC())
	require.NoError(t, err)
	b, err := New("b", "/tmp", "tmp", time.Now().UTC())
	require.NoError(t, err)

	assert.NotEqual(t, a.ID.String(), b.ID.String())
}

func TestShortID(t *testing.T) {
	t.Parallel()

	j, err := New("a", "/tmp", "tmp", time.Now().UTC())
	require.NoError(t, err)

	short := j.ShortID()
	assert.LessOrEqual(t, len(short), 12)
	assert.True(t, len(j.ID.String()) >= len(short))
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	j, err := New("a", "/tmp", "tmp", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "", j.DisplayName())

	name := "build"
	j.Name = &name
	assert.Equal(t, "build", j.DisplayName())
}

func TestParseIDRoundTrip(t *testing.T) {
	t.Parallel()

	id, err := NewID()
	require.NoError(t, err)

	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id.String(), parsed.String())
}
