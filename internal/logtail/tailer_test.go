package logtail

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuarubin/job/internal/job"
)

func writeLines(t *testing.T, n int, trailingNewline bool) string {
	t.Helper()

	var sb strings.Builder
	for i := 1; i <= n; i++ {
		sb.WriteString(formatLine(i))
		sb.WriteByte('\n')
	}
	content := sb.String()
	if !trailingNewline {
		content = strings.TrimSuffix(content, "\n")
	}

	path := filepath.Join(t.TempDir(), "job.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func formatLine(i int) string {
	return fmt.Sprintf("line%02d", i)
}

func TestTailLinesExactlyN(t *testing.T) {
	t.Parallel()

	path := writeLines(t, 10, true)

	var buf bytes.Buffer
	require.NoError(t, TailLines(&buf, path, 10, false))
	assert.Equal(t, linesRange(1, 10), buf.String())
}

func TestTailLinesNMinus1(t *testing.T) {
	t.Parallel()

	path := writeLines(t, 10, true)

	var buf bytes.Buffer
	require.NoError(t, TailLines(&buf, path, 9, false))
	assert.Equal(t, linesRange(2, 10), buf.String())
}

func TestTailLinesLastThreeOfTen(t *testing.T) {
	t.Parallel()

	path := writeLines(t, 10, true)

	var buf bytes.Buffer
	require.NoError(t, TailLines(&buf, path, 3, false))
	assert.Equal(t, "line08\nline09\nline10\n", buf.String())
}

func TestTailLinesRequestMoreThanAvailable(t *testing.T) {
	t.Parallel()

	path := writeLines(t, 10, true)

	var buf bytes.Buffer
	require.NoError(t, TailLines(&buf, path, 100, false))
	assert.Equal(t, linesRange(1, 10), buf.String())
}

func TestTailLinesEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var buf bytes.Buffer
	require.NoError(t, TailLines(&buf, path, 3, false))
	assert.Empty(t, buf.String())
}

func TestTailLinesTrailingNewlineNotCountedAsEmptyLine(t *testing.T) {
	t.Parallel()

	path := writeLines(t, 3, true)

	var buf bytes.Buffer
	require.NoError(t, TailLines(&buf, path, 1, false))
	assert.Equal(t, "line03\n", buf.String())
}

func TestWholeFileStream(t *testing.T) {
	t.Parallel()

	path := writeLines(t, 3, true)

	var buf bytes.Buffer
	require.NoError(t, WholeFile(&buf, path, false))
	assert.Equal(t, linesRange(1, 3), buf.String())
}

func linesRange(from, to int) string {
	var sb strings.Builder
	for i := from; i <= to; i++ {
		sb.WriteString(formatLine(i))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestFollowExitsOnTerminalBeforeFileExists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "never-created.log")

	ec := 7
	calls := 0
	statusFn := func() (job.Status, *int, error) {
		calls++
		return job.StatusFailed, &ec, nil
	}

	var buf bytes.Buffer
	code, err := Follow(context.Background(), &buf, path, statusFn, func() bool { return false }, false)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
	assert.GreaterOrEqual(t, calls, 1)
}

func TestFollowStreamsThenExitsOnTerminal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "job.log")
	require.NoError(t, os.WriteFile(path, []byte("line1\n"), 0o644))

	ec := 0
	var calls int
	statusFn := func() (job.Status, *int, error) {
		calls++
		if calls >= 2 {
			return job.StatusCompleted, &ec, nil
		}
		return job.StatusRunning, nil, nil
	}

	var buf bytes.Buffer
	code, err := Follow(context.Background(), &buf, path, statusFn, func() bool { return false }, false)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "line1\n", buf.String())
}

func TestFollowInterruptStopsWithoutError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "job.log")
	require.NoError(t, os.WriteFile(path, []byte("line1\n"), 0o644))

	statusFn := func() (job.Status, *int, error) {
		return job.StatusRunning, nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var buf bytes.Buffer
	code, err := Follow(ctx, &buf, path, statusFn, func() bool { return true }, false)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}
