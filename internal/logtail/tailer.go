// Package logtail is the client-side Log Tailer (SPEC_FULL.md §4.7): whole-
// file streaming, an efficient backward-chunked tail-last-N, and a
// follow-mode poll loop with clean interrupt semantics. Grounded on the
// original implementation's logs command (the backward-chunk scan and the
// follow loop's poll/drain/exit-code contract are ported algorithm-for-
// algorithm, expressed in Go idiom rather than transliterated).
package logtail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joshuarubin/job/internal/colorize"
	"github.com/joshuarubin/job/internal/job"
)

const (
	chunkSize        = 8192
	followPollPeriod = 100 * time.Millisecond
)

// WholeFile streams path from the beginning to w, line by line.
func WholeFile(w io.Writer, path string, colorizeEnabled bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return streamLines(w, f, colorizeEnabled)
}

// TailLines streams the last n lines of path to w, using a backward-
// chunked scan so the whole file never has to be read into memory.
func TailLines(w io.Writer, path string, n int, colorizeEnabled bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	offset, err := tailOffset(f, n)
	if err != nil {
		return err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	return streamLines(w, f, colorizeEnabled)
}

// tailOffset implements SPEC_FULL.md §4.7's backward-chunked scan: read
// 8 KiB chunks from the end, collecting the byte offset just after each
// newline (a candidate line start), skipping the file's own trailing
// newline so it is never counted as a zero-length line. Stops once N+1
// candidates are collected or the file is exhausted; the result is
// candidate N-1 (0-indexed), or 0 if fewer than N real line starts exist.
func tailOffset(f *os.File, n int) (int64, error) {
	if n <= 0 {
		stat, err := f.Stat()
		if err != nil {
			return 0, err
		}
		return stat.Size(), nil
	}

	stat, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := stat.Size()
	if size == 0 {
		return 0, nil
	}

	var candidates []int64
	buf := make([]byte, chunkSize)
	pos := size

	for pos > 0 && len(candidates) < n+1 {
		readSize := int64(chunkSize)
		if pos < readSize {
			readSize = pos
		}
		start := pos - readSize

		if _, err := f.ReadAt(buf[:readSize], start); err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}

		for i := readSize - 1; i >= 0; i-- {
			if buf[i] != '\n' {
				continue
			}
			abs := start + i
			if abs == size-1 {
				// the file's own trailing newline: the position after it
				// is the end of file, not the start of a real line.
				continue
			}
			candidates = append(candidates, abs+1)
			if len(candidates) >= n+1 {
				break
			}
		}

		pos = start
	}

	if len(candidates) >= n {
		return candidates[n-1], nil
	}
	return 0, nil
}

func streamLines(w io.Writer, r io.Reader, colorizeEnabled bool) error {
	if !colorizeEnabled {
		_, err := io.Copy(w, r)
		return err
	}

	buf, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if rest := flushLines(w, buf, true); len(rest) > 0 {
		fmt.Fprint(w, colorize.Line(string(rest), true))
	}
	return nil
}

func flushLines(w io.Writer, buf []byte, colorizeEnabled bool) []byte {
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			return buf
		}
		line := string(buf[:idx])
		fmt.Fprintln(w, colorize.Line(line, colorizeEnabled))
		buf = buf[idx+1:]
	}
}

// StatusFunc reports a job's current status and, once terminal, its exit
// code (nil if the job ended without one). Follow uses it to learn when to
// stop polling without ever touching the supervisor's runtime table, per
// SPEC_FULL.md §4.4.5/§4.7's store-not-runtime-table discipline.
type StatusFunc func() (job.Status, *int, error)

// Follow implements SPEC_FULL.md §4.7's follow mode: wait for the log file
// to appear (bailing out with the job's exit code if it terminates first),
// then repeatedly read new bytes, write them to w, and poll status until
// terminal, draining any trailing partial line before returning the job's
// exit code. interrupted is polled once per iteration so a client-side
// Ctrl+C can return cleanly without affecting the job.
func Follow(ctx context.Context, w io.Writer, path string, statusFn StatusFunc, interrupted func() bool, colorizeEnabled bool) (int, error) {
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}

		status, exitCode, err := statusFn()
		if err != nil {
			return 0, err
		}
		if status.IsTerminal() {
			if exitCode != nil {
				return *exitCode, nil
			}
			return 1, nil
		}
		if interrupted() {
			return 0, nil
		}
		if err := sleepOrDone(ctx); err != nil {
			return 0, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var (
		pos      int64
		leftover []byte
		buf      = make([]byte, chunkSize)
	)

	for {
		if _, err := f.Seek(pos, io.SeekStart); err != nil {
			return 0, err
		}
		n, rerr := f.Read(buf)
		if n > 0 {
			leftover = append(leftover, buf[:n]...)
			leftover = flushLines(w, leftover, colorizeEnabled)
			pos += int64(n)
		}
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return 0, rerr
		}

		status, exitCode, serr := statusFn()
		if serr != nil {
			return 0, serr
		}
		if status.IsTerminal() {
			if len(leftover) > 0 {
				fmt.Fprint(w, colorize.Line(string(leftover), colorizeEnabled))
			}
			if exitCode != nil {
				return *exitCode, nil
			}
			return 1, nil
		}

		if interrupted() {
			return 0, nil
		}
		if err := sleepOrDone(ctx); err != nil {
			return 0, err
		}
	}
}

func sleepOrDone(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(followPollPeriod):
		return nil
	}
}
