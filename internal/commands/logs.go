package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job/internal/colorize"
	"github.com/joshuarubin/job/internal/ipc"
	"github.com/joshuarubin/job/internal/job"
	"github.com/joshuarubin/job/internal/logtail"
	"github.com/joshuarubin/job/internal/pager"
)

type logs struct {
	cfg Config

	tail     int
	follow   bool
	usePager bool
}

// Logs builds the `job logs` command.
func Logs() *cobra.Command {
	var l logs

	cmd := &cobra.Command{
		Use:   "logs <id|name>",
		Short: "Print or follow a job's captured stdout/stderr",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return l.run(cmd, args[0])
		},
	}

	l.cfg.Flags(cmd)
	cmd.Flags().IntVar(&l.tail, "tail", 0, "only show the last N lines (0 means the whole file)")
	cmd.Flags().BoolVar(&l.follow, "follow", false, "stream new output as the job produces it")
	cmd.Flags().BoolVar(&l.usePager, "pager", false, "page output through $PAGER instead of printing directly")

	return cmd
}

func (l *logs) run(cmd *cobra.Command, idOrName string) error {
	cl, layout, err := l.cfg.requireDaemon()
	if err != nil {
		return err
	}

	resp, err := cl.Send(&ipc.Request{Type: ipc.RequestGet, ID: idOrName})
	if err != nil {
		return err
	}
	if resp.Type == ipc.ResponseError {
		return fmt.Errorf("%s", resp.Error)
	}
	var j job.Job
	if err := json.Unmarshal(resp.Job, &j); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}

	logPath := layout.LogFile(j.ID)
	out := cmd.OutOrStdout()

	if l.follow {
		return l.runFollow(cmd.Context(), out, cl, j, logPath)
	}

	if l.usePager {
		r, w := io.Pipe()
		errCh := make(chan error, 1)
		go func() {
			defer w.Close()
			if l.tail > 0 {
				errCh <- logtail.TailLines(w, logPath, l.tail, false)
			} else {
				errCh <- logtail.WholeFile(w, logPath, false)
			}
		}()
		if err := pager.Run(r); err != nil {
			return err
		}
		return <-errCh
	}

	enabled := colorize.Enabled(out)
	if l.tail > 0 {
		return logtail.TailLines(out, logPath, l.tail, enabled)
	}
	return logtail.WholeFile(out, logPath, enabled)
}

// runFollow implements the client-side half of SPEC_FULL.md §4.7's follow
// mode: it wires a SIGINT handler that only flips a flag (the job keeps
// running after Ctrl+C; only the client-side stream exits) and polls the
// daemon's Get response for the job's terminal status.
func (l *logs) runFollow(ctx context.Context, out io.Writer, cl interface {
	Send(*ipc.Request) (*ipc.Response, error)
}, j job.Job, logPath string) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)

	var interrupted atomic.Bool
	go func() {
		<-sigCh
		interrupted.Store(true)
	}()

	statusFn := func() (job.Status, *int, error) {
		resp, err := cl.Send(&ipc.Request{Type: ipc.RequestGet, ID: j.ID.String()})
		if err != nil {
			return job.StatusUnspecified, nil, err
		}
		if resp.Type == ipc.ResponseError {
			return job.StatusUnspecified, nil, fmt.Errorf("%s", resp.Error)
		}
		var cur job.Job
		if err := json.Unmarshal(resp.Job, &cur); err != nil {
			return job.StatusUnspecified, nil, err
		}
		return cur.Status, cur.ExitCode, nil
	}

	enabled := colorize.Enabled(out)
	exitCode, err := logtail.Follow(ctx, out, logPath, statusFn, interrupted.Load, enabled)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return &ExitCodeError{Code: exitCode}
	}
	return nil
}
