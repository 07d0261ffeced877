package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job/internal/daemon"
)

// shutdownTimeout bounds how long Daemon.Shutdown is given to drain the
// runtime table and flush the store before the process gives up and exits
// anyway.
const shutdownTimeout = 10 * time.Second

type daemonCmd struct {
	cfg Config
	d   *daemon.Daemon
}

// Daemon builds the `job daemon` command: the server-role command that
// performs the Daemon Server startup sequence (SPEC_FULL.md §4.5) in the
// foreground, with SIGINT/SIGTERM handled the same signal-driven
// graceful-shutdown way as the donor repository's `serve` command.
func Daemon() *cobra.Command {
	var d daemonCmd

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the job daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return d.run(cmd.Context())
		},
	}

	d.cfg.Flags(cmd)

	return cmd
}

func (d *daemonCmd) run(ctx context.Context) error {
	layout, err := d.cfg.layout()
	if err != nil {
		return err
	}

	d.d, err = daemon.New(layout)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	var serveErr error

	go func() {
		defer close(done)
		serveErr = d.d.Serve()
	}()

	select {
	case <-done:
		return serveErr
	case sig := <-sigCh:
		slog.Warn("caught signal", "sig", sig)
		return d.gracefulStop()
	case <-ctx.Done():
		slog.Warn("application context done", "err", ctx.Err())
		return d.gracefulStop()
	}
}

func (d *daemonCmd) gracefulStop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	var shutdownErr error

	go func() {
		defer close(done)
		shutdownErr = d.d.Shutdown(ctx)
	}()

	select {
	case <-done:
		slog.Info("shutdown gracefully")
		return shutdownErr
	case <-ctx.Done():
		slog.Warn("timed out waiting to shutdown")
		return ctx.Err()
	}
}
