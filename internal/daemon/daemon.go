// Package daemon is the Daemon Server (SPEC_FULL.md §4.5): it runs the
// strictly-ordered startup sequence, accepts Unix-domain connections,
// dispatches each framed request to the Supervisor or Job Store, and owns
// the pid-file/socket-file lifecycle. Grounded on the donor repository's
// internal/server.Server (Serve/Stop/GracefulStop shape) adapted from a
// gRPC+mTLS listener to a raw length-prefixed Unix socket, and on the
// broader example pack's startup-sequencing convention (validate -> ensure
// dirs -> open store -> recover -> bind -> accept) documented in DESIGN.md.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joshuarubin/job/internal/ipc"
	"github.com/joshuarubin/job/internal/job"
	"github.com/joshuarubin/job/internal/joberrors"
	"github.com/joshuarubin/job/internal/jobstore"
	"github.com/joshuarubin/job/internal/paths"
	"github.com/joshuarubin/job/internal/supervisor"
)

// Daemon is the long-lived supervisor process: store + supervisor + a
// Unix-domain listener.
type Daemon struct {
	layout paths.Layout
	store  *jobstore.Store
	sup    *supervisor.Supervisor

	listener net.Listener

	wg sync.WaitGroup
}

// New performs SPEC_FULL.md §4.5's startup sequence steps 2-6: compute
// paths and ensure directories, open the store and recover orphans, write
// the pid file, remove any stale socket, and bind the listener. Step 1
// (configure logging) and step 7 (accept loop) are the caller's
// responsibility via Serve.
func New(layout paths.Layout) (*Daemon, error) {
	if err := layout.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("daemon: ensure dirs: %w", err)
	}

	store, err := jobstore.New(layout.DB())
	if err != nil {
		return nil, fmt.Errorf("daemon: open store: %w", err)
	}

	sup := supervisor.New(store, layout)

	ctx := context.Background()
	n, err := sup.RecoverOrphans(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("daemon: recover orphans: %w", err)
	}
	if n > 0 {
		slog.Warn("recovered orphaned jobs", "count", n)
	}

	if err := writePidFile(layout.PidFile()); err != nil {
		store.Close()
		return nil, fmt.Errorf("daemon: write pid file: %w", err)
	}

	if err := os.Remove(layout.Socket()); err != nil && !os.IsNotExist(err) {
		store.Close()
		return nil, fmt.Errorf("daemon: remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", layout.Socket())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("daemon: listen: %w", err)
	}

	return &Daemon{
		layout:   layout,
		store:    store,
		sup:      sup,
		listener: listener,
	}, nil
}

func writePidFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// Serve runs the accept loop; each connection is handled in its own
// goroutine. It returns once the listener is closed by Shutdown.
func (d *Daemon) Serve() error {
	slog.Info("daemon listening", "socket", d.layout.Socket())

	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				d.wg.Wait()
				return nil
			}
			return fmt.Errorf("daemon: accept: %w", err)
		}

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handleConn(conn)
		}()
	}
}

func (d *Daemon) handleConn(conn net.Conn) {
	defer conn.Close()

	req, err := ipc.ReadRequest(conn)
	if err != nil {
		if errors.Is(err, joberrors.ErrFrameTooLarge) {
			slog.Warn("frame too large, closing connection")
		}
		return
	}

	resp := d.dispatch(context.Background(), req)

	if err := ipc.WriteResponse(conn, resp); err != nil {
		slog.Warn("failed to write response", "err", err)
	}
}

func (d *Daemon) dispatch(ctx context.Context, req *ipc.Request) *ipc.Response {
	switch req.Type {
	case ipc.RequestPing:
		return &ipc.Response{Type: ipc.ResponsePong}

	case ipc.RequestSubmit:
		return d.handleSubmit(ctx, req)

	case ipc.RequestStop:
		if err := d.sup.Stop(ctx, req.ID, req.Force); err != nil {
			return ipc.ErrorResponse(err)
		}
		return &ipc.Response{Type: ipc.ResponseOk}

	case ipc.RequestWait:
		j, err := d.sup.Wait(ctx, req.ID, req.TimeoutSecs)
		if err != nil {
			return ipc.ErrorResponse(err)
		}
		return jobResponse(j)

	case ipc.RequestGet:
		j, err := d.store.Resolve(ctx, req.ID)
		if err != nil {
			return ipc.ErrorResponse(err)
		}
		return jobResponse(j)

	case ipc.RequestList:
		return d.handleList(ctx, req)

	case ipc.RequestRetry:
		j, err := d.sup.Retry(ctx, req.ID)
		if err != nil {
			return ipc.ErrorResponse(err)
		}
		return jobResponse(j)

	case ipc.RequestClean:
		return d.handleClean(ctx, req)

	case ipc.RequestStatus:
		info, err := d.sup.Info(ctx)
		if err != nil {
			return ipc.ErrorResponse(err)
		}
		return &ipc.Response{Type: ipc.ResponseStatus, Status: &ipc.StatusInfo{
			UptimeSecs:   info.UptimeSecs,
			RunningCount: info.RunningCount,
			TotalJobs:    info.TotalJobs,
		}}

	default:
		return ipc.ErrorResponse(fmt.Errorf("unknown request type %q", req.Type))
	}
}

func (d *Daemon) handleSubmit(ctx context.Context, req *ipc.Request) *ipc.Response {
	params := supervisor.SubmitParams{
		Command: req.Command,
		Cwd:     req.Cwd,
		Project: req.Project,
		Context: req.Context,
	}
	if req.Name != "" {
		name := req.Name
		params.Name = &name
	}
	if req.TimeoutSecs != nil {
		params.TimeoutSecs = req.TimeoutSecs
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		params.IdempotencyKey = &key
	}

	j, err := d.sup.Submit(ctx, params)
	if err != nil {
		return ipc.ErrorResponse(err)
	}
	return jobResponse(j)
}

func (d *Daemon) handleList(ctx context.Context, req *ipc.Request) *ipc.Response {
	var status *job.Status
	if req.Status != "" {
		st, err := job.StatusFromString(req.Status)
		if err != nil {
			return ipc.ErrorResponse(err)
		}
		status = &st
	}

	jobs, err := d.store.List(ctx, status, req.Limit)
	if err != nil {
		return ipc.ErrorResponse(err)
	}

	raw, err := json.Marshal(jobs)
	if err != nil {
		return ipc.ErrorResponse(err)
	}
	return &ipc.Response{Type: ipc.ResponseJobs, Jobs: raw}
}

func (d *Daemon) handleClean(ctx context.Context, req *ipc.Request) *ipc.Response {
	var status *job.Status
	if req.Status != "" && !req.All {
		st, err := job.StatusFromString(req.Status)
		if err != nil {
			return ipc.ErrorResponse(err)
		}
		status = &st
	}

	before := time.Now().UTC().Add(-time.Duration(req.OlderThanSecs) * time.Second)
	if _, err := d.store.DeleteOld(ctx, before, status); err != nil {
		return ipc.ErrorResponse(err)
	}

	d.sweepOrphanLogs(ctx)

	return &ipc.Response{Type: ipc.ResponseOk}
}

// sweepOrphanLogs removes log files left behind by jobs whose store row no
// longer exists, the way the original implementation's `clean` command does.
// It re-checks the store per file rather than working off the set of ids just
// deleted, so a job submitted between DeleteOld and this scan can't have its
// log pulled out from under it. Failures are logged and otherwise ignored:
// this is best-effort housekeeping, not something a client should fail clean
// over.
func (d *Daemon) sweepOrphanLogs(ctx context.Context) {
	entries, err := os.ReadDir(d.layout.LogsDir())
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("clean: read logs dir", "error", err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stem, ok := strings.CutSuffix(name, ".log")
		if !ok {
			continue
		}

		if _, err := d.store.Get(ctx, stem); err == nil {
			continue
		} else if !errors.Is(err, joberrors.ErrNotFound) {
			// ambiguous or unexpected lookup errors: leave the file alone
			slog.Warn("clean: check orphan log", "file", name, "error", err)
			continue
		}

		path := filepath.Join(d.layout.LogsDir(), name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("clean: remove orphan log", "file", name, "error", err)
		}
	}
}

func jobResponse(j *job.Job) *ipc.Response {
	raw, err := json.Marshal(j)
	if err != nil {
		return ipc.ErrorResponse(err)
	}
	return &ipc.Response{Type: ipc.ResponseJob, Job: raw}
}

// Shutdown implements the shutdown half of SPEC_FULL.md §4.5: stop
// accepting, interrupt every running job, then remove the pid and socket
// files.
func (d *Daemon) Shutdown(ctx context.Context) error {
	if err := d.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Warn("error closing listener", "err", err)
	}

	d.sup.Shutdown(ctx)

	if err := os.Remove(d.layout.PidFile()); err != nil && !os.IsNotExist(err) {
		slog.Warn("error removing pid file", "err", err)
	}
	if err := os.Remove(d.layout.Socket()); err != nil && !os.IsNotExist(err) {
		slog.Warn("error removing socket file", "err", err)
	}

	return d.store.Close()
}
