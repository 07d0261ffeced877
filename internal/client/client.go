// Package client is the Client (SPEC_FULL.md §4.6): it connects to the
// daemon's Unix-domain socket, performs one framed request/response
// exchange per call, and probes the pid file for daemon liveness (C8).
// Grounded on the donor repository's internal/client.Config/Flags pattern,
// retargeted from a TCP+TLS address at a socket path.
package client

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joshuarubin/job/internal/ipc"
)

// DialTimeout bounds how long Connect waits for the socket to accept a
// connection.
const DialTimeout = 5 * time.Second

// Client issues one framed request/response exchange at a time over a
// Unix-domain socket connection to the daemon.
type Client struct {
	socketPath string
	pidPath    string
}

// New returns a Client targeting the daemon listening at socketPath, with
// liveness probed via the pid file at pidPath.
func New(socketPath, pidPath string) *Client {
	return &Client{socketPath: socketPath, pidPath: pidPath}
}

// Send opens a connection, writes req, reads and returns the single
// response, and closes the connection. Connections are never pipelined
// (SPEC_FULL.md §4.3).
func (c *Client) Send(req *ipc.Request) (*ipc.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}
	defer conn.Close()

	if err := ipc.WriteRequest(conn, req); err != nil {
		return nil, err
	}

	resp, err := ipc.ReadResponse(conn)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// IsDaemonRunning reads the pid file, parses it, and probes the process
// with signal 0. It returns true only if the file exists, parses, and the
// process exists (SPEC_FULL.md §4.6/§4.8).
func (c *Client) IsDaemonRunning() bool {
	data, err := os.ReadFile(c.pidPath)
	if err != nil {
		return false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return proc.Signal(syscall.Signal(0)) == nil
}
