// Package commands builds the CLI's cobra.Command tree: one client-role
// command per daemon RPC, plus the daemon server command (SPEC_FULL.md
// §6.1). Each command is a small type X struct { cfg Config } constructed
// by a Foo() *cobra.Command function, mirroring the donor repository's
// commands package shape; Config.Flags registers the one flag every
// client-role command shares, generalized from the donor's TCP+TLS
// client.Config to a home-directory root that resolves to a socket and pid
// file.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job/internal/client"
	"github.com/joshuarubin/job/internal/paths"
)

// Config is embedded by every client-role command struct.
type Config struct {
	home string
}

// Flags registers the shared --home flag onto cmd.
func (c *Config) Flags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.home, "home", "", "job home directory (default: $HOME/.job)")
}

func (c *Config) layout() (paths.Layout, error) {
	return paths.New(c.home)
}

// client resolves the layout and returns a Client for it. It does not
// itself check whether the daemon is reachable; callers that need a
// friendly "daemon not running" message should call requireDaemon first.
func (c *Config) client() (*client.Client, paths.Layout, error) {
	l, err := c.layout()
	if err != nil {
		return nil, paths.Layout{}, fmt.Errorf("resolve home directory: %w", err)
	}
	return client.New(l.Socket(), l.PidFile()), l, nil
}

// requireDaemon returns a Client after confirming the daemon appears to be
// running, or a one-line error suitable for direct display otherwise.
func (c *Config) requireDaemon() (*client.Client, paths.Layout, error) {
	cl, l, err := c.client()
	if err != nil {
		return nil, l, err
	}
	if !cl.IsDaemonRunning() {
		return nil, l, fmt.Errorf("daemon is not running (start it with: job daemon)")
	}
	return cl, l, nil
}
