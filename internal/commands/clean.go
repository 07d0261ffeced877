package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job/internal/durationx"
	"github.com/joshuarubin/job/internal/ipc"
)

type clean struct {
	cfg Config

	olderThan string
	status    string
	all       bool
}

// Clean builds the `job clean` command.
func Clean() *cobra.Command {
	var c clean

	cmd := &cobra.Command{
		Use:   "clean --older-than D [flags]",
		Short: "Delete terminal-state job records older than a duration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd)
		},
	}

	c.cfg.Flags(cmd)
	cmd.Flags().StringVar(&c.olderThan, "older-than", "", "delete jobs that finished more than this long ago (e.g. 7d, 24h)")
	cmd.Flags().StringVar(&c.status, "status", "", "restrict to this terminal status")
	cmd.Flags().BoolVar(&c.all, "all", false, "ignore --status and delete every eligible terminal job")
	_ = cmd.MarkFlagRequired("older-than")

	return cmd
}

func (c *clean) run(cmd *cobra.Command) error {
	cl, _, err := c.cfg.requireDaemon()
	if err != nil {
		return err
	}

	d, err := durationx.Parse(c.olderThan)
	if err != nil {
		return err
	}

	req := &ipc.Request{
		Type:          ipc.RequestClean,
		OlderThanSecs: int(d.Seconds()),
		Status:        c.status,
		All:           c.all,
	}

	resp, err := cl.Send(req)
	if err != nil {
		return err
	}
	if resp.Type == ipc.ResponseError {
		return fmt.Errorf("%s", resp.Error)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "cleaned")
	return nil
}
