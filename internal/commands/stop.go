package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job/internal/ipc"
)

type stop struct {
	cfg Config

	force bool
}

// Stop builds the `job stop` command.
func Stop() *cobra.Command {
	var s stop

	cmd := &cobra.Command{
		Use:   "stop <id|name>",
		Short: "Stop a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(cmd, args[0])
		},
	}

	s.cfg.Flags(cmd)
	cmd.Flags().BoolVar(&s.force, "force", false, "send SIGKILL instead of SIGTERM")

	return cmd
}

func (s *stop) run(cmd *cobra.Command, idOrName string) error {
	cl, _, err := s.cfg.requireDaemon()
	if err != nil {
		return err
	}

	resp, err := cl.Send(&ipc.Request{Type: ipc.RequestStop, ID: idOrName, Force: s.force})
	if err != nil {
		return err
	}
	if resp.Type == ipc.ResponseError {
		return fmt.Errorf("%s", resp.Error)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "stopping")
	return nil
}
