package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job/internal/ipc"
	"github.com/joshuarubin/job/internal/job"
)

type retry struct {
	cfg Config

	jsonOutput bool
}

// Retry builds the `job retry` command.
func Retry() *cobra.Command {
	var r retry

	cmd := &cobra.Command{
		Use:   "retry <id|name>",
		Short: "Resubmit a prior job's command as a brand new job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, args[0])
		},
	}

	r.cfg.Flags(cmd)
	cmd.Flags().BoolVar(&r.jsonOutput, "json", false, "print the new job record as JSON")

	return cmd
}

func (r *retry) run(cmd *cobra.Command, idOrName string) error {
	cl, _, err := r.cfg.requireDaemon()
	if err != nil {
		return err
	}

	resp, err := cl.Send(&ipc.Request{Type: ipc.RequestRetry, ID: idOrName})
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

	return printJob(cmd.OutOrStdout(), &j, r.jsonOutput)
}
