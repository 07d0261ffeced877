package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job/internal/ipc"
	"github.com/joshuarubin/job/internal/job"
)

type get struct {
	cfg Config

	jsonOutput bool
}

// Get builds the `job get` command.
func Get() *cobra.Command {
	var g get

	cmd := &cobra.Command{
		Use:   "get <id|name>",
		Short: "Get a job's record by id (or unambiguous prefix) or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, args[0])
		},
	}

	g.cfg.Flags(cmd)
	cmd.Flags().BoolVar(&g.jsonOutput, "json", false, "print the job record as JSON")

	return cmd
}

func (g *get) run(cmd *cobra.Command, idOrName string) error {
	cl, _, err := g.cfg.requireDaemon()
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

	return printJob(cmd.OutOrStdout(), &j, g.jsonOutput)
}
