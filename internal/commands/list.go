package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job/internal/ipc"
	"github.com/joshuarubin/job/internal/job"
)

type list struct {
	cfg Config

	status     string
	failed     bool
	limit      int
	all        bool
	jsonOutput bool
}

// List builds the `job list` command.
func List() *cobra.Command {
	var l list

	cmd := &cobra.Command{
		Use:   "list [flags]",
		Short: "List jobs known to the job daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return l.run(cmd)
		},
	}

	l.cfg.Flags(cmd)
	cmd.Flags().StringVar(&l.status, "status", "", "filter by status (pending, running, completed, failed, stopped, interrupted)")
	cmd.Flags().BoolVar(&l.failed, "failed", false, "shorthand for --status failed")
	cmd.Flags().IntVar(&l.limit, "limit", 50, "maximum number of jobs to list")
	cmd.Flags().BoolVar(&l.all, "all", false, "list all jobs, ignoring --limit")
	cmd.Flags().BoolVar(&l.jsonOutput, "json", false, "print the job list as JSON")

	return cmd
}

func (l *list) run(cmd *cobra.Command) error {
	cl, _, err := l.cfg.requireDaemon()
	if err != nil {
		return err
	}

	status := l.status
	if l.failed {
		status = job.StatusFailed.String()
	}

	req := &ipc.Request{Type: ipc.RequestList, Status: status}
	if !l.all {
		limit := l.limit
		req.Limit = &limit
	}

	resp, err := cl.Send(req)
	if err != nil {
		return err
	}
	if resp.Type == ipc.ResponseError {
		return fmt.Errorf("%s", resp.Error)
	}

	var jobs []*job.Job
	if len(resp.Jobs) > 0 {
		if err := json.Unmarshal(resp.Jobs, &jobs); err != nil {
			return fmt.Errorf("decode jobs: %w", err)
		}
	}

	if l.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), jobs)
	}

	printJobTable(cmd.OutOrStdout(), jobs)
	return nil
}
