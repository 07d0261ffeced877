package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job/internal/durationx"
	"github.com/joshuarubin/job/internal/ipc"
	"github.com/joshuarubin/job/internal/job"
)

type wait struct {
	cfg Config

	timeout    string
	jsonOutput bool
}

// Wait builds the `job wait` command.
func Wait() *cobra.Command {
	var w wait

	cmd := &cobra.Command{
		Use:   "wait <id|name>",
		Short: "Block until a job reaches a terminal status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return w.run(cmd, args[0])
		},
	}

	w.cfg.Flags(cmd)
	cmd.Flags().StringVar(&w.timeout, "timeout", "", "give up after this duration (e.g. 30s, 5m, 1h, 1d)")
	cmd.Flags().BoolVar(&w.jsonOutput, "json", false, "print the job record as JSON")

	return cmd
}

func (w *wait) run(cmd *cobra.Command, idOrName string) error {
	cl, _, err := w.cfg.requireDaemon()
	if err != nil {
		return err
	}

	req := &ipc.Request{Type: ipc.RequestWait, ID: idOrName}
	if w.timeout != "" {
		d, err := durationx.Parse(w.timeout)
		if err != nil {
			return err
		}
		secs := int(d.Seconds())
		req.TimeoutSecs = &secs
	}

	resp, err := cl.Send(req)
	if err != nil {
		return err
	}
	if resp.Type == ipc.ResponseError {
		if strings.Contains(resp.Error, "wait timed out") {
			return &ExitCodeError{Code: 124}
		}
		return fmt.Errorf("%s", resp.Error)
	}

	var j job.Job
	if err := json.Unmarshal(resp.Job, &j); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}

	if err := printJob(cmd.OutOrStdout(), &j, w.jsonOutput); err != nil {
		return err
	}

	if j.ExitCode != nil {
		return &ExitCodeError{Code: *j.ExitCode}
	}
	if j.Status != job.StatusCompleted {
		return &ExitCodeError{Code: 1}
	}
	return nil
}
