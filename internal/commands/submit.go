package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job/internal/durationx"
	"github.com/joshuarubin/job/internal/ipc"
	"github.com/joshuarubin/job/internal/job"
)

type submit struct {
	cfg Config

	name        string
	timeout     string
	contextJSON string
	key         string
	wait        bool
	jsonOutput  bool
}

// Submit builds the `job submit` command.
func Submit() *cobra.Command {
	var s submit

	cmd := &cobra.Command{
		Use:   "submit [flags] -- command [args]...",
		Short: "Submit a command to the job daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(cmd, args)
		},
	}

	s.cfg.Flags(cmd)
	cmd.Flags().StringVar(&s.name, "name", "", "a human-friendly name for the job")
	cmd.Flags().StringVar(&s.timeout, "timeout", "", "kill the job after this duration (e.g. 30s, 5m, 1h, 1d)")
	cmd.Flags().StringVar(&s.contextJSON, "context", "", "arbitrary JSON metadata to attach to the job")
	cmd.Flags().StringVar(&s.key, "key", "", "idempotency key: resubmitting the same key returns the existing job")
	cmd.Flags().BoolVar(&s.wait, "wait", false, "block until the job reaches a terminal status")
	cmd.Flags().BoolVar(&s.jsonOutput, "json", false, "print the job record as JSON")

	return cmd
}

func (s *submit) run(cmd *cobra.Command, args []string) error {
	cl, _, err := s.cfg.requireDaemon()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve cwd: %w", err)
	}

	req := &ipc.Request{
		Type:           ipc.RequestSubmit,
		Command:        strings.Join(args, " "),
		Name:           s.name,
		Cwd:            cwd,
		Project:        filepath.Base(cwd),
		IdempotencyKey: s.key,
	}

	if s.timeout != "" {
		d, err := durationx.Parse(s.timeout)
		if err != nil {
			return err
		}
		secs := int(d.Seconds())
		req.TimeoutSecs = &secs
	}

	if s.contextJSON != "" {
		if !json.Valid([]byte(s.contextJSON)) {
			return fmt.Errorf("--context is not valid JSON")
		}
		req.Context = json.RawMessage(s.contextJSON)
	}

	resp, err := cl.Send(req)
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

	if s.wait {
		waitReq := &ipc.Request{Type: ipc.RequestWait, ID: j.ID.String()}
		resp, err := cl.Send(waitReq)
		if err != nil {
			return err
		}
		if resp.Type == ipc.ResponseError {
			return fmt.Errorf("%s", resp.Error)
		}
		if err := json.Unmarshal(resp.Job, &j); err != nil {
			return fmt.Errorf("decode job: %w", err)
		}
	}

	return printJob(cmd.OutOrStdout(), &j, s.jsonOutput)
}
