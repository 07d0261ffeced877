package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/joshuarubin/job/internal/job"
)

// printJob renders j either as JSON (asJSON) or as a human-readable,
// labeled field list with relative timestamps (SPEC_FULL.md §6.1).
func printJob(w io.Writer, j *job.Job, asJSON bool) error {
	if asJSON {
		return writeJSON(w, j)
	}

	fmt.Fprintf(w, "id:         %s\n", j.ID.String())
	fmt.Fprintf(w, "name:       %s\n", optString(j.Name))
	fmt.Fprintf(w, "status:     %s\n", j.Status)
	fmt.Fprintf(w, "command:    %s\n", j.Command)
	fmt.Fprintf(w, "project:    %s\n", j.Project)
	fmt.Fprintf(w, "cwd:        %s\n", j.Cwd)
	fmt.Fprintf(w, "pid:        %s\n", optInt(j.Pid))
	fmt.Fprintf(w, "exit_code:  %s\n", optInt(j.ExitCode))
	fmt.Fprintf(w, "created:    %s\n", relativeTime(j.CreatedAt))
	fmt.Fprintf(w, "started:    %s\n", optTime(j.StartedAt))
	fmt.Fprintf(w, "finished:   %s\n", optTime(j.FinishedAt))
	return nil
}

// printJobTable renders a one-line-per-job summary table.
func printJobTable(w io.Writer, jobs []*job.Job) {
	fmt.Fprintf(w, "%-14s  %-10s  %-10s  %-20s  %s\n", "ID", "STATUS", "PID", "CREATED", "COMMAND")
	for _, j := range jobs {
		fmt.Fprintf(w, "%-14s  %-10s  %-10s  %-20s  %s\n",
			j.ShortID(), j.Status, optInt(j.Pid), relativeTime(j.CreatedAt), j.Command)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optString(s *string) string {
	if s == nil {
		return "N/A"
	}
	return *s
}

func optInt(n *int) string {
	if n == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *n)
}

func optTime(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return relativeTime(*t)
}

// relativeTime renders t relative to now, e.g. "just now", "2 minutes ago".
func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%d seconds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	}
}
