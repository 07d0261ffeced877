// Command job is the CLI entry point: it wires internal/commands' cobra
// tree (one client-role command per daemon request, plus the server-role
// `daemon` command) and translates an *commands.ExitCodeError surfaced from
// a RunE into the process's actual exit status, the same way the donor
// repository's cmd/job-worker/main.go translates an *exec.ExitError.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job/internal/commands"
)

func main() {
	if err := run(); err != nil {
		os.Exit(exitCode(err))
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "job",
		Short: "A personal background job runner",

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(commands.Submit())
	root.AddCommand(commands.List())
	root.AddCommand(commands.Get())
	root.AddCommand(commands.Wait())
	root.AddCommand(commands.Stop())
	root.AddCommand(commands.Retry())
	root.AddCommand(commands.Logs())
	root.AddCommand(commands.Clean())
	root.AddCommand(commands.Daemon())

	ctx := context.Background()

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return nil
	}

	var exitErr *commands.ExitCodeError
	if errors.As(err, &exitErr) {
		return err
	}

	root.Println(cmd.UsageString())
	root.PrintErrln(root.ErrPrefix(), err.Error())
	return err
}

func exitCode(err error) int {
	var exitErr *commands.ExitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
