// Package main provides the ferry CLI entrypoint.
//
// Usage:
//
//	ferry <command> [options]
//
// Exit codes:
//   - 0: success (a run with failed records still exits 0; the error
//     file carries the failures)
//   - 1: usage or configuration error
//   - 2: authentication failure
//   - 3: I/O or transport failure
//   - 130: canceled by signal
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/copperline-io/ferry/cli/cmd"
	"github.com/copperline-io/ferry/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	// Credentials come from the environment; a local .env is a
	// convenience for development, missing is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:           "ferry",
		Usage:          "CSV to CRM batch synchronization",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.SyncCommand(),
			cmd.QueryCommand(),
			cmd.EnrichCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	// Unexpected error - print and exit with code 1
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
