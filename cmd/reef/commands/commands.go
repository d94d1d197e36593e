// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the reef CLI command tree. Every command
// writes its results to the writer passed to Root and its diagnostics
// to the slog logger, so tests can drive the tree end to end against
// an httptest server.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reef/cmd/reef/cli"
	"github.com/bureau-foundation/reef/lib/reefapi"
	"github.com/bureau-foundation/reef/lib/version"
)

// Root builds the complete reef command tree writing to stdout.
func Root(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name: "reef",
		Description: `reef: command-line client for reef-core.

Inspect and drive agent sessions running on a reef-core service: list
them, spawn new ones, message or kill them, print their transcripts,
and follow the live event stream.`,
		Subcommands: []*cli.Command{
			statusCommand(stdout),
			sessionsCommand(stdout),
			spawnCommand(stdout),
			sendCommand(stdout),
			killCommand(stdout),
			outputCommand(stdout),
			watchCommand(stdout),
			cacheCommand(stdout),
			versionCommand(stdout),
		},
	}
}

func versionCommand(stdout io.Writer) *cli.Command {
	var verbose bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flagSet.BoolVarP(&verbose, "verbose", "v", false, "include the Go version and platform")
			return flagSet
		},
		Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
			if verbose {
				fmt.Fprintf(stdout, "reef %s\n", version.Full())
				return nil
			}
			version.Print(stdout, "reef")
			return nil
		},
	}
}

// emitResult writes the {ok, data} / {ok, error} envelope when --json
// is set. A failed call still exits non-zero after its envelope is
// written, with the code its error category selects.
func emitResult[T any](output *cli.JSONOutput, data T, err error, baseURL string) (bool, error) {
	done, writeErr := output.EmitJSON(reefapi.Wrap(data, err))
	if !done {
		return false, nil
	}
	if writeErr != nil {
		return true, writeErr
	}
	if err != nil {
		return true, &cli.ExitError{Code: cli.ExitCodeFor(cli.ServiceError(err, baseURL))}
	}
	return true, nil
}

// requireArgs validates the positional argument count.
func requireArgs(args []string, minimum int, usage string) error {
	if len(args) < minimum {
		return cli.Validation("usage: %s", usage)
	}
	return nil
}
