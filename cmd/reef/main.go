// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// reef is the command-line client for reef-core: list, spawn, message
// and kill agent sessions, print transcripts, and follow the live
// event stream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/reef/cmd/reef/cli"
	"github.com/bureau-foundation/reef/cmd/reef/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that already reported the failure (--json envelopes)
		// return an ExitError carrying only the exit code.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.ExitCodeFor(err))
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commands.Root(os.Stdout).Execute(ctx, os.Args[1:])
}
