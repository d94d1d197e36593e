// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reef/cmd/reef/cli"
)

type statusParams struct {
	cli.Connection
	cli.JSONOutput
}

func statusCommand(stdout io.Writer) *cli.Command {
	params := statusParams{JSONOutput: cli.JSONOutput{Writer: stdout}}
	return &cli.Command{
		Name:    "status",
		Summary: "Check that reef-core is reachable",
		Description: `Query GET /status and print the service uptime.

Exits 4 when the service cannot be reached, so scripts can wait for
reef-core with a retry loop.`,
		Usage: "reef status [flags]",
		Examples: []cli.Example{
			{Description: "Wait for a freshly started service", Command: "until reef status; do sleep 1; done"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("status takes no arguments, got %q", args[0])
			}
			cfg, err := params.Config()
			if err != nil {
				return err
			}
			client, err := cli.Client(cfg, logger)
			if err != nil {
				return err
			}

			status, err := client.Status(ctx)
			if done, emitErr := emitResult(&params.JSONOutput, status, err, cfg.Service.BaseURL); done {
				return emitErr
			}
			if err != nil {
				return cli.ServiceError(err, cfg.Service.BaseURL)
			}

			uptime := time.Duration(status.Uptime * float64(time.Second)).Round(time.Second)
			fmt.Fprintf(stdout, "reef-core at %s\n", cfg.Service.BaseURL)
			fmt.Fprintf(stdout, "  uptime   %s\n", uptime)
			if status.Version != "" {
				fmt.Fprintf(stdout, "  version  %s\n", status.Version)
			}
			return nil
		},
	}
}
