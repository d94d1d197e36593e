// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reef/cmd/reef/cli"
)

type killParams struct {
	cli.Connection
	cli.JSONOutput
}

func killCommand(stdout io.Writer) *cli.Command {
	params := killParams{JSONOutput: cli.JSONOutput{Writer: stdout}}
	return &cli.Command{
		Name:    "kill",
		Summary: "Stop a session",
		Usage:   "reef kill <id> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("kill", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("usage: reef kill <id>")
			}
			id := args[0]
			cfg, err := params.Config()
			if err != nil {
				return err
			}
			client, err := cli.Client(cfg, logger)
			if err != nil {
				return err
			}

			err = client.Kill(ctx, id)
			if done, emitErr := emitResult(&params.JSONOutput, id, err, cfg.Service.BaseURL); done {
				return emitErr
			}
			if err != nil {
				return cli.ServiceError(err, cfg.Service.BaseURL)
			}
			fmt.Fprintf(stdout, "killed %s\n", id)
			return nil
		},
	}
}
