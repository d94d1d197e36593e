// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reef/cmd/reef/cli"
)

type sendParams struct {
	cli.Connection
	cli.JSONOutput
}

func sendCommand(stdout io.Writer) *cli.Command {
	params := sendParams{JSONOutput: cli.JSONOutput{Writer: stdout}}
	return &cli.Command{
		Name:    "send",
		Summary: "Send a message to a session's agent",
		Description: `Deliver a message to a running session over HTTP. The arguments after
the session id are joined with spaces.`,
		Usage: "reef send <id> <message...> [flags]",
		Examples: []cli.Example{
			{Command: "reef send 3f2a 'also update the README'"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("send", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 2, "reef send <id> <message...>"); err != nil {
				return err
			}
			id := args[0]
			message := strings.Join(args[1:], " ")
			if strings.TrimSpace(message) == "" {
				return cli.Validation("message is empty")
			}

			cfg, err := params.Config()
			if err != nil {
				return err
			}
			client, err := cli.Client(cfg, logger)
			if err != nil {
				return err
			}

			err = client.Send(ctx, id, message)
			if done, emitErr := emitResult(&params.JSONOutput, id, err, cfg.Service.BaseURL); done {
				return emitErr
			}
			if err != nil {
				return cli.ServiceError(err, cfg.Service.BaseURL)
			}
			fmt.Fprintf(stdout, "sent to %s\n", id)
			return nil
		},
	}
}
