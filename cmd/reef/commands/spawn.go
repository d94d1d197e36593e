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
	"github.com/bureau-foundation/reef/lib/schema/reef"
)

type spawnParams struct {
	cli.Connection
	cli.JSONOutput
	Provider string
	Model    string
	Workdir  string
	Backend  string
}

func spawnCommand(stdout io.Writer) *cli.Command {
	params := spawnParams{JSONOutput: cli.JSONOutput{Writer: stdout}}
	return &cli.Command{
		Name:    "spawn",
		Summary: "Start a new session",
		Description: `Ask reef-core to start a session working on a task. The remaining
arguments are joined with spaces to form the task. Provider, model,
working directory and backend default to the service's choice.`,
		Usage: "reef spawn <task...> [flags]",
		Examples: []cli.Example{
			{Description: "Spawn with the service defaults", Command: "reef spawn fix the flaky config test"},
			{Description: "Pick a model and directory", Command: "reef spawn --model opus --workdir ~/src/app 'write a changelog'"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("spawn", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlags(flagSet)
			flagSet.StringVar(&params.Provider, "provider", "", "model provider")
			flagSet.StringVar(&params.Model, "model", "", "model name")
			flagSet.StringVar(&params.Workdir, "workdir", "", "working directory for the agent")
			flagSet.StringVar(&params.Backend, "backend", "", "execution backend (e.g., tmux, sdk)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			task := strings.TrimSpace(strings.Join(args, " "))
			if task == "" {
				return cli.Validation("usage: reef spawn <task...>")
			}
			cfg, err := params.Config()
			if err != nil {
				return err
			}
			client, err := cli.Client(cfg, logger)
			if err != nil {
				return err
			}

			session, err := client.Spawn(ctx, reef.SpawnRequest{
				Task:     task,
				Provider: params.Provider,
				Model:    params.Model,
				Workdir:  params.Workdir,
				Backend:  params.Backend,
			})
			if done, emitErr := emitResult(&params.JSONOutput, session, err, cfg.Service.BaseURL); done {
				return emitErr
			}
			if err != nil {
				return cli.ServiceError(err, cfg.Service.BaseURL)
			}
			fmt.Fprintf(stdout, "spawned %s (%s)\n", session.ID, session.Status.Label())
			return nil
		},
	}
}
