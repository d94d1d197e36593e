// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reef/cmd/reef/cli"
	"github.com/bureau-foundation/reef/lib/schema/reef"
	"github.com/bureau-foundation/reef/lib/sessionstore"
)

// taskColumnWidth bounds the TASK column of the session table.
const taskColumnWidth = 48

type sessionsParams struct {
	cli.Connection
	cli.JSONOutput
	Filter string
	Status string
}

func sessionsCommand(stdout io.Writer) *cli.Command {
	params := sessionsParams{JSONOutput: cli.JSONOutput{Writer: stdout}}
	return &cli.Command{
		Name:    "sessions",
		Summary: "List sessions",
		Description: `List every session reef-core knows about.

--filter fuzzy-matches the task, id, status, provider and model, and
orders the results by match quality. --status keeps only sessions in
one lifecycle state.`,
		Usage: "reef sessions [flags]",
		Examples: []cli.Example{
			{Description: "Running sessions as JSON", Command: "reef sessions --status running --json"},
			{Description: "Sessions about the config loader", Command: "reef sessions --filter cfgload"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("sessions", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlags(flagSet)
			flagSet.StringVarP(&params.Filter, "filter", "f", "", "fuzzy filter query")
			flagSet.StringVar(&params.Status, "status", "", "only sessions in this state (running, stopped, completed, error)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("sessions takes no arguments, got %q", args[0])
			}
			var status reef.Status
			if params.Status != "" {
				parsed, err := reef.ParseStatus(params.Status)
				if err != nil {
					return cli.Validation("--status: %w", err)
				}
				status = parsed
			}

			cfg, err := params.Config()
			if err != nil {
				return err
			}
			client, err := cli.Client(cfg, logger)
			if err != nil {
				return err
			}
			sessions, err := client.Sessions(ctx)
			if err != nil {
				return cli.ServiceError(err, cfg.Service.BaseURL)
			}

			if status != "" {
				kept := sessions[:0]
				for _, session := range sessions {
					if session.Status == status {
						kept = append(kept, session)
					}
				}
				sessions = kept
			}
			sessions = sessionstore.Filter(sessions, params.Filter)

			if done, err := params.EmitJSON(sessions); done {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(stdout, "No sessions.")
				return nil
			}
			return writeSessionTable(stdout, sessions)
		},
	}
}

func writeSessionTable(w io.Writer, sessions []reef.Session) error {
	table := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(table, "ID\tSTATUS\tTASK\tBACKEND\tMODEL\tUPDATED")
	for _, session := range sessions {
		model := session.Model
		if session.Provider != "" && model != "" {
			model = session.Provider + "/" + model
		}
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\t%s\n",
			session.ID,
			session.Status.Label(),
			ansi.Truncate(session.Task, taskColumnWidth, "…"),
			dash(session.Backend),
			dash(model),
			dash(session.UpdatedAt),
		)
	}
	return table.Flush()
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
