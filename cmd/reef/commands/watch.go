// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reef/cmd/reef/cli"
	"github.com/bureau-foundation/reef/lib/reefstream"
)

type watchParams struct {
	cli.Connection
	cli.JSONOutput
	Session string
	Count   int
}

func watchCommand(stdout io.Writer) *cli.Command {
	params := watchParams{JSONOutput: cli.JSONOutput{Writer: stdout}}
	return &cli.Command{
		Name:    "watch",
		Summary: "Follow the live event stream",
		Description: `Connect to the reef-core event stream and print every event as it
arrives, reconnecting with backoff when the connection drops. Runs
until interrupted, or until --count events have been printed.

With --json each event is printed as its raw envelope, one per line.
Malformed envelopes are skipped in both modes.`,
		Usage: "reef watch [flags]",
		Examples: []cli.Example{
			{Description: "Everything, human-readable", Command: "reef watch"},
			{Description: "One session as JSON lines", Command: "reef watch --session 3f2a --json"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlags(flagSet)
			flagSet.StringVarP(&params.Session, "session", "s", "", "only events for this session")
			flagSet.IntVarP(&params.Count, "count", "c", 0, "exit after this many events (0: unlimited)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("watch takes no arguments, got %q", args[0])
			}
			if params.Count < 0 {
				return cli.Validation("--count must not be negative")
			}
			cfg, err := params.Config()
			if err != nil {
				return err
			}

			channel := cli.Channel(cfg, logger)
			defer channel.Close()
			channel.Start()

			// In JSON mode the router only validates envelopes.
			printer := &eventPrinter{w: stdout, quiet: params.OutputJSON}
			router := reefstream.NewRouter(logger, printer.handlers())
			lines := json.NewEncoder(stdout)
			printed := 0
			for {
				var update reefstream.Update
				var ok bool
				select {
				case <-ctx.Done():
					return nil
				case update, ok = <-channel.Updates():
					if !ok {
						return nil
					}
				}

				if update.Kind == reefstream.UpdateState {
					logger.Info("stream connection", "state", string(update.State), "url", cfg.Service.StreamURL)
					continue
				}
				message := update.Message
				if params.Session != "" && message.SessionID != params.Session {
					continue
				}
				if !router.Route(message) {
					continue
				}
				if params.OutputJSON {
					if err := lines.Encode(message); err != nil {
						return err
					}
				}

				printed++
				if params.Count > 0 && printed >= params.Count {
					return nil
				}
			}
		},
	}
}

// eventPrinter renders events as single human-readable lines.
type eventPrinter struct {
	w     io.Writer
	quiet bool
}

func (p *eventPrinter) line(id, kind, format string, args ...any) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.w, "%-12s %-10s %s\n", id, kind, fmt.Sprintf(format, args...))
}

func (p *eventPrinter) handlers() reefstream.Handlers {
	return reefstream.Handlers{
		OnSessionNew: func(event reefstream.SessionNew) {
			detail := event.Task
			if event.Backend != "" {
				detail += " [" + event.Backend + "]"
			}
			p.line(event.ID, "new", "%s", detail)
		},
		OnSessionEnd: func(event reefstream.SessionEnd) {
			p.line(event.ID, "end", "%s", event.Reason)
		},
		OnOutput: func(event reefstream.Output) {
			text := strings.TrimRight(ansi.Strip(event.Text), "\n")
			if text == "" {
				return
			}
			kind := "output"
			if event.Meta {
				kind = "meta"
			}
			for _, line := range strings.Split(text, "\n") {
				p.line(event.ID, kind, "%s", line)
			}
		},
		OnStatusChange: func(event reefstream.StatusChange) {
			detail := event.Status.Label()
			if event.Error != "" {
				detail += ": " + event.Error
			}
			p.line(event.ID, "status", "%s", detail)
		},
		OnToolStart: func(event reefstream.ToolStart) {
			p.line(event.ID, "tool", "%s started", toolName(event.ToolName, event.ToolCallID))
		},
		OnToolEnd: func(event reefstream.ToolEnd) {
			outcome := "done"
			if event.IsError {
				outcome = "failed"
			}
			p.line(event.ID, "tool", "%s %s", toolName(event.ToolName, event.ToolCallID), outcome)
		},
	}
}

func toolName(name, callID string) string {
	if name == "" {
		return callID
	}
	return name
}
