// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func quietRoot(subcommands ...*Command) (*Command, *bytes.Buffer) {
	var help bytes.Buffer
	return &Command{
		Name:        "reef",
		Subcommands: subcommands,
		Output:      &help,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, &help
}

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string
	record := func(name string) func(context.Context, []string, *slog.Logger) error {
		return func(context.Context, []string, *slog.Logger) error {
			called = name
			return nil
		}
	}
	root, _ := quietRoot(
		&Command{Name: "status", Run: record("status")},
		&Command{Name: "sessions", Run: record("sessions")},
	)

	if err := root.Execute(context.Background(), []string{"sessions"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "sessions" {
		t.Errorf("dispatched to %q, want sessions", called)
	}
}

func TestCommand_Execute_ParsesFlagsAndPassesLogger(t *testing.T) {
	var lines int
	var receivedArgs []string
	var receivedLogger *slog.Logger
	root, _ := quietRoot(&Command{
		Name: "output",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("output", pflag.ContinueOnError)
			flagSet.IntVar(&lines, "lines", 100, "lines")
			return flagSet
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			receivedArgs = args
			receivedLogger = logger
			return nil
		},
	})

	if err := root.Execute(context.Background(), []string{"output", "--lines", "20", "s1"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if lines != 20 {
		t.Errorf("lines = %d, want 20", lines)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "s1" {
		t.Errorf("args = %v, want [s1]", receivedArgs)
	}
	if receivedLogger != root.Logger {
		t.Error("subcommand should inherit the root logger")
	}
}

func TestCommand_Execute_UnknownCommandSuggests(t *testing.T) {
	root, _ := quietRoot(&Command{Name: "sessions", Run: func(context.Context, []string, *slog.Logger) error { return nil }})

	err := root.Execute(context.Background(), []string{"sesions"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "sessions"`) {
		t.Errorf("error = %q, want a suggestion", err)
	}
	if ExitCodeFor(err) != ExitValidation {
		t.Errorf("exit code = %d, want %d", ExitCodeFor(err), ExitValidation)
	}
}

func TestCommand_Execute_UnknownFlagSuggests(t *testing.T) {
	var asJSON bool
	root, _ := quietRoot(&Command{
		Name: "sessions",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("sessions", pflag.ContinueOnError)
			flagSet.BoolVar(&asJSON, "json", false, "json")
			return flagSet
		},
		Run: func(context.Context, []string, *slog.Logger) error { return nil },
	})

	err := root.Execute(context.Background(), []string{"sessions", "--jsn"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "did you mean --json?") {
		t.Errorf("error = %q, want --json suggestion", err)
	}
	if !strings.Contains(err.Error(), "reef sessions --help") {
		t.Errorf("error = %q, want a help pointer with the full command path", err)
	}
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	root, help := quietRoot(&Command{Name: "status", Summary: "Show service status"})
	err := root.Execute(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Fatalf("error = %v, want subcommand required", err)
	}
	if !strings.Contains(help.String(), "Show service status") {
		t.Errorf("help output missing subcommand summary:\n%s", help.String())
	}
}

func TestCommand_Execute_RunErrorPassesThrough(t *testing.T) {
	sentinel := errors.New("boom")
	root, _ := quietRoot(&Command{Name: "kill", Run: func(context.Context, []string, *slog.Logger) error { return sentinel }})
	if err := root.Execute(context.Background(), []string{"kill"}); !errors.Is(err, sentinel) {
		t.Errorf("error = %v, want sentinel", err)
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	var lines int
	command := &Command{
		Name:        "output",
		Description: "Print a session's transcript.",
		Usage:       "reef output <id> [flags]",
		Examples: []Example{
			{Description: "Last 50 lines", Command: "reef output s1 --lines 50"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("output", pflag.ContinueOnError)
			flagSet.IntVar(&lines, "lines", 100, "trailing lines to request")
			return flagSet
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	help := buffer.String()
	for _, want := range []string{
		"Print a session's transcript.",
		"reef output <id> [flags]",
		"--lines",
		"trailing lines to request",
		"# Last 50 lines",
		"reef output s1 --lines 50",
	} {
		if !strings.Contains(help, want) {
			t.Errorf("help missing %q:\n%s", want, help)
		}
	}
}

func TestCommand_Execute_HelpFlag(t *testing.T) {
	called := false
	root, help := quietRoot(&Command{
		Name:    "status",
		Summary: "Show service status",
		Run: func(context.Context, []string, *slog.Logger) error {
			called = true
			return nil
		},
	})
	if err := root.Execute(context.Background(), []string{"status", "--help"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called {
		t.Error("--help should not run the command")
	}
	if !strings.Contains(help.String(), "reef status [flags]") {
		t.Errorf("help = %q, want synthesized usage", help.String())
	}
}
