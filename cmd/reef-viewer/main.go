// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// reef-viewer is the interactive terminal console for reef-core. It
// shows every session with live status and streamed output, and can
// spawn, message and kill sessions.
//
// The session list and visible output are saved to a snapshot cache on
// exit and shown immediately on the next start until the first refresh
// from the service replaces them. --no-cache disables this.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reef/cmd/reef/cli"
	"github.com/bureau-foundation/reef/lib/console"
	"github.com/bureau-foundation/reef/lib/reefui"
	"github.com/bureau-foundation/reef/lib/sessionstore"
	"github.com/bureau-foundation/reef/lib/version"
)

func main() {
	if err := run(); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.ExitCodeFor(err))
	}
}

func run() error {
	var connection cli.Connection
	var logOutput string
	var noCache bool
	var raw bool

	flagSet := pflag.NewFlagSet("reef-viewer", pflag.ContinueOnError)
	connection.AddFlags(flagSet)
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file (in addition to the status bar)")
	flagSet.BoolVar(&noCache, "no-cache", false, "neither read nor write the snapshot cache")
	flagSet.BoolVar(&raw, "raw", false, "start the output pane in raw mode instead of speaker blocks")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print(os.Stdout, "reef-viewer")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return cli.Validation("%w", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return cli.Validation("unexpected argument: %s", args[0])
	}

	cfg, err := connection.Config()
	if err != nil {
		return err
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return cli.Validation("%w", err)
	}

	// Records at Warn and above surface in the status bar; stderr is
	// unusable under the alt screen.
	tuiHandler := reefui.NewLogHandler(slog.LevelWarn)
	var logger *slog.Logger
	if logOutput != "" {
		fileHandler, fileCloser, fileErr := openFileLogHandler(logOutput, level)
		if fileErr != nil {
			return cli.Validation("cannot open log file %s: %w", logOutput, fileErr)
		}
		defer fileCloser()
		logger = slog.New(fanoutHandler{tuiHandler, fileHandler})
	} else {
		logger = slog.New(tuiHandler)
	}

	client, err := cli.Client(cfg, logger)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	channel := cli.Channel(cfg, logger)
	defer channel.Close()

	store := sessionstore.New(sessionstore.StoreConfig{
		MaxFragments: cfg.Buffer.MaxFragments,
		MaxBytes:     cfg.Buffer.MaxBytes,
		MaxOrphans:   cfg.Buffer.MaxOrphans,
		Logger:       logger,
	})

	var cacheConfig *console.CacheConfig
	if !noCache && cfg.Cache.Path != "" {
		options, err := cli.CacheOptions(cfg)
		if err != nil {
			return err
		}
		if options.Key != nil {
			defer options.Key.Close()
			if !options.Key.Locked() {
				logger.Debug("cache key is not locked in memory; raise RLIMIT_MEMLOCK to pin it")
			}
		}
		cacheConfig = &console.CacheConfig{
			Path:    cfg.Cache.Path,
			BaseURL: cfg.Service.BaseURL,
			Options: options,
		}
		warmed, err := console.WarmStart(store, *cacheConfig)
		if err != nil {
			logger.Warn("ignoring snapshot cache", "path", cfg.Cache.Path, "error", err)
		} else if warmed {
			logger.Debug("warm start from snapshot cache", "path", cfg.Cache.Path, "sessions", store.Len())
		}
	}

	controller, err := console.New(console.Config{
		API:             client,
		Stream:          channel,
		Store:           store,
		RefreshInterval: cfg.Refresh.Interval,
		OutputLines:     cfg.Refresh.OutputLines,
		Logger:          logger,
		Cache:           cacheConfig,
	})
	if err != nil {
		return cli.Internal("%w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model, err := reefui.New(reefui.Config{
		Controller: controller,
		Context:    ctx,
		Raw:        raw,
		Logger:     logger,
	})
	if err != nil {
		return cli.Internal("%w", err)
	}
	program := tea.NewProgram(model, tea.WithAltScreen())
	tuiHandler.SetProgram(program)

	done := make(chan error, 1)
	go func() {
		done <- controller.Run(ctx)
	}()

	_, err = program.Run()
	cancel()
	// Run saves the snapshot cache on the way out; wait for it before
	// the key is closed.
	<-done
	return err
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `reef-viewer: interactive console for reef-core sessions.

Connects to reef-core (default http://localhost:7777, or REEF_URL, or
the file named by REEF_CONFIG) and shows every session with its live
status and streamed output.

Keys:
  ↑/↓ j/k   move            ⏎        select session
  /         filter          s        spawn session
  m         message         K        kill session
  r         refresh         x        remove from list
  b         blocks / raw    Tab      focus output pane
  q         quit

Usage:
  reef-viewer [flags]

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

// openFileLogHandler creates a JSON handler writing to path, which is
// created or truncated.
func openFileLogHandler(path string, level slog.Leveler) (slog.Handler, func(), error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return handler, func() { file.Close() }, nil
}

// fanoutHandler sends each record to every handler enabled for its
// level.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
