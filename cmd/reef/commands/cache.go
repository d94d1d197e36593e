// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reef/cmd/reef/cli"
	"github.com/bureau-foundation/reef/lib/codec"
	"github.com/bureau-foundation/reef/lib/snapcache"
)

func cacheCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "cache",
		Summary: "Inspect or clear the warm-start snapshot cache",
		Description: `The viewer saves its session list and visible output to a snapshot
file on exit and shows it immediately on the next start, until the
first refresh arrives. These commands operate on that file.`,
		Subcommands: []*cli.Command{
			cacheInspectCommand(stdout),
			cacheClearCommand(stdout),
		},
	}
}

type cacheInspectParams struct {
	cli.Connection
	cli.JSONOutput
	Diagnose bool
}

// cacheSummary is the inspect output.
type cacheSummary struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Compression string    `json:"compression"`
	Encrypted   bool      `json:"encrypted"`
	Checksum    string    `json:"checksum"`
	PayloadSize int       `json:"payload_size"`
	SavedAt     time.Time `json:"saved_at"`
	BaseURL     string    `json:"base_url"`
	Sessions    int       `json:"sessions"`
	Outputs     int       `json:"outputs"`
}

func cacheInspectCommand(stdout io.Writer) *cli.Command {
	params := cacheInspectParams{JSONOutput: cli.JSONOutput{Writer: stdout}}
	return &cli.Command{
		Name:    "inspect",
		Summary: "Describe the snapshot cache file",
		Description: `Print the cache file's header and a summary of its contents.
Encrypted caches are opened with the configured key file. --diag
prints the decoded snapshot in CBOR diagnostic notation instead.`,
		Usage: "reef cache inspect [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlags(flagSet)
			flagSet.BoolVar(&params.Diagnose, "diag", false, "print the snapshot in CBOR diagnostic notation")
			return flagSet
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("inspect takes no arguments, got %q", args[0])
			}
			cfg, err := params.Config()
			if err != nil {
				return err
			}
			path := cfg.Cache.Path
			if path == "" {
				return cli.Validation("no cache path configured")
			}

			info, err := os.Stat(path)
			if errors.Is(err, os.ErrNotExist) {
				return cli.NotFound("no snapshot cache at %s", path)
			}
			if err != nil {
				return cli.Internal("%w", err)
			}
			header, err := snapcache.ReadHeader(path)
			if err != nil {
				return cli.Internal("%w", err)
			}

			options, err := cli.CacheOptions(cfg)
			if err != nil {
				return err
			}
			if options.Key != nil {
				defer options.Key.Close()
			}
			if header.Encrypted && options.Key == nil {
				return cli.Validation("cache at %s is encrypted", path).
					WithHint("Set cache.key_file in the configuration to the key it was written with.")
			}
			snapshot, err := snapcache.Load(path, options.Key)
			if err != nil {
				return cli.Internal("%w", err)
			}

			if params.Diagnose {
				encoded, err := codec.Marshal(snapshot)
				if err != nil {
					return cli.Internal("%w", err)
				}
				notation, err := codec.Diagnose(encoded)
				if err != nil {
					return cli.Internal("%w", err)
				}
				fmt.Fprintln(stdout, notation)
				return nil
			}

			summary := cacheSummary{
				Path:        path,
				Size:        info.Size(),
				Compression: header.Compression.String(),
				Encrypted:   header.Encrypted,
				Checksum:    hex.EncodeToString(header.Checksum[:]),
				PayloadSize: header.PayloadSize,
				SavedAt:     snapshot.SavedAt,
				BaseURL:     snapshot.BaseURL,
				Sessions:    len(snapshot.Sessions),
				Outputs:     len(snapshot.Outputs),
			}
			if done, err := params.EmitJSON(summary); done {
				return err
			}
			fmt.Fprintf(stdout, "path:        %s (%d bytes)\n", summary.Path, summary.Size)
			fmt.Fprintf(stdout, "compression: %s\n", summary.Compression)
			fmt.Fprintf(stdout, "encrypted:   %t\n", summary.Encrypted)
			fmt.Fprintf(stdout, "checksum:    %s\n", summary.Checksum)
			fmt.Fprintf(stdout, "payload:     %d bytes\n", summary.PayloadSize)
			fmt.Fprintf(stdout, "saved:       %s\n", summary.SavedAt.Format(time.RFC3339))
			fmt.Fprintf(stdout, "service:     %s\n", summary.BaseURL)
			fmt.Fprintf(stdout, "sessions:    %d (%d with output)\n", summary.Sessions, summary.Outputs)
			return nil
		},
	}
}

type cacheClearParams struct {
	cli.Connection
}

func cacheClearCommand(stdout io.Writer) *cli.Command {
	var params cacheClearParams
	return &cli.Command{
		Name:    "clear",
		Summary: "Delete the snapshot cache file",
		Usage:   "reef cache clear [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("clear", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			return flagSet
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("clear takes no arguments, got %q", args[0])
			}
			cfg, err := params.Config()
			if err != nil {
				return err
			}
			path := cfg.Cache.Path
			if path == "" {
				return cli.Validation("no cache path configured")
			}

			removed := false
			for _, name := range []string{path, path + ".lock"} {
				err := os.Remove(name)
				switch {
				case err == nil:
					removed = removed || name == path
					logger.Debug("removed cache file", "path", name)
				case errors.Is(err, os.ErrNotExist):
				default:
					return cli.Internal("%w", err)
				}
			}
			if removed {
				fmt.Fprintf(stdout, "removed %s\n", path)
			} else {
				fmt.Fprintf(stdout, "no cache at %s\n", path)
			}
			return nil
		},
	}
}
