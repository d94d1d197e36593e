// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/reef/cmd/reef/cli"
	"github.com/bureau-foundation/reef/lib/schema/reef"
	"github.com/bureau-foundation/reef/lib/sessionstore"
)

type outputParams struct {
	cli.Connection
	cli.JSONOutput
	Lines  int
	Blocks bool
	Raw    bool
}

// outputBlock is the --blocks --json shape.
type outputBlock struct {
	Kind sessionstore.BlockKind `json:"kind"`
	Text string                 `json:"text"`
}

func outputCommand(stdout io.Writer) *cli.Command {
	params := outputParams{JSONOutput: cli.JSONOutput{Writer: stdout}}
	return &cli.Command{
		Name:    "output",
		Summary: "Print a session's transcript",
		Description: `Fetch a session's accumulated output. Terminal escape sequences are
removed unless --raw is given. --blocks splits the transcript into
speaker blocks (user, assistant, tool, system, raw).`,
		Usage: "reef output <id> [flags]",
		Examples: []cli.Example{
			{Description: "Last 50 lines", Command: "reef output 3f2a --lines 50"},
			{Description: "Speaker blocks as JSON", Command: "reef output 3f2a --blocks --json"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("output", pflag.ContinueOnError)
			params.Connection.AddFlags(flagSet)
			params.JSONOutput.AddFlags(flagSet)
			flagSet.IntVarP(&params.Lines, "lines", "n", 0, "trailing lines to request (default from config)")
			flagSet.BoolVar(&params.Blocks, "blocks", false, "split into speaker blocks")
			flagSet.BoolVar(&params.Raw, "raw", false, "keep terminal escape sequences")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("usage: reef output <id>")
			}
			if params.Lines < 0 {
				return cli.Validation("--lines must not be negative")
			}
			cfg, err := params.Config()
			if err != nil {
				return err
			}
			client, err := cli.Client(cfg, logger)
			if err != nil {
				return err
			}
			lines := params.Lines
			if lines == 0 {
				lines = cfg.Refresh.OutputLines
			}

			response, err := client.Output(ctx, args[0], lines)
			if !params.Blocks {
				if err == nil && !params.Raw {
					response.Output = ansi.Strip(response.Output)
				}
				if done, emitErr := emitResult(&params.JSONOutput, response, err, cfg.Service.BaseURL); done {
					return emitErr
				}
			}
			if err != nil {
				return cli.ServiceError(err, cfg.Service.BaseURL)
			}

			if params.Blocks {
				return writeBlocks(stdout, &params.JSONOutput, response)
			}
			if response.Output == "" {
				return nil
			}
			fmt.Fprint(stdout, response.Output)
			if !strings.HasSuffix(response.Output, "\n") {
				fmt.Fprintln(stdout)
			}
			return nil
		},
	}
}

func writeBlocks(w io.Writer, output *cli.JSONOutput, response reef.OutputResponse) error {
	parsed := sessionstore.ParseBlocks(response.Output)
	blocks := make([]outputBlock, 0, len(parsed))
	for _, block := range parsed {
		blocks = append(blocks, outputBlock{Kind: block.Kind, Text: block.Text})
	}
	if done, err := output.EmitJSON(blocks); done {
		return err
	}
	for index, block := range blocks {
		if index > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%s]\n%s\n", block.Kind, block.Text)
	}
	return nil
}
