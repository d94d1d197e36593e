// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// BlockKind classifies a transcript block by speaker.
type BlockKind string

const (
	BlockUser      BlockKind = "user"
	BlockAssistant BlockKind = "assistant"
	BlockTool      BlockKind = "tool"
	BlockSystem    BlockKind = "system"
	BlockRaw       BlockKind = "raw"
)

// Block is a run of consecutive transcript lines from one speaker.
type Block struct {
	Kind BlockKind
	Text string
}

var (
	userPrefixes      = []string{"Human:", "❯", ">"}
	assistantPrefixes = []string{"Assistant:", "Claude:"}
	toolMarkers       = []string{"⚡", "🔧"}
	systemMarkers     = []string{"╭", "╰", "───"}

	toolCallPattern = regexp.MustCompile(`(?i)^(Read|Write|Edit|Bash|Search|Glob|LS|MultiTool|TodoRead|TodoWrite)\s*\(`)
)

// ParseBlocks splits terminal output into speaker blocks. ANSI escape
// sequences are removed first. A line that opens a block has its
// speaker prefix stripped; lines that match no speaker continue the
// current block with their indentation intact, or open a raw block if
// there is none. Blank lines are kept inside the current block.
func ParseBlocks(output string) []Block {
	var blocks []Block
	var current *Block

	flush := func() {
		if current != nil {
			current.Text = strings.Trim(current.Text, "\n")
			blocks = append(blocks, *current)
			current = nil
		}
	}
	open := func(kind BlockKind, text string) {
		flush()
		current = &Block{Kind: kind, Text: text}
	}

	for _, line := range strings.Split(ansi.Strip(output), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if current != nil {
				current.Text += "\n"
			}
			continue
		}

		if rest, ok := cutAnyPrefix(trimmed, userPrefixes); ok {
			open(BlockUser, rest)
			continue
		}
		if rest, ok := cutAnyPrefix(trimmed, assistantPrefixes); ok {
			open(BlockAssistant, rest)
			continue
		}
		if toolCallPattern.MatchString(trimmed) || hasAnyPrefix(trimmed, toolMarkers) {
			open(BlockTool, trimmed)
			continue
		}
		if hasAnyPrefix(trimmed, systemMarkers) {
			open(BlockSystem, trimmed)
			continue
		}

		// Continuation lines keep their indentation.
		line = strings.TrimRight(line, " \t\r")
		if current == nil {
			current = &Block{Kind: BlockRaw, Text: line}
			continue
		}
		if current.Text == "" {
			current.Text = line
		} else {
			current.Text += "\n" + line
		}
	}
	flush()
	return blocks
}

func cutAnyPrefix(line string, prefixes []string) (string, bool) {
	for _, prefix := range prefixes {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

func hasAnyPrefix(line string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
