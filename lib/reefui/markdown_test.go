// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/reef/lib/tui"
)

func stripped(input string, width int) string {
	return ansi.Strip(renderMarkdown(input, tui.DefaultTheme, width))
}

func TestRenderMarkdown_Empty(t *testing.T) {
	if got := renderMarkdown("  \n", tui.DefaultTheme, 80); got != "" {
		t.Errorf("renderMarkdown(blank) = %q, want empty", got)
	}
}

func TestRenderMarkdown_Reflow(t *testing.T) {
	result := stripped("Soft wrapped\nsource text\nreflows.", 80)
	if result != "Soft wrapped source text reflows." {
		t.Errorf("got %q", result)
	}

	narrow := stripped("This paragraph is long enough that it must wrap at a narrow width.", 24)
	for _, line := range strings.Split(narrow, "\n") {
		if width := ansi.StringWidth(line); width > 24 {
			t.Errorf("line %q is %d columns, limit 24", line, width)
		}
	}
}

func TestRenderMarkdown_Blocks(t *testing.T) {
	input := strings.Join([]string{
		"# Plan",
		"",
		"Steps:",
		"",
		"- read the config",
		"- write the **cache**",
		"",
		"1. first",
		"2. second",
		"",
		"> quoted note",
		"",
		"```go",
		"func main() {}",
		"```",
		"",
		"| file | status |",
		"|------|--------|",
		"| a.go | ok |",
		"",
		"---",
		"",
		"See [docs](https://example.com/docs) and `go test`.",
	}, "\n")
	result := stripped(input, 60)

	for _, want := range []string{
		"Plan",
		"• read the config",
		"• write the cache",
		"1. first",
		"2. second",
		"│ quoted note",
		"func main() {}",
		"file │ status",
		"a.go │ ok",
		"───",
		"docs (https://example.com/docs)",
		"go test",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("rendered markdown missing %q:\n%s", want, result)
		}
	}
	if strings.Contains(result, "```") || strings.Contains(result, "**") {
		t.Errorf("markdown syntax leaked into output:\n%s", result)
	}
}

func TestRenderMarkdown_Styled(t *testing.T) {
	result := renderMarkdown("plain **bold** text", tui.DefaultTheme, 80)
	if !strings.Contains(result, "\x1b[") {
		t.Error("expected ANSI styling in rendered markdown")
	}
}

func TestRenderOutput(t *testing.T) {
	output := strings.Join([]string{
		"Human: list the files",
		"Bash(ls -la)",
		"Assistant: There are **two** files.",
		"╭──────────╮",
	}, "\n")

	blocks := ansi.Strip(renderOutput(output, tui.DefaultTheme, 60, true))
	for _, want := range []string{"▌ you", "list the files", "▌ tool", "Bash(ls -la)", "▌ assistant", "There are two files.", "▌ system"} {
		if !strings.Contains(blocks, want) {
			t.Errorf("block rendering missing %q:\n%s", want, blocks)
		}
	}

	raw := ansi.Strip(renderOutput(output, tui.DefaultTheme, 60, false))
	if !strings.Contains(raw, "Human: list the files") || strings.Contains(raw, "▌") {
		t.Errorf("raw rendering should keep the text verbatim:\n%s", raw)
	}

	if got := renderOutput("", tui.DefaultTheme, 60, true); got != "" {
		t.Errorf("empty output rendered %q", got)
	}
}
