// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/bureau-foundation/reef/lib/tui"
)

// wrapBreakpoints are the characters ansi.Wrap may break after besides
// spaces.
const wrapBreakpoints = " ,.;-+|/"

var (
	markdownOnce   sync.Once
	markdownParser goldmark.Markdown
)

func parser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownParser
}

// renderMarkdown renders assistant text as styled terminal lines
// wrapped to width. Soft line breaks reflow; code blocks keep their
// layout and are highlighted when they name a language.
func renderMarkdown(input string, theme tui.Theme, width int) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	source := []byte(input)
	document := parser().Parser().Parse(text.NewReader(source))

	// The TUI always draws to a terminal, so the profile is fixed
	// rather than detected. Detection yields no color under test.
	renderer := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
	renderer.SetColorProfile(termenv.ANSI256)

	writer := &markdownWriter{
		source:   source,
		theme:    theme,
		width:    width,
		renderer: renderer,
	}
	ast.Walk(document, writer.walk)
	return strings.TrimRight(writer.out.String(), "\n")
}

type listFrame struct {
	ordered bool
	next    int
	tight   bool
}

// markdownWriter accumulates inline content per block and wraps it as
// a unit when the block closes.
type markdownWriter struct {
	source   []byte
	theme    tui.Theme
	width    int
	renderer *lipgloss.Renderer

	out      strings.Builder
	inline   strings.Builder
	newlines int

	// prefixes hold the indentation of enclosing quotes and list items.
	prefixes []string
	bullet   string

	lists []listFrame

	bold, italic, strike int
}

func (w *markdownWriter) style() lipgloss.Style { return w.renderer.NewStyle() }

func (w *markdownWriter) prefix() string { return strings.Join(w.prefixes, "") }

func (w *markdownWriter) available() int {
	return max(10, w.width-ansi.StringWidth(w.prefix()))
}

func (w *markdownWriter) write(s string) {
	if s == "" {
		return
	}
	w.out.WriteString(s)
	trailing := len(s) - len(strings.TrimRight(s, "\n"))
	if trailing == len(s) {
		w.newlines += trailing
	} else {
		w.newlines = trailing
	}
}

func (w *markdownWriter) endLine() {
	if w.newlines < 1 {
		w.write("\n")
	}
}

func (w *markdownWriter) blankLine() {
	if w.out.Len() == 0 {
		return
	}
	for w.newlines < 2 {
		w.write("\n")
	}
}

func (w *markdownWriter) tight() bool {
	return len(w.lists) > 0 && w.lists[len(w.lists)-1].tight
}

// emit writes lines with the current prefixes. A pending list bullet
// replaces the prefix of the first line.
func (w *markdownWriter) emit(content string) {
	prefix := w.prefix()
	for index, line := range strings.Split(content, "\n") {
		if index == 0 && w.bullet != "" {
			w.write(w.bullet)
			w.bullet = ""
		} else {
			w.write(prefix)
		}
		w.write(line)
		w.write("\n")
	}
}

func (w *markdownWriter) flushBlock() {
	content := w.inline.String()
	w.inline.Reset()
	if content == "" {
		return
	}
	w.emit(ansi.Wrap(content, w.available(), wrapBreakpoints))
	if !w.tight() {
		w.blankLine()
	}
}

func (w *markdownWriter) styled(content string) string {
	style := w.style().Foreground(w.theme.NormalText)
	if w.bold > 0 {
		style = style.Bold(true)
	}
	if w.italic > 0 {
		style = style.Italic(true)
	}
	if w.strike > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

func (w *markdownWriter) linesOf(node ast.Node) string {
	var content strings.Builder
	lines := node.Lines()
	for index := range lines.Len() {
		segment := lines.At(index)
		content.Write(segment.Value(w.source))
	}
	return content.String()
}

func (w *markdownWriter) code(content, language string) string {
	if language != "" {
		var highlighted strings.Builder
		if err := quick.Highlight(&highlighted, content, language, "terminal256", "monokai"); err == nil {
			return highlighted.String()
		}
	}
	return w.style().Foreground(w.theme.FaintText).Render(content)
}

func (w *markdownWriter) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			w.inline.Reset()
		} else {
			w.flushBlock()
		}

	case ast.KindHeading:
		if entering {
			w.inline.Reset()
			return ast.WalkContinue, nil
		}
		heading := node.(*ast.Heading)
		content := ansi.Strip(w.inline.String())
		w.inline.Reset()
		style := w.style().Bold(true).Foreground(w.theme.NormalText)
		if heading.Level <= 2 {
			style = style.Foreground(w.theme.HeaderForeground).Underline(heading.Level == 1)
		}
		w.blankLine()
		w.emit(ansi.Wrap(style.Render(content), w.available(), wrapBreakpoints))
		w.blankLine()

	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		if !entering {
			return ast.WalkContinue, nil
		}
		language := ""
		if fenced, ok := node.(*ast.FencedCodeBlock); ok {
			language = string(fenced.Language(w.source))
		}
		w.blankLine()
		w.emit(strings.TrimRight(w.code(w.linesOf(node), language), "\n"))
		w.blankLine()
		return ast.WalkSkipChildren, nil

	case ast.KindBlockquote:
		if entering {
			w.prefixes = append(w.prefixes, w.style().Foreground(w.theme.BorderColor).Render("│")+" ")
		} else {
			w.prefixes = w.prefixes[:len(w.prefixes)-1]
			w.blankLine()
		}

	case ast.KindList:
		if entering {
			list := node.(*ast.List)
			w.lists = append(w.lists, listFrame{ordered: list.IsOrdered(), next: list.Start, tight: list.IsTight})
		} else {
			w.lists = w.lists[:len(w.lists)-1]
			if !w.tight() {
				w.blankLine()
			}
		}

	case ast.KindListItem:
		if entering {
			frame := &w.lists[len(w.lists)-1]
			marker := "• "
			if frame.ordered {
				marker = fmt.Sprintf("%d. ", frame.next)
				frame.next++
			}
			w.bullet = w.prefix() + w.style().Foreground(w.theme.FaintText).Render(marker)
			w.prefixes = append(w.prefixes, strings.Repeat(" ", ansi.StringWidth(marker)))
		} else {
			w.prefixes = w.prefixes[:len(w.prefixes)-1]
			w.endLine()
		}

	case ast.KindThematicBreak:
		if entering {
			w.blankLine()
			w.emit(w.style().Foreground(w.theme.BorderColor).Render(strings.Repeat("─", w.available())))
			w.blankLine()
		}

	case ast.KindHTMLBlock:
		if entering {
			if content := strings.TrimSpace(w.linesOf(node)); content != "" {
				w.emit(w.style().Foreground(w.theme.FaintText).Render(content))
				w.blankLine()
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			w.inline.WriteString(w.styled(string(textNode.Segment.Value(w.source))))
			switch {
			case textNode.HardLineBreak():
				w.inline.WriteString("\n")
			case textNode.SoftLineBreak():
				w.inline.WriteString(" ")
			}
		}

	case ast.KindString:
		if entering {
			w.inline.WriteString(w.styled(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		counter := &w.italic
		if node.(*ast.Emphasis).Level >= 2 {
			counter = &w.bold
		}
		if entering {
			*counter++
		} else {
			*counter--
		}

	case extast.KindStrikethrough:
		if entering {
			w.strike++
		} else {
			w.strike--
		}

	case ast.KindCodeSpan:
		if entering {
			var content strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				if textNode, ok := child.(*ast.Text); ok {
					content.Write(textNode.Segment.Value(w.source))
				}
			}
			w.inline.WriteString(w.style().Foreground(w.theme.BlockTool).Render(content.String()))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if !entering {
			link := node.(*ast.Link)
			w.inline.WriteString(" " + w.style().Foreground(w.theme.FaintText).Render("("+string(link.Destination)+")"))
		}

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(w.source))
			w.inline.WriteString(w.style().Foreground(w.theme.FaintText).Underline(true).Render(url))
		}

	case extast.KindTable:
		w.blankLine()

	case extast.KindTableHeader, extast.KindTableRow:
		if entering {
			w.inline.Reset()
			return ast.WalkContinue, nil
		}
		w.emit(ansi.Truncate(w.inline.String(), w.available(), "…"))
		w.inline.Reset()
		if node.Kind() == extast.KindTableHeader {
			w.emit(w.style().Foreground(w.theme.BorderColor).Render(strings.Repeat("─", w.available())))
		}

	case extast.KindTableCell:
		if !entering && node.NextSibling() != nil {
			w.inline.WriteString(w.style().Foreground(w.theme.BorderColor).Render(" │ "))
		}

	case extast.KindTaskCheckBox:
		if entering {
			if node.(*extast.TaskCheckBox).IsChecked {
				w.inline.WriteString(w.style().Foreground(w.theme.StatusRunning).Render("[x]") + " ")
			} else {
				w.inline.WriteString(w.styled("[ ] "))
			}
		}
	}
	return ast.WalkContinue, nil
}
