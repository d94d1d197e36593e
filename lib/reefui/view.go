// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/reef/lib/reefstream"
	"github.com/bureau-foundation/reef/lib/schema/reef"
	"github.com/bureau-foundation/reef/lib/tui"
)

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}

	sections := []string{model.renderHeader()}
	content := lipgloss.JoinHorizontal(lipgloss.Top,
		model.renderList(),
		model.renderDivider(),
		model.renderOutputPane(),
	)
	sections = append(sections, content)
	sections = append(sections,
		lipgloss.NewStyle().Foreground(model.theme.BorderColor).Render(strings.Repeat("─", model.width)))
	sections = append(sections, model.renderHelp())
	view := strings.Join(sections, "\n")

	switch model.mode {
	case modeSpawn:
		view = model.overlayModal(view, "Spawn session", []string{
			model.prompt.View(),
			"",
			"⏎ spawn  Esc cancel",
		})
	case modeMessage:
		target, _ := model.targetSession()
		view = model.overlayModal(view, "Message "+target.ID, []string{
			model.prompt.View(),
			"",
			"⏎ send  Esc cancel",
		})
	case modeConfirmKill:
		view = model.overlayModal(view, "Kill session?", []string{
			model.killTarget.ID + "  " + model.killTarget.Task,
			"",
			"y kill  any other key cancels",
		})
	}
	return view
}

func (model Model) overlayModal(view, title string, body []string) string {
	width := min(modalWidth, model.width)
	lines, x, y := tui.Modal(model.theme, title, body, width, model.width, model.height)
	return tui.SpliceOverlay(view, lines, x, y)
}

// renderHeader shows the connection, session counts and service
// uptime, or the filter input while filtering.
func (model Model) renderHeader() string {
	if model.mode == modeFilter {
		return ansi.Truncate(model.filter.View(), model.width, "…")
	}

	title := lipgloss.NewStyle().Foreground(model.theme.HeaderForeground).Bold(true).Render("reef")
	parts := []string{title, model.renderConnection()}

	total := model.store.Len()
	active := len(model.store.Running())
	parts = append(parts, fmt.Sprintf("%d active / %d total", active, total))

	switch {
	case model.service.Loading:
		parts = append(parts, model.spinner.View()+" loading")
	case model.service.Reachable:
		parts = append(parts, fmt.Sprintf("up %dm", int(model.service.Uptime/time.Minute)))
	default:
		parts = append(parts, lipgloss.NewStyle().Foreground(model.theme.StatusError).Render("service unreachable"))
	}
	if model.query != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(model.theme.MatchForeground).Render("/"+model.query))
	}

	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	return ansi.Truncate(" "+strings.Join(parts, faint.Render("  │  ")), model.width, "…")
}

func (model Model) renderConnection() string {
	color := model.theme.StatusError
	switch model.connection {
	case reefstream.StateConnected:
		color = model.theme.StatusRunning
	case reefstream.StateConnecting:
		color = model.theme.BlockUser
	}
	return lipgloss.NewStyle().Foreground(color).Render("● " + string(model.connection))
}

func (model Model) renderList() string {
	width := model.listWidth()
	height := model.contentHeight()
	if height <= 0 {
		return ""
	}

	rows := make([]string, 0, height)
	if len(model.sessions) == 0 {
		message := "No sessions. Press s to spawn one."
		switch {
		case model.service.Loading:
			message = model.spinner.View() + " Loading sessions..."
		case model.query != "":
			message = "No sessions match the filter."
		}
		rows = append(rows, lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(" "+message))
	}

	selectedID := model.store.SelectedID()
	now := time.Now()
	end := min(len(model.sessions), model.offset+height)
	for index := model.offset; index < end; index++ {
		rows = append(rows, model.renderRow(model.sessions[index], index == model.cursor, model.sessions[index].ID == selectedID, width-1, now))
	}
	for len(rows) < height {
		rows = append(rows, "")
	}
	for index, row := range rows {
		rows[index] = padRight(ansi.Truncate(row, width-1, "…"), width-1)
	}

	list := strings.Join(rows, "\n")
	scrollbar := tui.RenderScrollbar(model.theme, height, len(model.sessions), height, model.offset, model.mode != modeOutput)
	return lipgloss.JoinHorizontal(lipgloss.Top, list, scrollbar)
}

// renderRow draws "▸ ● task  label". The marker shows the selected
// session; the background shows the cursor or a fading change.
func (model Model) renderRow(session reef.Session, cursor, selected bool, width int, now time.Time) string {
	marker := "  "
	if selected {
		marker = "▸ "
	}
	label := session.Status.Label()
	statusStyle := lipgloss.NewStyle().Foreground(model.theme.StatusColor(session.Status))
	task := session.Task
	if task == "" {
		task = session.ID
	}
	taskWidth := max(1, width-ansi.StringWidth(marker)-2-ansi.StringWidth(label)-1)
	task = padRight(ansi.Truncate(task, taskWidth, "…"), taskWidth)

	base := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	switch {
	case cursor:
		base = base.Background(model.theme.SelectedBackground).Foreground(model.theme.SelectedForeground).Bold(true)
		statusStyle = statusStyle.Background(model.theme.SelectedBackground)
	case model.heat.Heat(session.ID, now) > 0:
		tint := model.theme.HotAccentPut
		if model.heat.Kind(session.ID) == tui.HeatRemove {
			tint = model.theme.HotAccentRemove
		}
		base = base.Background(tint)
		statusStyle = statusStyle.Background(tint)
	}

	return base.Render(marker) + statusStyle.Render("● ") + base.Render(task+" ") + statusStyle.Render(label)
}

func (model Model) renderDivider() string {
	height := max(0, model.contentHeight())
	style := lipgloss.NewStyle().Foreground(model.theme.BorderColor)
	lines := make([]string, height)
	for index := range lines {
		lines[index] = style.Render("│")
	}
	return strings.Join(lines, "\n")
}

func (model Model) renderOutputPane() string {
	width := model.outputWidth()
	session, ok := model.store.Selected()
	var title string
	if ok {
		status := lipgloss.NewStyle().Foreground(model.theme.StatusColor(session.Status)).Render(session.Status.Label())
		heading := lipgloss.NewStyle().Foreground(model.theme.HeaderForeground).Bold(true).Render(" " + session.ID)
		title = heading + "  " + status + "  " + session.Task
		if session.Error != "" {
			title += "  " + lipgloss.NewStyle().Foreground(model.theme.StatusError).Render(session.Error)
		}
	} else {
		title = lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(" Select a session with ⏎")
	}
	title = padRight(ansi.Truncate(title, width, "…"), width)

	body := model.output.View()
	return title + "\n" + body
}

func (model Model) renderHelp() string {
	if model.notice != "" {
		color := model.theme.FaintText
		switch {
		case model.noticeLevel >= slog.LevelError:
			color = model.theme.StatusError
		case model.noticeLevel >= slog.LevelWarn:
			color = model.theme.BlockUser
		}
		return ansi.Truncate(lipgloss.NewStyle().Foreground(color).Bold(true).Render(" "+model.notice), model.width, "…")
	}

	focus := "LIST"
	switch model.mode {
	case modeOutput:
		focus = "OUTPUT"
	case modeFilter:
		focus = "FILTER"
	case modeSpawn:
		focus = "SPAWN"
	case modeMessage:
		focus = "MESSAGE"
	case modeConfirmKill:
		focus = "KILL"
	}
	display := "blocks"
	if !model.blocks {
		display = "raw"
	}
	help := fmt.Sprintf(" [%s] q quit  ⏎ select  / filter  s spawn  m message  K kill  r refresh  x remove  b %s  Tab focus",
		focus, display)
	return lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(ansi.Truncate(help, model.width, "…"))
}

func padRight(s string, width int) string {
	if gap := width - ansi.StringWidth(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}
