// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reefui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/reef/lib/console"
	"github.com/bureau-foundation/reef/lib/reefstream"
	"github.com/bureau-foundation/reef/lib/schema/reef"
	"github.com/bureau-foundation/reef/lib/sessionstore"
	"github.com/bureau-foundation/reef/lib/tui"
)

// Controller is what the model drives. Satisfied by *console.Console.
type Controller interface {
	Store() *sessionstore.Store
	Connection() reefstream.State
	Service() console.ServiceStatus

	Select(id string) bool
	Remove(id string) bool
	Refresh(ctx context.Context) error
	Spawn(ctx context.Context, request reef.SpawnRequest) (reef.Session, error)
	Send(ctx context.Context, id, message string) error
	SendViaStream(id, message string) bool
	Kill(ctx context.Context, id string) error
}

// Config configures a Model. Controller is required.
type Config struct {
	Controller Controller

	// Context bounds commands the model issues. Defaults to
	// context.Background().
	Context context.Context

	// Raw starts the output pane in raw mode instead of blocks.
	Raw bool

	Theme  *tui.Theme
	Keys   *KeyMap
	Logger *slog.Logger
}

type mode int

const (
	modeList mode = iota
	modeOutput
	modeFilter
	modeSpawn
	modeMessage
	modeConfirmKill
)

const (
	statusTickInterval = time.Second

	listWidthMin = 28
	listWidthMax = 60

	// chromeHeight is the header, separator and help rows.
	chromeHeight = 3

	modalWidth = 64
)

type storeChangeMsg struct {
	change sessionstore.Change
}

type statusTickMsg struct{}

type heatTickMsg struct{}

type noticeFadeMsg struct {
	sequence int
}

// commandResultMsg reports a finished command. selectID, when set,
// is selected after a successful spawn.
type commandResultMsg struct {
	action   string
	err      error
	selectID string
}

// outputKey identifies the rendered content of the output pane.
type outputKey struct {
	id       string
	revision uint64
	width    int
	blocks   bool
}

// Model is the bubbletea model for the session viewer.
type Model struct {
	controller Controller
	store      *sessionstore.Store
	changes    <-chan sessionstore.Change
	ctx        context.Context
	logger     *slog.Logger

	theme tui.Theme
	keys  KeyMap

	width, height int
	ready         bool
	mode          mode

	sessions []reef.Session
	cursor   int
	offset   int
	query    string

	filter  textinput.Model
	prompt  textinput.Model
	spinner spinner.Model

	output   viewport.Model
	rendered outputKey
	blocks   bool

	heat    *tui.HeatTracker
	heating bool

	connection reefstream.State
	service    console.ServiceStatus

	killTarget reef.Session

	notice         string
	noticeLevel    slog.Level
	noticeSequence int
}

// New returns a Model reading from config.Controller's store.
func New(config Config) (Model, error) {
	if config.Controller == nil {
		return Model{}, fmt.Errorf("reefui: Controller is required")
	}
	if config.Context == nil {
		config.Context = context.Background()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	theme := tui.DefaultTheme
	if config.Theme != nil {
		theme = *config.Theme
	}
	keys := DefaultKeyMap
	if config.Keys != nil {
		keys = *config.Keys
	}

	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter sessions"

	prompt := textinput.New()
	prompt.CharLimit = 4096

	loading := spinner.New()
	loading.Spinner = spinner.MiniDot
	loading.Style = lipgloss.NewStyle().Foreground(theme.StatusRunning)

	store := config.Controller.Store()
	model := Model{
		controller: config.Controller,
		store:      store,
		changes:    store.Subscribe(),
		ctx:        config.Context,
		logger:     config.Logger,
		theme:      theme,
		keys:       keys,
		filter:     filter,
		prompt:     prompt,
		spinner:    loading,
		blocks:     !config.Raw,
		heat:       tui.NewHeatTracker(),
		connection: config.Controller.Connection(),
		service:    config.Controller.Service(),
	}
	model.reload()
	return model, nil
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return tea.Batch(
		listenForChange(model.changes),
		scheduleStatusTick(),
		model.spinner.Tick,
	)
}

func listenForChange(changes <-chan sessionstore.Change) tea.Cmd {
	return func() tea.Msg {
		change, ok := <-changes
		if !ok {
			return nil
		}
		return storeChangeMsg{change: change}
	}
}

func scheduleStatusTick() tea.Cmd {
	return tea.Tick(statusTickInterval, func(time.Time) tea.Msg { return statusTickMsg{} })
}

func scheduleHeatTick() tea.Cmd {
	return tea.Tick(tui.HeatTickInterval, func(time.Time) tea.Msg { return heatTickMsg{} })
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.resize()
		return model, nil

	case tea.KeyMsg:
		return model.handleKey(message)

	case storeChangeMsg:
		return model.handleChange(message.change)

	case statusTickMsg:
		model.connection = model.controller.Connection()
		model.service = model.controller.Service()
		return model, scheduleStatusTick()

	case heatTickMsg:
		if model.heat.HasHot(time.Now()) {
			return model, scheduleHeatTick()
		}
		model.heating = false
		return model, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		model.spinner, cmd = model.spinner.Update(message)
		return model, cmd

	case commandResultMsg:
		return model.handleResult(message)

	case logRecordMsg:
		return model.withNotice(message.summary, message.level)

	case noticeFadeMsg:
		if message.sequence == model.noticeSequence {
			model.notice = ""
		}
		return model, nil
	}
	return model, nil
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch model.mode {
	case modeFilter:
		return model.handleFilterKey(message)
	case modeSpawn, modeMessage:
		return model.handlePromptKey(message)
	case modeConfirmKill:
		return model.handleConfirmKey(message)
	}

	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.FocusToggle):
		if model.mode == modeList {
			model.mode = modeOutput
		} else {
			model.mode = modeList
		}

	case key.Matches(message, model.keys.Filter):
		model.mode = modeFilter
		model.filter.SetValue(model.query)
		model.filter.CursorEnd()
		cmd := model.filter.Focus()
		return model, cmd

	case key.Matches(message, model.keys.Cancel):
		if model.query != "" {
			model.query = ""
			model.reload()
		}

	case key.Matches(message, model.keys.Select):
		if session, ok := model.cursorSession(); ok {
			model.controller.Select(session.ID)
			model.mode = modeOutput
		}

	case key.Matches(message, model.keys.Spawn):
		return model.openPrompt(modeSpawn, "task> ", "describe the task")

	case key.Matches(message, model.keys.Message):
		if _, ok := model.targetSession(); !ok {
			return model.withNotice("no session selected", slog.LevelWarn)
		}
		return model.openPrompt(modeMessage, "message> ", "")

	case key.Matches(message, model.keys.Kill):
		session, ok := model.targetSession()
		if !ok {
			return model.withNotice("no session selected", slog.LevelWarn)
		}
		model.killTarget = session
		model.mode = modeConfirmKill

	case key.Matches(message, model.keys.Refresh):
		return model, model.refreshCommand()

	case key.Matches(message, model.keys.Remove):
		if session, ok := model.cursorSession(); ok {
			model.controller.Remove(session.ID)
		}

	case key.Matches(message, model.keys.Blocks):
		model.blocks = !model.blocks
		model.syncOutput()

	default:
		if model.mode == modeOutput {
			model.scrollOutput(message)
		} else {
			model.moveCursor(message)
		}
	}
	return model, nil
}

func (model Model) handleFilterKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Cancel):
		model.query = ""
		model.filter.Blur()
		model.filter.Reset()
		model.mode = modeList
		model.reload()
		return model, nil
	case message.Type == tea.KeyEnter:
		model.filter.Blur()
		model.mode = modeList
		return model, nil
	}

	var cmd tea.Cmd
	model.filter, cmd = model.filter.Update(message)
	if value := model.filter.Value(); value != model.query {
		model.query = value
		model.cursor, model.offset = 0, 0
		model.reload()
	}
	return model, cmd
}

func (model Model) openPrompt(target mode, prefix, placeholder string) (tea.Model, tea.Cmd) {
	model.mode = target
	model.prompt.Reset()
	model.prompt.Prompt = prefix
	model.prompt.Placeholder = placeholder
	model.prompt.Width = modalWidth - 6 - ansi.StringWidth(prefix)
	cmd := model.prompt.Focus()
	return model, cmd
}

func (model Model) closePrompt() Model {
	model.prompt.Blur()
	model.prompt.Reset()
	model.mode = modeList
	return model
}

func (model Model) handlePromptKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Cancel):
		return model.closePrompt(), nil
	case message.Type == tea.KeyEnter:
		value := strings.TrimSpace(model.prompt.Value())
		target := model.mode
		model = model.closePrompt()
		if value == "" {
			return model, nil
		}
		if target == modeSpawn {
			return model, model.spawnCommand(value)
		}
		session, ok := model.targetSession()
		if !ok {
			return model.withNotice("no session selected", slog.LevelWarn)
		}
		return model, model.sendCommand(session.ID, value)
	}

	var cmd tea.Cmd
	model.prompt, cmd = model.prompt.Update(message)
	return model, cmd
}

func (model Model) handleConfirmKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	target := model.killTarget
	model.killTarget = reef.Session{}
	model.mode = modeList
	if key.Matches(message, model.keys.Confirm) {
		return model, model.killCommand(target.ID)
	}
	return model, nil
}

func (model Model) spawnCommand(task string) tea.Cmd {
	controller, ctx := model.controller, model.ctx
	return func() tea.Msg {
		session, err := controller.Spawn(ctx, reef.SpawnRequest{Task: task})
		return commandResultMsg{action: "spawn", err: err, selectID: session.ID}
	}
}

// sendCommand prefers the stream and falls back to HTTP when the
// stream is down or backed up.
func (model Model) sendCommand(id, message string) tea.Cmd {
	controller, ctx := model.controller, model.ctx
	return func() tea.Msg {
		if controller.SendViaStream(id, message) {
			return commandResultMsg{action: "send"}
		}
		return commandResultMsg{action: "send", err: controller.Send(ctx, id, message)}
	}
}

func (model Model) killCommand(id string) tea.Cmd {
	controller, ctx := model.controller, model.ctx
	return func() tea.Msg {
		return commandResultMsg{action: "kill", err: controller.Kill(ctx, id)}
	}
}

func (model Model) refreshCommand() tea.Cmd {
	controller, ctx := model.controller, model.ctx
	return func() tea.Msg {
		return commandResultMsg{action: "refresh", err: controller.Refresh(ctx)}
	}
}

func (model Model) handleResult(message commandResultMsg) (tea.Model, tea.Cmd) {
	model.connection = model.controller.Connection()
	model.service = model.controller.Service()
	if message.err != nil {
		model.logger.Debug("command failed", "action", message.action, "error", message.err)
		return model.withNotice(message.action+" failed: "+message.err.Error(), slog.LevelError)
	}
	switch message.action {
	case "spawn":
		model.reload()
		model.moveCursorTo(message.selectID)
		model.mode = modeOutput
		return model.withNotice("spawned "+message.selectID, slog.LevelInfo)
	case "send":
		return model.withNotice("message sent", slog.LevelInfo)
	case "kill":
		return model.withNotice("session killed", slog.LevelInfo)
	}
	return model, nil
}

// withNotice shows text in the status bar until the next notice or
// noticeFadeDelay, whichever comes first.
func (model Model) withNotice(text string, level slog.Level) (tea.Model, tea.Cmd) {
	model.noticeSequence++
	model.notice = text
	model.noticeLevel = level
	sequence := model.noticeSequence
	return model, tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg { return noticeFadeMsg{sequence: sequence} })
}

func (model Model) handleChange(change sessionstore.Change) (tea.Model, tea.Cmd) {
	commands := []tea.Cmd{listenForChange(model.changes)}

	if change.Kind == sessionstore.ChangeSessions && change.SessionID != "" {
		kind := tui.HeatPut
		if session, ok := model.store.Get(change.SessionID); !ok || session.Status.IsTerminal() {
			kind = tui.HeatRemove
		}
		model.heat.Ignite(change.SessionID, kind, time.Now())
		if !model.heating {
			model.heating = true
			commands = append(commands, scheduleHeatTick())
		}
	}

	model.reload()
	return model, tea.Batch(commands...)
}

// reload re-reads the store, keeping the cursor on the same session
// when it is still listed.
func (model *Model) reload() {
	var cursorID string
	if session, ok := model.cursorSession(); ok {
		cursorID = session.ID
	}
	model.sessions = sessionstore.Filter(model.store.List(), model.query)
	model.moveCursorTo(cursorID)
	model.syncOutput()
}

func (model *Model) moveCursorTo(id string) {
	for index, session := range model.sessions {
		if session.ID == id {
			model.cursor = index
			model.ensureCursorVisible()
			return
		}
	}
	model.cursor = min(model.cursor, max(0, len(model.sessions)-1))
	model.ensureCursorVisible()
}

func (model Model) cursorSession() (reef.Session, bool) {
	if model.cursor < 0 || model.cursor >= len(model.sessions) {
		return reef.Session{}, false
	}
	return model.sessions[model.cursor], true
}

// targetSession is the session commands act on: the selected session,
// or the one under the cursor when nothing is selected.
func (model Model) targetSession() (reef.Session, bool) {
	if session, ok := model.store.Selected(); ok {
		return session, true
	}
	return model.cursorSession()
}

func (model *Model) moveCursor(message tea.KeyMsg) {
	if len(model.sessions) == 0 {
		return
	}
	page := max(1, model.contentHeight())
	switch {
	case key.Matches(message, model.keys.Up):
		model.cursor--
	case key.Matches(message, model.keys.Down):
		model.cursor++
	case key.Matches(message, model.keys.PageUp):
		model.cursor -= page
	case key.Matches(message, model.keys.PageDown):
		model.cursor += page
	case key.Matches(message, model.keys.Top):
		model.cursor = 0
	case key.Matches(message, model.keys.Bottom):
		model.cursor = len(model.sessions) - 1
	default:
		return
	}
	model.cursor = max(0, min(model.cursor, len(model.sessions)-1))
	model.ensureCursorVisible()
}

func (model *Model) scrollOutput(message tea.KeyMsg) {
	switch {
	case key.Matches(message, model.keys.Up):
		model.output.LineUp(1)
	case key.Matches(message, model.keys.Down):
		model.output.LineDown(1)
	case key.Matches(message, model.keys.PageUp):
		model.output.SetYOffset(model.output.YOffset - model.output.Height)
	case key.Matches(message, model.keys.PageDown):
		model.output.SetYOffset(model.output.YOffset + model.output.Height)
	case key.Matches(message, model.keys.Top):
		model.output.GotoTop()
	case key.Matches(message, model.keys.Bottom):
		model.output.GotoBottom()
	}
}

func (model *Model) ensureCursorVisible() {
	height := model.contentHeight()
	if height <= 0 {
		model.offset = 0
		return
	}
	if model.cursor < model.offset {
		model.offset = model.cursor
	}
	if model.cursor >= model.offset+height {
		model.offset = model.cursor - height + 1
	}
}

func (model Model) contentHeight() int {
	return model.height - chromeHeight
}

func (model Model) listWidth() int {
	return max(listWidthMin, min(listWidthMax, model.width*2/5))
}

// outputWidth leaves room for the divider and the scrollbar.
func (model Model) outputWidth() int {
	return max(10, model.width-model.listWidth()-2)
}

func (model *Model) resize() {
	model.output.Width = model.outputWidth()
	// One row of the pane is the session title.
	model.output.Height = max(1, model.contentHeight()-1)
	model.ensureCursorVisible()
	model.syncOutput()
}

// syncOutput re-renders the output pane if the selected session, its
// output revision, the width or the display mode changed. A pane that
// was scrolled to the bottom follows new output.
func (model *Model) syncOutput() {
	if !model.ready {
		return
	}
	id := model.store.SelectedID()
	view, _ := model.store.Output(id)
	next := outputKey{id: id, revision: view.Revision, width: model.output.Width, blocks: model.blocks}
	if next == model.rendered {
		return
	}
	follow := model.output.AtBottom() || next.id != model.rendered.id
	model.rendered = next
	model.output.SetContent(renderOutput(view.Text, model.theme, model.output.Width, model.blocks))
	if follow {
		model.output.GotoBottom()
	}
}
