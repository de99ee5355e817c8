// Package tui is the interactive tester session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jbonatakis/testqueue/internal/report"
	"github.com/jbonatakis/testqueue/internal/result"
	"github.com/jbonatakis/testqueue/internal/session"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

// Info describes the run being worked on.
type Info struct {
	Title     string
	ATName    string
	Browser   string
	RunID     string
	Tests     []testplan.ResolvedTest
	Navigator []report.NavItem
	Issues    []report.Issue
}

type op int

const (
	opNavigate op = iota
	opSubmit
	opEdit
	opStartOver
	opClose
)

func (o op) String() string {
	switch o {
	case opSubmit:
		return "submit"
	case opEdit:
		return "edit"
	case opStartOver:
		return "start over"
	case opClose:
		return "close"
	default:
		return "save"
	}
}

type opDoneMsg struct {
	op  op
	err error
}

// ActionOutput is the last message shown above the bottom bar.
type ActionOutput struct {
	Message string
	IsError bool
}

type Model struct {
	ctx  context.Context
	ctl  *session.Controller
	info Info

	draft            draft
	cursor           int
	conflicts        map[int]bool
	confirmStartOver bool
	editingOutput    bool
	output           textinput.Model
	body             viewport.Model
	help             help.Model
	keys             keyMap
	busy             bool
	actionOutput     *ActionOutput
	windowWidth      int
	windowHeight     int
	quitting         bool
}

func NewModel(ctx context.Context, ctl *session.Controller, info Info) Model {
	ti := textinput.New()
	ti.Placeholder = "AT output..."
	ti.CharLimit = 2000
	ti.Width = 60

	m := Model{
		ctx:       ctx,
		ctl:       ctl,
		info:      info,
		conflicts: map[int]bool{},
		output:    ti,
		body:      viewport.New(80, 20),
		help:      help.New(),
		keys:      defaultKeyMap(),
	}
	for _, item := range info.Navigator {
		if item.Status == report.NavHasConflicts {
			m.conflicts[item.Test.Index] = true
		}
	}
	m.loadDraft()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.help.Width = msg.Width
		m.body.Width = msg.Width - navigatorWidth - 3
		m.body.Height = msg.Height - 4
		return m, nil
	case opDoneMsg:
		return m.handleDone(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.actionOutput = &ActionOutput{Message: fmt.Sprintf("%s failed: %v", msg.op, msg.err), IsError: true}
		return m, nil
	}
	switch msg.op {
	case opClose:
		m.quitting = true
		return m, tea.Quit
	case opNavigate, opStartOver:
		m.loadDraft()
		m.actionOutput = nil
	case opSubmit:
		m.actionOutput = &ActionOutput{Message: "Result submitted"}
	case opEdit:
		m.actionOutput = &ActionOutput{Message: "Result reopened for editing"}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		m.quitting = true
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}
	if m.editingOutput {
		return m.handleOutputKey(msg)
	}
	if m.confirmStartOver {
		switch {
		case key.Matches(msg, m.keys.ConfirmYes):
			m.confirmStartOver = false
			return m.run(opStartOver, m.ctl.StartOver)
		case key.Matches(msg, m.keys.ConfirmNo):
			m.confirmStartOver = false
		}
		return m, nil
	}

	rows := m.draft.rows()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Pass):
		m.setVerdict(result.Bool(true))
	case key.Matches(msg, m.keys.Fail):
		m.setVerdict(result.Bool(false))
	case key.Matches(msg, m.keys.Unset):
		m.setVerdict(nil)
	case key.Matches(msg, m.keys.Behavior):
		m.toggleBehavior(msg.String())
	case key.Matches(msg, m.keys.Output):
		if s, ok := m.currentScenario(); ok && !m.ctl.Submitted() {
			m.editingOutput = true
			m.output.SetValue(m.draft.Scenarios[s].Output)
			m.output.Focus()
			return m, textinput.Blink
		}
	case key.Matches(msg, m.keys.Submit):
		if m.ctl.Submitted() {
			return m, nil
		}
		m.ctl.SetResult(m.draft.submission())
		return m.run(opSubmit, func(ctx context.Context) error {
			_, err := m.ctl.Submit(ctx)
			return err
		})
	case key.Matches(msg, m.keys.Edit):
		if !m.ctl.Submitted() {
			return m, nil
		}
		return m.run(opEdit, m.ctl.EditTest)
	case key.Matches(msg, m.keys.StartOver):
		m.confirmStartOver = true
	case key.Matches(msg, m.keys.Next):
		return m.run(opNavigate, m.ctl.Next)
	case key.Matches(msg, m.keys.Previous):
		return m.run(opNavigate, m.ctl.Previous)
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Close):
		return m.run(opClose, m.ctl.Close)
	}
	return m, nil
}

func (m Model) handleOutputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		if s, ok := m.currentScenario(); ok {
			m.draft.Scenarios[s].Output = strings.TrimSpace(m.output.Value())
			m.ctl.SetState(m.draft.state())
		}
		m.editingOutput = false
		m.output.Blur()
		return m, nil
	case tea.KeyEsc:
		m.editingOutput = false
		m.output.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.output, cmd = m.output.Update(msg)
	return m, cmd
}

// run executes fn off the UI goroutine and reports back with opDoneMsg.
func (m Model) run(o op, fn func(context.Context) error) (tea.Model, tea.Cmd) {
	m.busy = true
	ctx := m.ctx
	return m, func() tea.Msg {
		return opDoneMsg{op: o, err: fn(ctx)}
	}
}

func (m *Model) setVerdict(passed *bool) {
	if m.ctl.Submitted() {
		m.actionOutput = &ActionOutput{Message: "Result is submitted; press e to edit", IsError: true}
		return
	}
	rows := m.draft.rows()
	if m.cursor >= len(rows) {
		return
	}
	r := rows[m.cursor]
	m.draft.Scenarios[r.scenario].Assertions[r.assertion].Passed = passed
	m.ctl.SetState(m.draft.state())
}

func (m *Model) toggleBehavior(k string) {
	s, ok := m.currentScenario()
	if !ok || m.ctl.Submitted() {
		return
	}
	kinds := result.BehaviorKinds()
	n := int(k[0] - '1')
	if n < 0 || n >= len(kinds) {
		return
	}
	m.draft.toggleBehavior(s, kinds[n])
	m.ctl.SetState(m.draft.state())
}

func (m Model) currentScenario() (int, bool) {
	rows := m.draft.rows()
	if m.cursor < len(rows) {
		return rows[m.cursor].scenario, true
	}
	if len(m.draft.Scenarios) > 0 {
		return 0, true
	}
	return 0, false
}

func (m *Model) loadDraft() {
	stored, ok := m.ctl.Result(m.ctl.CurrentPosition())
	m.draft = newDraft(m.ctl.CurrentTest(), stored, ok)
	m.cursor = 0
}

// navStatus derives the navigator label for position from the controller's
// latest results.
func (m Model) navStatus(position int, test testplan.Test) report.NavStatus {
	r, ok := m.ctl.Result(position)
	complete := ok && r.Submitted() && result.IsComplete(test, r)
	switch {
	case ok && r.Started() && !complete:
		return report.NavInProgress
	case m.conflicts[test.Index]:
		return report.NavHasConflicts
	case complete:
		return report.NavComplete
	default:
		return report.NavNotStarted
	}
}
