package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jbonatakis/testqueue/internal/report"
	"github.com/jbonatakis/testqueue/internal/result"
	"github.com/jbonatakis/testqueue/internal/session"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

type recordingSaver struct {
	mu    sync.Mutex
	saves []result.Update
	clear []int
	fail  error
}

func (s *recordingSaver) SaveResult(_ context.Context, index int, upd result.Update) (result.TestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return result.TestResult{}, s.fail
	}
	s.saves = append(s.saves, upd)
	r := result.TestResult{Index: index, State: upd.State}
	if upd.Result != nil {
		now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		r.SubmittedAt = &now
		r.ScenarioResults = upd.Result.ScenarioResults
	}
	return r, nil
}

func (s *recordingSaver) ClearResult(_ context.Context, index int) (result.TestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear = append(s.clear, index)
	return result.TestResult{Index: index}, nil
}

func sessionTests() []testplan.Test {
	return []testplan.Test{
		{ID: "navigate", Index: 1, Title: "Navigate to checkbox", Scenarios: []testplan.Scenario{
			{ID: "s1", ATID: "nvda", CommandIDs: []string{"tab"}, Assertions: []testplan.Assertion{
				{ID: "role", Text: "Role 'checkbox' is conveyed", Priority: testplan.PriorityRequired},
				{ID: "state", Text: "State 'not checked' is conveyed", Priority: testplan.PriorityOptional},
			}},
		}},
		{ID: "operate", Index: 4, Title: "Operate checkbox", Scenarios: []testplan.Scenario{
			{ID: "s2", ATID: "nvda", CommandIDs: []string{"space"}, Assertions: []testplan.Assertion{
				{ID: "toggle", Text: "Change in state is conveyed", Priority: testplan.PriorityRequired},
			}},
		}},
	}
}

func resolvedTests() []testplan.ResolvedTest {
	commands := map[string]testplan.Command{"tab": {ID: "tab", Text: "Tab"}, "space": {ID: "space", Text: "Space"}}
	var out []testplan.ResolvedTest
	for _, test := range sessionTests() {
		rt := testplan.ResolvedTest{Test: test, InferredATID: "nvda"}
		for _, s := range test.Scenarios {
			rs := testplan.ResolvedScenario{Scenario: s}
			for _, id := range s.CommandIDs {
				rs.Commands = append(rs.Commands, commands[id])
			}
			rt.Scenarios = append(rt.Scenarios, rs)
		}
		out = append(out, rt)
	}
	return out
}

func newTestModel(t *testing.T, saver session.Saver, stored []result.TestResult) Model {
	t.Helper()
	ctl, err := session.New(saver, sessionTests(), stored, 1)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	info := Info{
		Title:   "Checkbox Example",
		ATName:  "NVDA",
		Browser: "Chrome",
		RunID:   "run-1",
		Tests:   resolvedTests(),
		Navigator: []report.NavItem{
			{Position: 1, Test: sessionTests()[0], Status: report.NavNotStarted},
			{Position: 2, Test: sessionTests()[1], Status: report.NavHasConflicts},
		},
		Issues: []report.Issue{
			{ID: "i1", TestPlanRunID: "run-1", TestIndex: 1, Title: "Role announced twice", Link: "https://example.test/1"},
			{ID: "i2", TestPlanRunID: "run-1", TestIndex: 1, Title: "Closed one", Closed: true},
		},
	}
	return NewModel(context.Background(), ctl, info)
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		updated, cmd := m.Update(msg)
		m = updated.(Model)
		m = drain(t, m, cmd)
	}
	return m
}

// drain runs an operation command synchronously and feeds its result back.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	msg := cmd()
	done, ok := msg.(opDoneMsg)
	if !ok {
		return m
	}
	updated, _ := m.Update(done)
	return updated.(Model)
}

func TestVerdictKeysBufferState(t *testing.T) {
	saver := &recordingSaver{}
	m := newTestModel(t, saver, nil)

	m = press(t, m, "y", "j", "x")
	if got := m.draft.Scenarios[0].Assertions[0].Passed; got == nil || !*got {
		t.Fatalf("role verdict = %v, want pass", got)
	}
	if got := m.draft.Scenarios[0].Assertions[1].Passed; got == nil || *got {
		t.Fatalf("state verdict = %v, want fail", got)
	}
	if !m.ctl.Dirty() {
		t.Fatalf("expected controller buffer to be dirty")
	}
	if len(saver.saves) != 0 {
		t.Fatalf("verdict keys must not save, got %d saves", len(saver.saves))
	}

	m = press(t, m, "n")
	if m.ctl.CurrentPosition() != 2 {
		t.Fatalf("position = %d, want 2", m.ctl.CurrentPosition())
	}
	if len(saver.saves) != 1 || saver.saves[0].State == nil {
		t.Fatalf("expected one state save before navigating, got %#v", saver.saves)
	}
	var saved draft
	if err := json.Unmarshal(saver.saves[0].State, &saved); err != nil {
		t.Fatalf("decode saved state: %v", err)
	}
	if saved.Scenarios[0].Assertions[0].Passed == nil {
		t.Fatalf("saved state lost the role verdict: %s", saver.saves[0].State)
	}

	m = press(t, m, "p")
	if got := m.draft.Scenarios[0].Assertions[0].Passed; got == nil || !*got {
		t.Fatalf("draft not restored from saved state after navigating back")
	}
}

func TestSubmitThenEdit(t *testing.T) {
	saver := &recordingSaver{}
	m := newTestModel(t, saver, nil)

	m = press(t, m, "o")
	if !m.editingOutput {
		t.Fatalf("expected output editing mode")
	}
	m = press(t, m, "c", "h", "e", "c", "k", "enter")
	if m.draft.Scenarios[0].Output != "check" {
		t.Fatalf("output = %q, want %q", m.draft.Scenarios[0].Output, "check")
	}

	m = press(t, m, "y", "3", "s")
	if !m.ctl.Submitted() {
		t.Fatalf("expected submitted result")
	}
	last := saver.saves[len(saver.saves)-1]
	if last.Result == nil {
		t.Fatalf("expected submission in last save")
	}
	sr := last.Result.ScenarioResults[0]
	if sr.Output != "check" || len(sr.UnexpectedBehaviors) != 1 || sr.UnexpectedBehaviors[0].Kind != result.BehaviorSluggish {
		t.Fatalf("scenario result = %#v", sr)
	}
	if m.actionOutput == nil || m.actionOutput.Message != "Result submitted" {
		t.Fatalf("action output = %#v", m.actionOutput)
	}

	m = press(t, m, "x")
	if m.actionOutput == nil || !m.actionOutput.IsError {
		t.Fatalf("expected submitted result to reject verdict changes")
	}

	m = press(t, m, "e")
	if m.ctl.Submitted() {
		t.Fatalf("expected edit to reopen the result")
	}
	if !saver.saves[len(saver.saves)-1].Reopen {
		t.Fatalf("expected reopen update, got %#v", saver.saves[len(saver.saves)-1])
	}
}

func TestStartOverNeedsConfirmation(t *testing.T) {
	saver := &recordingSaver{}
	m := newTestModel(t, saver, nil)

	m = press(t, m, "y", "r")
	if !m.confirmStartOver {
		t.Fatalf("expected confirmation prompt")
	}
	if !strings.Contains(m.View(), "Start over?") {
		t.Fatalf("expected prompt in view")
	}
	m = press(t, m, "n")
	if m.confirmStartOver || len(saver.clear) != 0 {
		t.Fatalf("cancel should not clear, clear=%v", saver.clear)
	}
	if m.ctl.CurrentPosition() != 1 {
		t.Fatalf("n while confirming must not navigate")
	}

	m = press(t, m, "r", "y")
	if len(saver.clear) != 1 || saver.clear[0] != 1 {
		t.Fatalf("clear calls = %v, want [1]", saver.clear)
	}
	if m.draft.Scenarios[0].Assertions[0].Passed != nil {
		t.Fatalf("draft should be reset after start over")
	}
}

func TestFailedSaveKeepsPositionAndShowsError(t *testing.T) {
	saver := &recordingSaver{fail: errors.New("network down")}
	m := newTestModel(t, saver, nil)

	m = press(t, m, "y", "n")
	if m.ctl.CurrentPosition() != 1 {
		t.Fatalf("position = %d, want 1", m.ctl.CurrentPosition())
	}
	if m.actionOutput == nil || !m.actionOutput.IsError || !strings.Contains(m.actionOutput.Message, "network down") {
		t.Fatalf("action output = %#v", m.actionOutput)
	}
	if !strings.Contains(RenderBottomBar(m), "save:failed") {
		t.Fatalf("bottom bar should show failed save, got %q", RenderBottomBar(m))
	}
}

func TestCloseSavesAndQuits(t *testing.T) {
	saver := &recordingSaver{}
	m := newTestModel(t, saver, nil)
	m = press(t, m, "y")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = updated.(Model)
	if cmd == nil {
		t.Fatalf("expected close command")
	}
	updated, quit := m.Update(cmd())
	m = updated.(Model)
	if !m.quitting || quit == nil {
		t.Fatalf("expected model to quit after close")
	}
	if len(saver.saves) != 1 {
		t.Fatalf("close should save pending state, saves=%d", len(saver.saves))
	}
	if !m.ctl.Closed() {
		t.Fatalf("controller should be closed")
	}
}

func TestViewShowsNavigatorAndOpenIssues(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	stored := []result.TestResult{{Index: 1, SubmittedAt: &now, ScenarioResults: []result.ScenarioResult{
		{ScenarioID: "s1", Output: "checkbox, not checked", AssertionResults: []result.AssertionResult{
			{AssertionID: "role", Passed: result.Bool(true)},
		}, UnexpectedBehaviors: []result.UnexpectedBehavior{{Kind: result.BehaviorATCrashed}}},
	}}}
	m := newTestModel(t, &recordingSaver{}, stored)
	m.windowWidth = 140

	nav := RenderNavigator(m)
	for _, want := range []string{"Navigate to checkbox", string(report.NavComplete), string(report.NavHasConflicts)} {
		if !strings.Contains(nav, want) {
			t.Fatalf("navigator missing %q:\n%s", want, nav)
		}
	}

	body := RenderTest(m)
	for _, want := range []string{"Test 1 of 2", "After Tab", "checkbox, not checked", "Submitted", "1 open issue(s)", "Role announced twice", "AT Crashed"} {
		if !strings.Contains(body, want) {
			t.Fatalf("test view missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "Closed one") {
		t.Fatalf("closed issues must be hidden:\n%s", body)
	}

	bar := RenderBottomBar(m)
	if !strings.Contains(bar, "[e]dit") || strings.Contains(bar, "[s]ubmit") {
		t.Fatalf("submitted hints wrong: %q", bar)
	}
}

func TestLayoutBarTruncates(t *testing.T) {
	out := layoutBar("[y]pass [x]fail [s]ubmit", "save:idle", 20)
	if got := len([]rune(out)); got != 20 {
		t.Fatalf("bar width = %d, want 20 (%q)", got, out)
	}
	if !strings.HasSuffix(out, "save:idle") {
		t.Fatalf("right side should survive truncation: %q", out)
	}
}
