package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jbonatakis/testqueue/internal/report"
	"github.com/jbonatakis/testqueue/internal/session"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

const navigatorWidth = 34

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	passStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

var navStatusStyles = map[report.NavStatus]lipgloss.Style{
	report.NavNotStarted:   mutedStyle,
	report.NavInProgress:   warnStyle,
	report.NavHasConflicts: failStyle,
	report.NavComplete:     passStyle,
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	header := titleStyle.Render(m.info.Title)
	if m.info.ATName != "" || m.info.Browser != "" {
		header += mutedStyle.Render(fmt.Sprintf("  %s with %s", m.info.ATName, m.info.Browser))
	}

	m.body.SetContent(RenderTest(m))
	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(navigatorWidth).Render(RenderNavigator(m)),
		" ",
		m.body.View(),
	)

	parts := []string{header, panes}
	if m.confirmStartOver {
		parts = append(parts, RenderActionOutput(&ActionOutput{
			Message: "Start over? All recorded results for this test will be cleared. [y/n]",
			IsError: true,
		}, m.windowWidth))
	} else if m.actionOutput != nil {
		parts = append(parts, RenderActionOutput(m.actionOutput, m.windowWidth))
	}
	if m.help.ShowAll {
		parts = append(parts, m.help.View(m.keys))
	}
	parts = append(parts, RenderBottomBar(m))
	return strings.Join(parts, "\n")
}

// RenderNavigator lists the run's tests with their status.
func RenderNavigator(m Model) string {
	var b strings.Builder
	current := m.ctl.CurrentPosition()
	for i, test := range m.ctl.Tests() {
		position := i + 1
		status := m.navStatus(position, test)
		line := fmt.Sprintf("%2d. %s", position, truncate(test.Title, navigatorWidth-6))
		if position == current {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n    ")
		b.WriteString(navStatusStyles[status].Render(string(status)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderTest renders the current test's scenarios and the draft verdicts.
func RenderTest(m Model) string {
	test := m.ctl.CurrentTest()
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(fmt.Sprintf("Test %d of %d: %s", m.ctl.CurrentPosition(), m.ctl.Len(), test.Title)))
	if m.ctl.Submitted() {
		b.WriteString(passStyle.Render("Submitted"))
		b.WriteString(mutedStyle.Render("  press e to edit"))
		b.WriteString("\n")
	}

	cursorRow := -1
	rows := m.draft.rows()
	if m.cursor < len(rows) {
		cursorRow = m.cursor
	}
	rowIdx := 0
	resolved, _ := m.info.resolved(test.Index)
	for i, scenario := range test.Scenarios {
		sd := m.draft.Scenarios[i]
		fmt.Fprintf(&b, "\n%s\n", titleStyle.Render("After "+commandText(resolved, i, scenario)))
		if m.editingOutput && cursorRow >= 0 && rows[cursorRow].scenario == i {
			fmt.Fprintf(&b, "  Output: %s\n", m.output.View())
		} else {
			out := sd.Output
			if out == "" {
				out = mutedStyle.Render("(no output recorded)")
			}
			fmt.Fprintf(&b, "  Output: %s\n", out)
		}
		for j, assertion := range scenario.Assertions {
			line := fmt.Sprintf("  %s %s", verdictMark(sd.Assertions[j].Passed), assertion.Text)
			if assertion.Priority == testplan.PriorityOptional {
				line += mutedStyle.Render(" (optional)")
			}
			if rowIdx == cursorRow {
				line = selectedStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
			rowIdx++
		}
		if len(sd.Behaviors) > 0 {
			names := make([]string, 0, len(sd.Behaviors))
			for _, k := range sd.Behaviors {
				names = append(names, k.Label())
			}
			fmt.Fprintf(&b, "  %s %s\n", warnStyle.Render("Unexpected:"), strings.Join(names, ", "))
		}
	}

	if issues := report.OpenIssues(m.info.Issues, m.info.RunID, test.Index); len(issues) > 0 {
		fmt.Fprintf(&b, "\n%s\n", warnStyle.Render(fmt.Sprintf("%d open issue(s)", len(issues))))
		for _, is := range issues {
			fmt.Fprintf(&b, "  - %s %s\n", is.Title, mutedStyle.Render(is.Link))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// commandText joins the resolved commands of scenario i, falling back to
// the raw command IDs when the test was not resolved.
func commandText(rt testplan.ResolvedTest, i int, scenario testplan.Scenario) string {
	var parts []string
	if i < len(rt.Scenarios) && rt.Scenarios[i].ID == scenario.ID {
		for _, cmd := range rt.Scenarios[i].Commands {
			parts = append(parts, cmd.Text)
		}
	} else {
		parts = append(parts, scenario.CommandIDs...)
	}
	return strings.Join(parts, " then ")
}

func (info Info) resolved(index int) (testplan.ResolvedTest, bool) {
	for _, rt := range info.Tests {
		if rt.Index == index {
			return rt, true
		}
	}
	return testplan.ResolvedTest{}, false
}

func verdictMark(passed *bool) string {
	switch {
	case passed == nil:
		return "[ ]"
	case *passed:
		return passStyle.Render("[✓]")
	default:
		return failStyle.Render("[✗]")
	}
}

// RenderActionOutput renders action output or error messages.
func RenderActionOutput(output *ActionOutput, width int) string {
	if output == nil {
		return ""
	}
	style := lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder())
	if output.IsError {
		style = style.BorderForeground(lipgloss.Color("196"))
	} else {
		style = style.BorderForeground(lipgloss.Color("46"))
	}
	if width > 4 {
		style = style.Width(width - 4)
	}
	return style.Render(output.Message)
}

func RenderBottomBar(m Model) string {
	left := strings.Join(actionHints(m), " ")
	right := fmt.Sprintf("save:%s", m.ctl.Status())
	if m.ctl.Status() == session.SaveFailed {
		right = failStyle.Render(right)
	}
	if m.busy {
		right = "working… " + right
	}
	contentWidth := m.windowWidth
	padding := 1
	if contentWidth > 0 {
		contentWidth -= padding * 2
		if contentWidth < 0 {
			contentWidth = 0
		}
	}
	style := lipgloss.NewStyle().Reverse(true).Padding(0, padding)
	return style.Render(layoutBar(left, right, contentWidth))
}

func actionHints(m Model) []string {
	switch {
	case m.editingOutput:
		return []string{"[enter]save output", "[esc]cancel"}
	case m.confirmStartOver:
		return []string{"[y]es", "[n]o"}
	case m.ctl.Submitted():
		return []string{"[e]dit", "[r]start over", "[n]ext", "[p]rev", "[q]close"}
	default:
		return []string{"[y]pass", "[x]fail", "[o]utput", "[s]ubmit", "[r]start over", "[n]ext", "[p]rev", "[q]close"}
	}
}

func layoutBar(left string, right string, width int) string {
	if width <= 0 {
		return left + " " + right
	}
	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(right)
	gap := width - leftWidth - rightWidth
	if gap < 1 {
		availableLeft := width - rightWidth - 1
		if availableLeft < 0 {
			return truncate(right, width)
		}
		left = truncate(left, availableLeft)
		leftWidth = lipgloss.Width(left)
		gap = width - leftWidth - rightWidth
		if gap < 1 {
			gap = 1
		}
	}
	return truncate(left+strings.Repeat(" ", gap)+right, width)
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if width <= 1 || len(runes) <= 1 {
		return string(runes[:min(len(runes), width)])
	}
	out := runes
	for lipgloss.Width(string(out)) > width-1 && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return string(out) + "…"
}
