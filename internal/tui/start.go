package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jbonatakis/testqueue/internal/session"
)

// Start runs the session UI until the tester closes it.
func Start(ctx context.Context, ctl *session.Controller, info Info) error {
	program := tea.NewProgram(NewModel(ctx, ctl, info), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}
