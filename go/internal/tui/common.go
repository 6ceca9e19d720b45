package tui

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// IsTTY returns true if stdout is connected to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run drives a session from the terminal until the user quits or ctx ends.
// On a TTY it runs the full-screen interface, otherwise a line-oriented one.
func Run(ctx context.Context, driver Driver) error {
	if !IsTTY() {
		return NewFallbackRunner(driver, os.Stdin, os.Stdout).Run(ctx)
	}

	m := NewModel(ctx, driver)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
