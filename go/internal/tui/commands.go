package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mcdev12/pitchtank/go/internal/models"
)

// waitForSnapshot blocks until the controller publishes the next snapshot.
func waitForSnapshot(updates <-chan models.Session) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return nil
		}
		return SnapshotMsg{Session: s}
	}
}

func startCmd(ctx context.Context, driver Driver, pitch models.PitchData, verification *models.Verification) tea.Cmd {
	return func() tea.Msg {
		return StartedMsg{Err: driver.Start(ctx, pitch, verification)}
	}
}

func verifyCmd(ctx context.Context, driver Driver, pitch models.PitchData) tea.Cmd {
	return func() tea.Msg {
		v, err := driver.Verify(ctx, models.VerificationType(pitch.ProofType), pitch.ProofValue)
		return VerifiedMsg{Pitch: pitch, Verification: v, Err: err}
	}
}

func actionCmd(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return ActionDoneMsg{Action: action, Err: fn()}
	}
}

func submitRecordingCmd(ctx context.Context, driver Driver) tea.Cmd {
	return func() tea.Msg {
		text, err := driver.SubmitRecording(ctx)
		return TranscribedMsg{Text: text, Err: err}
	}
}
