package tui

import "github.com/mcdev12/pitchtank/go/internal/models"

// SnapshotMsg carries a fresh session snapshot.
type SnapshotMsg struct {
	Session models.Session
}

// StartedMsg reports the outcome of starting a session.
type StartedMsg struct {
	Err error
}

// VerifiedMsg reports the traction check run before a start.
type VerifiedMsg struct {
	Pitch        models.PitchData
	Verification *models.Verification
	Err          error
}

// ActionDoneMsg reports the result of a user action.
type ActionDoneMsg struct {
	Action string
	Err    error
}

// TranscribedMsg reports a finished voice submission.
type TranscribedMsg struct {
	Text string
	Err  error
}

// CtrlCResetMsg clears the pending Ctrl+C confirmation.
type CtrlCResetMsg struct{}
