// Package phase holds the canonical session phase and its legal transitions.
package phase

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/pitchtank/go/internal/models"
)

var (
	ErrIllegalTransition = errors.New("illegal phase transition")
	ErrAlreadyClosed     = errors.New("session already closed")
	ErrNotStarted        = errors.New("session not started")
)

// Transition describes one phase change. Callers run entry/exit actions from it.
type Transition struct {
	From models.Phase
	To   models.Phase
}

// Exits reports whether the transition leaves phase p.
func (t Transition) Exits(p models.Phase) bool {
	return t.From == p && t.To != p
}

// Machine tracks the phase of one session. Phases only move forward
// (pitch -> qa -> offers -> closed) until Reset.
type Machine struct {
	current models.Phase
	outcome *models.Outcome
}

func NewMachine() *Machine {
	return &Machine{current: models.PhaseIdle}
}

func (m *Machine) Current() models.Phase {
	return m.current
}

// Outcome is nil until the session closes.
func (m *Machine) Outcome() *models.Outcome {
	if m.outcome == nil {
		return nil
	}
	o := *m.outcome
	return &o
}

func (m *Machine) Closed() bool {
	return m.current == models.PhaseClosed
}

// Active reports whether a session is running (started and not closed).
func (m *Machine) Active() bool {
	return m.current != models.PhaseIdle && m.current != models.PhaseClosed
}

// CanResolveOffers reports whether offers may be created or resolved now.
func (m *Machine) CanResolveOffers() bool {
	return m.current == models.PhaseQA || m.current == models.PhaseOffers
}

// Begin moves idle -> pitch.
func (m *Machine) Begin() (Transition, error) {
	if m.current != models.PhaseIdle {
		return Transition{}, fmt.Errorf("%w: begin from %s", ErrIllegalTransition, m.current)
	}
	return m.set(models.PhasePitch), nil
}

// Transition moves forward to phase to. Closing must go through Close so an
// outcome is always recorded. Moving to the current phase is a no-op.
func (m *Machine) Transition(to models.Phase) (Transition, bool, error) {
	switch {
	case m.current == models.PhaseIdle:
		return Transition{}, false, ErrNotStarted
	case m.current == models.PhaseClosed:
		return Transition{}, false, ErrAlreadyClosed
	case to == models.PhaseClosed || to == models.PhaseIdle || !to.Valid():
		return Transition{}, false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.current, to)
	case to == m.current:
		return Transition{}, false, nil
	case to.Rank() < m.current.Rank():
		return Transition{}, false, fmt.Errorf("%w: %s -> %s would regress", ErrIllegalTransition, m.current, to)
	}
	return m.set(to), true, nil
}

// Close enters the terminal phase with the given outcome.
func (m *Machine) Close(outcome models.Outcome, now time.Time) (Transition, error) {
	switch m.current {
	case models.PhaseIdle:
		return Transition{}, ErrNotStarted
	case models.PhaseClosed:
		return Transition{}, ErrAlreadyClosed
	}
	outcome.ClosedAt = now
	m.outcome = &outcome
	return m.set(models.PhaseClosed), nil
}

// Reset tears the session down to idle.
func (m *Machine) Reset() {
	m.current = models.PhaseIdle
	m.outcome = nil
}

func (m *Machine) set(to models.Phase) Transition {
	t := Transition{From: m.current, To: to}
	m.current = to
	return t
}
