package phase

import (
	"errors"
	"testing"
	"time"

	"github.com/mcdev12/pitchtank/go/internal/models"
)

func TestForwardPath(t *testing.T) {
	m := NewMachine()
	if m.Current() != models.PhaseIdle {
		t.Fatalf("initial phase: got %s, want idle", m.Current())
	}
	if _, err := m.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	tr, changed, err := m.Transition(models.PhaseQA)
	if err != nil || !changed {
		t.Fatalf("pitch -> qa: changed=%v err=%v", changed, err)
	}
	if !tr.Exits(models.PhasePitch) {
		t.Errorf("transition should exit pitch: %+v", tr)
	}
	if !m.CanResolveOffers() {
		t.Error("offers should be resolvable in qa")
	}
	if _, _, err := m.Transition(models.PhaseOffers); err != nil {
		t.Fatalf("qa -> offers failed: %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := m.Close(models.Outcome{Result: models.OutcomeNoDeal, Reason: models.NoDealAllOut}, now); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !m.Closed() || m.CanResolveOffers() {
		t.Error("closed session must not allow offer resolution")
	}
	if got := m.Outcome(); got == nil || got.Result != models.OutcomeNoDeal || !got.ClosedAt.Equal(now) {
		t.Errorf("outcome: got %+v", got)
	}
}

func TestNeverRegresses(t *testing.T) {
	m := NewMachine()
	m.Begin()
	m.Transition(models.PhaseOffers)

	if _, _, err := m.Transition(models.PhaseQA); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("offers -> qa: got %v, want ErrIllegalTransition", err)
	}
	if _, _, err := m.Transition(models.PhasePitch); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("offers -> pitch: got %v, want ErrIllegalTransition", err)
	}
	if m.Current() != models.PhaseOffers {
		t.Errorf("phase changed after rejected transition: %s", m.Current())
	}
}

func TestSamePhaseIsNoop(t *testing.T) {
	m := NewMachine()
	m.Begin()
	_, changed, err := m.Transition(models.PhasePitch)
	if err != nil || changed {
		t.Errorf("pitch -> pitch: changed=%v err=%v", changed, err)
	}
}

func TestClosedIsTerminalUntilReset(t *testing.T) {
	m := NewMachine()
	m.Begin()
	m.Close(models.Outcome{Result: models.OutcomeDeal}, time.Now())

	if _, _, err := m.Transition(models.PhaseQA); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("transition after close: got %v", err)
	}
	if _, err := m.Close(models.Outcome{Result: models.OutcomeNoDeal}, time.Now()); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("second close: got %v", err)
	}
	if m.Outcome().Result != models.OutcomeDeal {
		t.Error("second close must not overwrite the outcome")
	}

	m.Reset()
	if m.Current() != models.PhaseIdle || m.Outcome() != nil {
		t.Errorf("after reset: phase=%s outcome=%v", m.Current(), m.Outcome())
	}
	if _, err := m.Begin(); err != nil {
		t.Errorf("Begin after reset: %v", err)
	}
}

func TestCloseDirectlyRequired(t *testing.T) {
	m := NewMachine()
	if _, _, err := m.Transition(models.PhaseQA); !errors.Is(err, ErrNotStarted) {
		t.Errorf("transition before begin: got %v", err)
	}
	m.Begin()
	if _, _, err := m.Transition(models.PhaseClosed); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("transition to closed: got %v, want ErrIllegalTransition", err)
	}
}
