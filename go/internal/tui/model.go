// Package tui implements the terminal user interface using Bubble Tea.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/mcdev12/pitchtank/go/internal/models"
)

// Driver is the session surface the terminal UI drives.
type Driver interface {
	Start(ctx context.Context, pitch models.PitchData, verification *models.Verification) error
	Verify(ctx context.Context, kind models.VerificationType, subject string) (*models.Verification, error)
	EndPitch() error
	SendMessage(text string) error
	RespondToOffer(offerID string, action models.OfferAction, terms *models.CounterTerms) error
	CycleStatus(participantID string) error
	StartRecording() error
	SubmitRecording(ctx context.Context) (string, error)
	CancelRecording()
	Reset() error
	Snapshot() (models.Session, error)
	Subscribe() (<-chan models.Session, func())
}

// ViewState represents the current screen.
type ViewState int

const (
	StateEntry ViewState = iota
	StateVerifying
	StateStarting
	StateLive
	StateOutcome
)

// Entry form fields, in focus order.
const (
	fieldCompany = iota
	fieldDescription
	fieldAmount
	fieldEquity
	fieldProof
	fieldCount
)

// InputMode is what the bottom input line is collecting.
type InputMode int

const (
	InputMessage InputMode = iota
	InputCounter
)

// Model is the main TUI model.
type Model struct {
	driver      Driver
	ctx         context.Context
	updates     <-chan models.Session
	unsubscribe func()

	State   ViewState
	Session models.Session
	Err     error
	Notice  string

	// Entry form
	Fields       []textinput.Model
	Focus        int
	Verification *models.Verification

	// Live panel
	Input         textinput.Model
	Mode          InputMode
	SelectedOffer int
	Recording     bool
	Transcribing  bool
	Viewport      viewport.Model
	Spinner       spinner.Model
	Help          help.Model
	Keys          KeyMap

	Width  int
	Height int

	CtrlCPending bool
}

func NewModel(ctx context.Context, driver Driver) *Model {
	fields := make([]textinput.Model, fieldCount)
	for i := range fields {
		ti := textinput.New()
		ti.CharLimit = 200
		ti.Width = 50
		fields[i] = ti
	}
	fields[fieldCompany].Placeholder = "Company name"
	fields[fieldDescription].Placeholder = "What does it do? (optional)"
	fields[fieldDescription].CharLimit = 500
	fields[fieldAmount].Placeholder = "Amount raising, e.g. 500000 or 500k"
	fields[fieldEquity].Placeholder = "Equity offered, percent"
	fields[fieldProof].Placeholder = "Optional: trustmrr.com/startup/... or defi:<protocol>"
	fields[fieldCompany].Focus()

	input := textinput.New()
	input.Placeholder = "Type your pitch..."
	input.CharLimit = 2000
	input.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = WarningStyle

	updates, unsubscribe := driver.Subscribe()

	return &Model{
		driver:      driver,
		ctx:         ctx,
		updates:     updates,
		unsubscribe: unsubscribe,
		State:    StateEntry,
		Fields:   fields,
		Input:    input,
		Viewport: viewport.New(80, 14),
		Spinner:  sp,
		Help:     help.New(),
		Keys:     DefaultKeyMap,
		Width:    80,
		Height:   24,
	}
}

// Close releases the snapshot subscription.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// pendingOffers returns the offers still awaiting the user, oldest first.
func (m *Model) pendingOffers() []models.Offer {
	var out []models.Offer
	for _, o := range m.Session.Offers {
		if o.Status == models.OfferStatusPending {
			out = append(out, o)
		}
	}
	return out
}

func (m *Model) selectedOffer() (models.Offer, bool) {
	pending := m.pendingOffers()
	if len(pending) == 0 {
		return models.Offer{}, false
	}
	if m.SelectedOffer >= len(pending) {
		m.SelectedOffer = len(pending) - 1
	}
	if m.SelectedOffer < 0 {
		m.SelectedOffer = 0
	}
	return pending[m.SelectedOffer], true
}
