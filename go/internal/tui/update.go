package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mcdev12/pitchtank/go/internal/models"
)

var (
	ErrCompanyRequired = errors.New("company name is required")
	ErrInvalidAmount   = errors.New("amount must be a positive number like 250000 or 250k")
	ErrInvalidEquity   = errors.New("equity must be between 1 and 100")
	ErrInvalidCounter  = errors.New("counter needs an amount and an equity, e.g. 400k 15")
	ErrInvalidProof    = errors.New("traction must be a trustmrr.com profile or defi:<protocol>")
)

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForSnapshot(m.updates), m.Spinner.Tick)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.Keys.CtrlC) {
			if m.CtrlCPending {
				return m, tea.Quit
			}
			m.CtrlCPending = true
			m.Notice = "press ctrl+c again to exit"
			return m, tea.Tick(time.Second, func(time.Time) tea.Msg { return CtrlCResetMsg{} })
		}

	case CtrlCResetMsg:
		m.CtrlCPending = false
		m.Notice = ""
		return m, nil

	case SnapshotMsg:
		m.applySnapshot(msg.Session)
		return m, waitForSnapshot(m.updates)

	case VerifiedMsg:
		if msg.Err != nil {
			m.State = StateEntry
			m.Err = fmt.Errorf("verification: %w", msg.Err)
			return m, nil
		}
		m.Verification = msg.Verification
		m.Notice = verificationSummary(msg.Verification)
		m.State = StateStarting
		return m, startCmd(m.ctx, m.driver, msg.Pitch, msg.Verification)

	case StartedMsg:
		if msg.Err != nil {
			m.State = StateEntry
			m.Err = msg.Err
			return m, nil
		}
		m.State = StateLive
		m.Err = nil
		m.Input.Placeholder = "Type your pitch..."
		return m, m.Input.Focus()

	case ActionDoneMsg:
		if msg.Err != nil {
			m.Err = fmt.Errorf("%s: %w", msg.Action, msg.Err)
		}
		return m, nil

	case TranscribedMsg:
		m.Transcribing = false
		if msg.Err != nil {
			m.Err = fmt.Errorf("voice: %w", msg.Err)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	switch m.State {
	case StateEntry:
		return m.updateEntry(msg)
	case StateLive:
		return m.updateLive(msg)
	case StateOutcome:
		return m.updateOutcome(msg)
	}
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.Width = width
	m.Height = height
	m.Input.Width = max(20, width-6)
	m.Viewport.Width = max(20, width-4)
	m.Viewport.Height = max(5, height-14)
	m.refreshTranscript()
}

// applySnapshot adopts the controller's view of the session.
func (m *Model) applySnapshot(s models.Session) {
	m.Session = s
	if s.Phase == models.PhaseClosed && m.State == StateLive {
		m.State = StateOutcome
		m.Mode = InputMessage
		m.Recording = false
		m.Input.Blur()
	}
	if s.Phase != models.PhasePitch && m.Input.Placeholder == "Type your pitch..." {
		m.Input.Placeholder = "Answer the sharks..."
	}
	m.refreshTranscript()
}

func (m *Model) refreshTranscript() {
	atBottom := m.Viewport.AtBottom()
	m.Viewport.SetContent(renderTranscript(m.Session, m.Viewport.Width))
	if atBottom || m.Viewport.TotalLineCount() <= m.Viewport.Height {
		m.Viewport.GotoBottom()
	}
}

func (m *Model) updateEntry(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(k, m.Keys.NextField):
			return m, m.focusField(m.Focus + 1)
		case key.Matches(k, m.Keys.PrevField):
			return m, m.focusField(m.Focus - 1)
		case key.Matches(k, m.Keys.Submit):
			if m.Focus < fieldCount-1 {
				return m, m.focusField(m.Focus + 1)
			}
			pitch, err := m.pitchFromForm()
			if err != nil {
				m.Err = err
				return m, nil
			}
			m.Err = nil
			m.Verification = nil
			if pitch.ProofType != "" {
				m.State = StateVerifying
				return m, tea.Batch(m.Spinner.Tick, verifyCmd(m.ctx, m.driver, pitch))
			}
			m.State = StateStarting
			return m, tea.Batch(m.Spinner.Tick, startCmd(m.ctx, m.driver, pitch, nil))
		}
	}

	var cmd tea.Cmd
	m.Fields[m.Focus], cmd = m.Fields[m.Focus].Update(msg)
	return m, cmd
}

func (m *Model) focusField(i int) tea.Cmd {
	i = (i + fieldCount) % fieldCount
	m.Fields[m.Focus].Blur()
	m.Focus = i
	return m.Fields[i].Focus()
}

func (m *Model) pitchFromForm() (models.PitchData, error) {
	company := strings.TrimSpace(m.Fields[fieldCompany].Value())
	if company == "" {
		return models.PitchData{}, ErrCompanyRequired
	}
	amount, err := ParseAmount(m.Fields[fieldAmount].Value())
	if err != nil {
		return models.PitchData{}, err
	}
	equity, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(m.Fields[fieldEquity].Value()), "%"))
	if err != nil || equity < 1 || equity > 100 {
		return models.PitchData{}, ErrInvalidEquity
	}
	kind, subject, err := ParseProof(m.Fields[fieldProof].Value())
	if err != nil {
		return models.PitchData{}, err
	}
	return models.PitchData{
		CompanyName:        company,
		CompanyDescription: strings.TrimSpace(m.Fields[fieldDescription].Value()),
		AmountRaising:      amount,
		EquityPercent:      equity,
		ProofType:          string(kind),
		ProofValue:         subject,
	}, nil
}

// ParseProof reads the traction field: a TrustMRR profile URL or
// "defi:<protocol slug>". An empty field means no proof.
func ParseProof(s string) (models.VerificationType, string, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", "", nil
	case strings.HasPrefix(strings.ToLower(s), "defi:"):
		slug := strings.TrimSpace(s[len("defi:"):])
		if slug == "" {
			return "", "", ErrInvalidProof
		}
		return models.VerificationDeFi, slug, nil
	case strings.Contains(strings.ToLower(s), "trustmrr.com/"):
		return models.VerificationTrustMRR, s, nil
	}
	return "", "", ErrInvalidProof
}

func verificationSummary(v *models.Verification) string {
	if v == nil {
		return ""
	}
	status := "claimed"
	if v.Verified {
		status = "verified"
	}
	summary := fmt.Sprintf("%s %s", v.Type, status)
	if v.PrimaryLabel != "" && v.PrimaryValue > 0 {
		summary += fmt.Sprintf(", %s $%s", v.PrimaryLabel, groupThousands(int64(v.PrimaryValue)))
	}
	if v.Message != "" {
		summary += ": " + v.Message
	}
	return summary
}

func (m *Model) updateLive(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.Input, cmd = m.Input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(k, m.Keys.Cancel):
		if m.Mode == InputCounter {
			m.Mode = InputMessage
			m.Input.Reset()
			return m, nil
		}
		if m.Recording {
			m.Recording = false
			m.driver.CancelRecording()
		}
		return m, nil

	case key.Matches(k, m.Keys.Send):
		return m, m.submitInput()

	case key.Matches(k, m.Keys.EndPitch):
		return m, actionCmd("end pitch", m.driver.EndPitch)

	case key.Matches(k, m.Keys.Record):
		if m.Transcribing {
			return m, nil
		}
		if !m.Recording {
			if err := m.driver.StartRecording(); err != nil {
				m.Err = fmt.Errorf("voice: %w", err)
				return m, nil
			}
			m.Recording = true
			return m, nil
		}
		m.Recording = false
		m.Transcribing = true
		return m, submitRecordingCmd(m.ctx, m.driver)

	case key.Matches(k, m.Keys.NextOffer):
		if n := len(m.pendingOffers()); n > 0 {
			m.SelectedOffer = (m.SelectedOffer + 1) % n
		}
		return m, nil

	case key.Matches(k, m.Keys.Accept), key.Matches(k, m.Keys.Decline):
		o, ok := m.selectedOffer()
		if !ok {
			return m, nil
		}
		action := models.OfferActionDecline
		if key.Matches(k, m.Keys.Accept) {
			action = models.OfferActionAccept
		}
		return m, actionCmd(string(action), func() error {
			return m.driver.RespondToOffer(o.ID, action, nil)
		})

	case key.Matches(k, m.Keys.Counter):
		if _, ok := m.selectedOffer(); ok {
			m.Mode = InputCounter
			m.Input.Reset()
			m.Input.Placeholder = "amount equity, e.g. 400k 15"
		}
		return m, nil

	case key.Matches(k, m.Keys.CycleStatus):
		idx := int(k.String()[1] - '1')
		if idx >= 0 && idx < len(m.Session.Participants) {
			id := m.Session.Participants[idx].ID
			return m, actionCmd("cycle status", func() error { return m.driver.CycleStatus(id) })
		}
		return m, nil

	case key.Matches(k, m.Keys.ScrollUp), key.Matches(k, m.Keys.ScrollDown):
		var cmd tea.Cmd
		m.Viewport, cmd = m.Viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

func (m *Model) submitInput() tea.Cmd {
	text := strings.TrimSpace(m.Input.Value())
	if text == "" {
		return nil
	}

	if m.Mode == InputCounter {
		terms, err := ParseCounter(text)
		if err != nil {
			m.Err = err
			return nil
		}
		o, ok := m.selectedOffer()
		m.Mode = InputMessage
		m.Input.Reset()
		m.Input.Placeholder = "Answer the sharks..."
		if !ok {
			return nil
		}
		return actionCmd("counter", func() error {
			return m.driver.RespondToOffer(o.ID, models.OfferActionCounter, &terms)
		})
	}

	m.Input.Reset()
	m.Err = nil
	return actionCmd("message", func() error { return m.driver.SendMessage(text) })
}

func (m *Model) updateOutcome(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(k, m.Keys.NewPitch):
		m.State = StateEntry
		m.Err = nil
		m.SelectedOffer = 0
		for i := range m.Fields {
			m.Fields[i].Reset()
		}
		return m, tea.Batch(m.focusField(fieldCompany), actionCmd("new pitch", m.driver.Reset))
	case key.Matches(k, m.Keys.Quit):
		return m, tea.Quit
	}
	return m, nil
}

// ParseAmount reads whole dollars, accepting k and m suffixes, commas and a
// leading dollar sign.
func ParseAmount(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1e3, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1e6, strings.TrimSuffix(s, "m")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return int64(v * mult), nil
}

// ParseCounter reads "<amount> <equity>" as typed into the counter prompt.
func ParseCounter(s string) (models.CounterTerms, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return models.CounterTerms{}, ErrInvalidCounter
	}
	amount, err := ParseAmount(parts[0])
	if err != nil {
		return models.CounterTerms{}, ErrInvalidCounter
	}
	equity, err := strconv.ParseFloat(strings.TrimSuffix(parts[1], "%"), 64)
	if err != nil || equity <= 0 || equity > 100 {
		return models.CounterTerms{}, ErrInvalidCounter
	}
	return models.CounterTerms{Amount: amount, EquityPercent: equity}, nil
}
