package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/mcdev12/pitchtank/go/internal/models"
)

var fieldLabels = [fieldCount]string{"Company", "Description", "Raising", "Equity %", "Traction"}

func (m *Model) View() string {
	var body string
	switch m.State {
	case StateEntry:
		body = m.viewEntry()
	case StateVerifying:
		body = m.viewVerifying()
	case StateStarting:
		body = m.viewStarting()
	case StateLive:
		body = m.viewLive()
	case StateOutcome:
		body = m.viewOutcome()
	}
	if m.Notice != "" {
		body += "\n" + DimStyle.Render(m.Notice)
	}
	return body
}

func (m *Model) viewEntry() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("PITCH TANK"))
	b.WriteString("\n")
	b.WriteString(DimStyle.Render("Five sharks. Ten minutes. Make your case."))
	b.WriteString("\n\n")

	for i, f := range m.Fields {
		label := fmt.Sprintf("%-12s", fieldLabels[i])
		if i == m.Focus {
			label = SelectedStyle.Render(label)
		} else {
			label = DimStyle.Render(label)
		}
		b.WriteString(label)
		b.WriteString(f.View())
		b.WriteString("\n")
	}

	if m.Err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render(m.Err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.Help.ShortHelpView([]key.Binding{m.Keys.NextField, m.Keys.Submit, m.Keys.CtrlC}))
	return BoxStyle.Render(b.String())
}

func (m *Model) viewVerifying() string {
	return BoxStyle.Render(fmt.Sprintf("%s Checking your traction...", m.Spinner.View()))
}

func (m *Model) viewStarting() string {
	return BoxStyle.Render(fmt.Sprintf("%s Entering the tank...", m.Spinner.View()))
}

func (m *Model) viewLive() string {
	s := m.Session
	sections := []string{
		m.viewHeader(),
		m.viewParticipants(),
		BoxStyle.Width(m.Viewport.Width + 2).Render(m.Viewport.View()),
	}
	if offers := m.viewOffers(); offers != "" {
		sections = append(sections, offers)
	}
	sections = append(sections, m.viewInput())
	if m.Err != nil {
		sections = append(sections, ErrorStyle.Render(m.Err.Error()))
	}
	sections = append(sections, m.Help.ShortHelpView(m.Keys.liveHelp(string(s.Phase), s.HasPendingOffer())))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) viewHeader() string {
	s := m.Session
	parts := []string{
		TitleStyle.Render(strings.ToUpper(s.Pitch.CompanyName)),
		SpeakerStyle.Render(phaseLabel(s.Phase)),
	}
	if s.Phase == models.PhasePitch {
		parts = append(parts, "pitch "+pressureStyle(s.Pressure).Render(FormatClock(s.PitchSecondsRemaining)))
		parts = append(parts, "total "+FormatClock(s.TotalSecondsRemaining))
	} else {
		parts = append(parts, "total "+pressureStyle(s.Pressure).Render(FormatClock(s.TotalSecondsRemaining)))
	}
	switch {
	case s.Offline:
		parts = append(parts, WarningStyle.Render("offline"))
	case !s.Connected && !s.TextOnly:
		parts = append(parts, ErrorStyle.Render("disconnected"))
	}
	if s.TextOnly {
		parts = append(parts, DimStyle.Render("text only"))
	}
	if v := s.Verification; v != nil && v.Verified {
		parts = append(parts, SpeakerStyle.Render(string(v.Type)+" verified"))
	}
	return StatusBarStyle.Width(max(20, m.Width)).Render(strings.Join(parts, "  │  "))
}

func (m *Model) viewParticipants() string {
	s := m.Session
	thinking := make(map[string]bool, len(s.Thinking))
	for _, t := range s.Thinking {
		thinking[t.Speaker] = true
	}
	speaking := make(map[string]bool, len(s.Speaking))
	for _, id := range s.Speaking {
		speaking[id] = true
	}

	cells := make([]string, 0, len(s.Participants))
	for i, p := range s.Participants {
		name := p.DisplayName
		if p.Status == models.ParticipantOut {
			name = DimStyle.Render(name)
		}
		cell := fmt.Sprintf("F%d %s %s", i+1, statusGlyph(p.Status), name)
		switch {
		case speaking[p.ID]:
			cell += " " + SuccessStyle.Render("speaking")
		case thinking[p.ID]:
			cell += " " + DimStyle.Render("…thinking")
		}
		cells = append(cells, cell)
	}
	return strings.Join(cells, "   ")
}

func (m *Model) viewOffers() string {
	pending := m.pendingOffers()
	if len(pending) == 0 {
		return ""
	}
	m.selectedOffer()

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Offers on the table"))
	for i, o := range pending {
		line := FormatOffer(o)
		if i == m.SelectedOffer {
			line = SelectedStyle.Render("▸ " + line)
		} else {
			line = "  " + line
		}
		b.WriteString("\n")
		b.WriteString(line)
	}
	return BoxStyle.Render(b.String())
}

func (m *Model) viewInput() string {
	prefix := "› "
	switch {
	case m.Recording:
		return ErrorStyle.Render("● recording") + DimStyle.Render("  ctrl+r to send, esc to discard")
	case m.Transcribing:
		return m.Spinner.View() + " transcribing..."
	case m.Mode == InputCounter:
		if o, ok := m.selectedOffer(); ok {
			prefix = WarningStyle.Render(fmt.Sprintf("counter %s › ", displayNameFor(m.Session, o.SharkID, o.SharkName)))
		}
	}
	return prefix + m.Input.View()
}

func (m *Model) viewOutcome() string {
	s := m.Session
	var b strings.Builder
	b.WriteString(TitleStyle.Render(strings.ToUpper(s.Pitch.CompanyName)))
	b.WriteString("\n\n")

	o := s.Outcome
	switch {
	case o != nil && o.Result == models.OutcomeDeal && o.Deal != nil:
		b.WriteString(SuccessStyle.Bold(true).Render("DEAL!"))
		b.WriteString("\n")
		b.WriteString(FormatOffer(*o.Deal))
	case o != nil:
		b.WriteString(ErrorStyle.Bold(true).Render("NO DEAL"))
		b.WriteString("\n")
		b.WriteString(noDealSummary(o.Reason))
		if o.AllDeclined {
			b.WriteString("\n")
			b.WriteString(DimStyle.Render("You turned down every offer."))
		}
	default:
		b.WriteString(DimStyle.Render("Session closed."))
	}

	b.WriteString("\n\n")
	b.WriteString(m.Help.ShortHelpView([]key.Binding{m.Keys.NewPitch, m.Keys.Quit}))
	return BoxStyle.Render(b.String())
}

func renderTranscript(s models.Session, width int) string {
	if len(s.Messages) == 0 {
		return DimStyle.Render("The sharks are waiting. Start your pitch.")
	}
	wrap := lipgloss.NewStyle().Width(max(20, width))
	lines := make([]string, 0, len(s.Messages))
	for _, msg := range s.Messages {
		var speaker string
		switch msg.Speaker {
		case models.SpeakerSystem:
			lines = append(lines, wrap.Render(DimStyle.Render(msg.Text)))
			continue
		case models.SpeakerUser, "user":
			speaker = SelectedStyle.Render("You")
		default:
			speaker = SpeakerStyle.Render(displayNameFor(s, msg.Speaker, msg.Name))
		}
		lines = append(lines, wrap.Render(speaker+": "+msg.Text))
	}
	return strings.Join(lines, "\n")
}

func displayNameFor(s models.Session, id, fallback string) string {
	for _, p := range s.Participants {
		if p.Matches(id) {
			return p.DisplayName
		}
	}
	if fallback != "" {
		return fallback
	}
	return id
}

func phaseLabel(p models.Phase) string {
	switch p {
	case models.PhasePitch:
		return "PITCH"
	case models.PhaseQA:
		return "Q&A"
	case models.PhaseOffers:
		return "NEGOTIATION"
	case models.PhaseClosed:
		return "CLOSED"
	default:
		return "WAITING"
	}
}

func noDealSummary(r models.NoDealReason) string {
	switch r {
	case models.NoDealAllOut:
		return "Every shark is out."
	case models.NoDealTimeExpired:
		return "Time ran out before a deal was struck."
	default:
		return "The session ended without a deal."
	}
}

// FormatClock renders seconds as m:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatOffer renders an offer's terms on one line.
func FormatOffer(o models.Offer) string {
	name := o.SharkName
	if name == "" {
		name = o.SharkID
	}
	line := fmt.Sprintf("%s: $%s for %g%%", name, groupThousands(o.Amount), o.EquityPercent)
	if o.RoyaltyPerUnit != nil {
		line += fmt.Sprintf(" + $%.2f/unit royalty", *o.RoyaltyPerUnit)
	}
	if len(o.Conditions) > 0 {
		line += " (" + strings.Join(o.Conditions, "; ") + ")"
	}
	return line
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + groupThousands(-n)
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
