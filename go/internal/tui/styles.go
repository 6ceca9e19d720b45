package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mcdev12/pitchtank/go/internal/models"
)

const (
	primaryColor   = "#0EA5E9" // Ocean blue
	secondaryColor = "#10B981" // Green
	warningColor   = "#F59E0B" // Amber
	errorColor     = "#EF4444" // Red
	dimColor       = "#6B7280" // Gray
)

var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor))

	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1F2937")).
			Foreground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)

	SpeakerStyle = lipgloss.NewStyle().Bold(true)
)

// Participant status glyphs.
var (
	StatusLive       = SuccessStyle.Render("●")
	StatusInterested = WarningStyle.Render("★")
	StatusOut        = DimStyle.Render("✗")
)

func pressureStyle(p models.Pressure) lipgloss.Style {
	switch p {
	case models.PressureCritical:
		return ErrorStyle.Bold(true)
	case models.PressureWarning:
		return WarningStyle
	default:
		return SuccessStyle
	}
}

func statusGlyph(s models.ParticipantStatus) string {
	switch s {
	case models.ParticipantInterested:
		return StatusInterested
	case models.ParticipantOut:
		return StatusOut
	default:
		return StatusLive
	}
}
