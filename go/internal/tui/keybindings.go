package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the TUI.
type KeyMap struct {
	// Entry form
	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding

	// Live panel
	Send        key.Binding
	EndPitch    key.Binding
	Record      key.Binding
	NextOffer   key.Binding
	Accept      key.Binding
	Decline     key.Binding
	Counter     key.Binding
	Cancel      key.Binding
	CycleStatus key.Binding
	ScrollUp    key.Binding
	ScrollDown  key.Binding

	// Outcome
	NewPitch key.Binding
	Quit     key.Binding

	CtrlC key.Binding
}

var DefaultKeyMap = KeyMap{
	NextField: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab", "next field"),
	),
	PrevField: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("shift+tab", "previous field"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "enter the tank"),
	),
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	EndPitch: key.NewBinding(
		key.WithKeys("ctrl+e"),
		key.WithHelp("ctrl+e", "end pitch"),
	),
	Record: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "record/submit voice"),
	),
	NextOffer: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next offer"),
	),
	Accept: key.NewBinding(
		key.WithKeys("ctrl+a"),
		key.WithHelp("ctrl+a", "accept"),
	),
	Decline: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("ctrl+d", "decline"),
	),
	Counter: key.NewBinding(
		key.WithKeys("ctrl+o"),
		key.WithHelp("ctrl+o", "counter"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	CycleStatus: key.NewBinding(
		key.WithKeys("f1", "f2", "f3", "f4", "f5"),
		key.WithHelp("f1-f5", "cycle shark status"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "scroll down"),
	),
	NewPitch: key.NewBinding(
		key.WithKeys("enter", "n"),
		key.WithHelp("enter", "new pitch"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
	CtrlC: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "exit"),
	),
}

func (k KeyMap) liveHelp(phase string, hasOffers bool) []key.Binding {
	switch {
	case phase == "pitch":
		return []key.Binding{k.Send, k.EndPitch, k.Record, k.CycleStatus, k.CtrlC}
	case hasOffers:
		return []key.Binding{k.Send, k.NextOffer, k.Accept, k.Decline, k.Counter, k.CtrlC}
	default:
		return []key.Binding{k.Send, k.Record, k.CycleStatus, k.ScrollUp, k.CtrlC}
	}
}
