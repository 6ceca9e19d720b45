package models

import "strings"

// ParticipantStatus is a panel member's interest in the pitch.
type ParticipantStatus string

const (
	ParticipantLive       ParticipantStatus = "live"
	ParticipantInterested ParticipantStatus = "interested"
	ParticipantOut        ParticipantStatus = "out"
)

// Next returns the status reached by the manual debug cycle.
func (s ParticipantStatus) Next() ParticipantStatus {
	switch s {
	case ParticipantLive:
		return ParticipantInterested
	default:
		return ParticipantOut
	}
}

// Participant is one investor persona on the panel.
type Participant struct {
	ID          string            `json:"id" yaml:"id"`
	DisplayName string            `json:"display_name" yaml:"name"`
	Status      ParticipantStatus `json:"status" yaml:"-"`
}

// Matches reports whether a wire speaker id refers to this participant.
// The streaming backend uses short ids ("elena") for "elena_brooks".
func (p Participant) Matches(id string) bool {
	if id == "" {
		return false
	}
	return p.ID == id || strings.HasPrefix(p.ID, id+"_")
}

// DefaultRoster is the five-member panel.
func DefaultRoster() []Participant {
	return []Participant{
		{ID: "marcus_kellan", DisplayName: "Marcus Kellan", Status: ParticipantLive},
		{ID: "victor_slate", DisplayName: "Victor Slate", Status: ParticipantLive},
		{ID: "elena_brooks", DisplayName: "Elena Brooks", Status: ParticipantLive},
		{ID: "richard_hale", DisplayName: "Richard Hale", Status: ParticipantLive},
		{ID: "daniel_frost", DisplayName: "Daniel Frost", Status: ParticipantLive},
	}
}
