package models

import "time"

const (
	SpeakerUser   = "You"
	SpeakerSystem = "System"
)

// Message is one utterance in the transcript. Messages are append-only.
type Message struct {
	ID        string    `json:"id"`
	Speaker   string    `json:"speaker"`
	Name      string    `json:"name,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Thinking is the ephemeral placeholder shown while a speaker composes a reply.
// At most one exists per speaker.
type Thinking struct {
	Speaker string    `json:"speaker"`
	Since   time.Time `json:"since"`
}
