package models

import "time"

// Clip is one synthesized speech payload tied to a message.
type Clip struct {
	ID        string        `json:"id"`
	SpeakerID string        `json:"speaker_id"`
	Payload   []byte        `json:"-"`
	Format    string        `json:"format"`
	Duration  time.Duration `json:"duration"`
}
