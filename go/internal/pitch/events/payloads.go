package events

// Wire payloads as the backend sends them. Keys follow the backend's camelCase.

// ThinkingPayload is the payload for a thinking event
type ThinkingPayload struct {
	SharkID   string `json:"sharkId"`
	SharkName string `json:"sharkName"`
}

// SpeakingPayload is the payload for a speaking event
type SpeakingPayload struct {
	SharkID   string `json:"sharkId"`
	SharkName string `json:"sharkName"`
	Speaking  bool   `json:"speaking"`
}

// AudioPayload carries base64 encoded synthesized speech
type AudioPayload struct {
	AudioData string `json:"audioData"`
	Format    string `json:"format"`
}

// OfferPayload is an offer as embedded in message, offer and deal events
type OfferPayload struct {
	ID           string   `json:"id,omitempty"`
	SharkID      string   `json:"sharkId"`
	SharkName    string   `json:"sharkName,omitempty"`
	Amount       float64  `json:"amount"`
	Equity       float64  `json:"equity"`
	Royalty      *float64 `json:"royalty,omitempty"`
	RoyaltyUntil *float64 `json:"royaltyUntil,omitempty"`
	Conditions   []string `json:"conditions,omitempty"`
}

// MessagePayload is the payload for a message event
type MessagePayload struct {
	SharkID    string        `json:"sharkId"`
	SharkName  string        `json:"sharkName"`
	Text       string        `json:"text"`
	Offer      *OfferPayload `json:"offer,omitempty"`
	Audio      *AudioPayload `json:"audio,omitempty"`
	DurationMs int64         `json:"duration,omitempty"`
}

// OutPayload is the payload for an out event
type OutPayload struct {
	SharkID   string `json:"sharkId"`
	SharkName string `json:"sharkName"`
	Message   string `json:"message,omitempty"`
}

// OfferEventPayload is the payload for an offer event. The streaming backend
// nests the offer under "offer"; other producers send the offer fields flat.
type OfferEventPayload struct {
	OfferPayload
	Offer *OfferPayload `json:"offer,omitempty"`
}

// DealClosedPayload is the payload for a deal_closed event
type DealClosedPayload struct {
	SharkID   string        `json:"sharkId"`
	SharkName string        `json:"sharkName"`
	Offer     *OfferPayload `json:"offer,omitempty"`
}

// PhaseChangePayload is the payload for a phase_change event
type PhaseChangePayload struct {
	Phase string `json:"phase"`
}
