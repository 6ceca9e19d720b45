package models

import "time"

// Phase defines the coarse stage of a pitch session.
type Phase string

const (
	PhaseIdle   Phase = "idle"
	PhasePitch  Phase = "pitch"
	PhaseQA     Phase = "qa"
	PhaseOffers Phase = "offers"
	PhaseClosed Phase = "closed"
)

// Rank orders phases so forward-only transitions can be checked.
func (p Phase) Rank() int {
	switch p {
	case PhasePitch:
		return 1
	case PhaseQA:
		return 2
	case PhaseOffers:
		return 3
	case PhaseClosed:
		return 4
	default:
		return 0
	}
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIdle, PhasePitch, PhaseQA, PhaseOffers, PhaseClosed:
		return true
	}
	return false
}

// OutcomeResult defines how a closed session ended.
type OutcomeResult string

const (
	OutcomeNone   OutcomeResult = ""
	OutcomeDeal   OutcomeResult = "deal"
	OutcomeNoDeal OutcomeResult = "no_deal"
)

// NoDealReason explains a no-deal outcome.
type NoDealReason string

const (
	NoDealAllOut      NoDealReason = "all_out"
	NoDealTimeExpired NoDealReason = "time_expired"
	NoDealServer      NoDealReason = "server_closed"
)

// Outcome is set once when the session enters the closed phase.
type Outcome struct {
	Result      OutcomeResult `json:"result"`
	Reason      NoDealReason  `json:"reason,omitempty"`
	Deal        *Offer        `json:"deal,omitempty"`
	AllDeclined bool          `json:"all_declined,omitempty"`
	ClosedAt    time.Time     `json:"closed_at"`
}

// Pressure is the urgency level derived from remaining time.
type Pressure string

const (
	PressureNeutral  Pressure = "neutral"
	PressureWarning  Pressure = "warning"
	PressureCritical Pressure = "critical"
)

// PitchData is what the entrepreneur fills in on the entry form.
type PitchData struct {
	CompanyName        string `json:"companyName" yaml:"company_name"`
	CompanyDescription string `json:"companyDescription,omitempty" yaml:"company_description"`
	AmountRaising      int64  `json:"amountRaising" yaml:"amount_raising"`
	EquityPercent      int    `json:"equityPercent" yaml:"equity_percent"`
	ProofType          string `json:"proofType,omitempty" yaml:"proof_type"`
	ProofValue         string `json:"proofValue,omitempty" yaml:"proof_value"`
}

// Session is one simulated pitch meeting as seen by the client.
type Session struct {
	SessionID             string        `json:"session_id,omitempty"`
	Pitch                 PitchData     `json:"pitch"`
	Phase                 Phase         `json:"phase"`
	Outcome               *Outcome      `json:"outcome,omitempty"`
	PitchSecondsRemaining int           `json:"pitch_seconds_remaining"`
	TotalSecondsRemaining int           `json:"total_seconds_remaining"`
	Pressure              Pressure      `json:"pressure"`
	Participants          []Participant `json:"participants"`
	Messages              []Message     `json:"messages"`
	Thinking              []Thinking    `json:"thinking"`
	Speaking              []string      `json:"speaking"`
	Offers                []Offer       `json:"offers"`
	Connected             bool          `json:"connected"`
	Offline               bool          `json:"offline"`
	TextOnly              bool          `json:"text_only"`
	Verification          *Verification `json:"verification,omitempty"`
	StartedAt             *time.Time    `json:"started_at,omitempty"`
}

// HasPendingOffer reports whether any offer is still actionable.
func (s *Session) HasPendingOffer() bool {
	for _, o := range s.Offers {
		if o.Status == OfferStatusPending {
			return true
		}
	}
	return false
}
