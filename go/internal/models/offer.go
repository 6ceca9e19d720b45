package models

import (
	"fmt"
	"time"
)

// OfferStatus is the lifecycle state of an offer.
type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusDeclined  OfferStatus = "declined"
	OfferStatusCountered OfferStatus = "countered"
)

// Terminal reports whether the status is a resolution.
func (s OfferStatus) Terminal() bool {
	return s != OfferStatusPending
}

// OfferAction is the user's response to an offer.
type OfferAction string

const (
	OfferActionAccept  OfferAction = "accept"
	OfferActionDecline OfferAction = "decline"
	OfferActionCounter OfferAction = "counter"
)

// Valid reports whether a is a known action.
func (a OfferAction) Valid() bool {
	switch a {
	case OfferActionAccept, OfferActionDecline, OfferActionCounter:
		return true
	}
	return false
}

// CounterTerms are the user's proposed terms for a counter.
type CounterTerms struct {
	Amount        int64    `json:"amount"`
	EquityPercent float64  `json:"equity"`
	Royalty       *float64 `json:"royalty,omitempty"`
}

// Offer is a negotiation proposal from one participant.
type Offer struct {
	ID             string        `json:"id"`
	SharkID        string        `json:"sharkId"`
	SharkName      string        `json:"sharkName,omitempty"`
	Amount         int64         `json:"amount"`
	EquityPercent  float64       `json:"equity"`
	RoyaltyPerUnit *float64      `json:"royalty,omitempty"`
	RoyaltyCap     *int64        `json:"royaltyUntil,omitempty"`
	Conditions     []string      `json:"conditions,omitempty"`
	Status         OfferStatus   `json:"status"`
	Counter        *CounterTerms `json:"counter,omitempty"`
	Superseded     bool          `json:"superseded,omitempty"`
	ReceivedAt     time.Time     `json:"received_at"`
}

// ContentKey identifies an offer by its shark and terms, for offers the
// server sent without an id.
func (o Offer) ContentKey() string {
	return fmt.Sprintf("%s:%d:%g", o.SharkID, o.Amount, o.EquityPercent)
}

// AwaitingResponse reports whether a countered offer still waits on the shark.
func (o Offer) AwaitingResponse() bool {
	return o.Status == OfferStatusCountered && !o.Superseded
}
