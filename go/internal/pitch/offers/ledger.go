// Package offers tracks negotiation proposals and their one-time resolution.
package offers

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pitchtank/go/internal/models"
)

var (
	ErrUnknownOffer       = errors.New("unknown offer")
	ErrAlreadyResolved    = errors.New("offer already resolved")
	ErrPhaseForbidsAction = errors.New("phase does not allow offer actions")
	ErrInvalidAction      = errors.New("invalid offer action")
)

// Ledger holds every offer of one session in arrival order. It is not safe for
// concurrent use; the session controller owns it.
type Ledger struct {
	clock clockwork.Clock

	offers    map[string]*models.Offer
	order     []string
	byContent map[string]string
	generated map[string]bool
}

func NewLedger(clock clockwork.Clock) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Ledger{
		clock:     clock,
		offers:    make(map[string]*models.Offer),
		byContent: make(map[string]string),
		generated: make(map[string]bool),
	}
}

// Create records a new pending offer. It returns created=false when the offer
// is already known, either by id or, for offers without one, by shark and terms
// of an offer still pending. A server id arriving for a pending offer first
// seen without one is adopted. Resolved offers never absorb a re-offer.
func (l *Ledger) Create(o models.Offer) (models.Offer, bool) {
	key := o.ContentKey()

	if o.ID != "" {
		if existing, ok := l.offers[o.ID]; ok {
			return clone(existing), false
		}
		if prevID, ok := l.pendingByContent(key); ok && l.generated[prevID] {
			return l.adopt(prevID, o.ID), false
		}
	} else {
		if prevID, ok := l.pendingByContent(key); ok {
			return clone(l.offers[prevID]), false
		}
		o.ID = uuid.NewString()
		l.generated[o.ID] = true
	}

	l.SupersedeFor(o.SharkID)

	o.Status = models.OfferStatusPending
	o.Counter = nil
	o.Superseded = false
	if o.ReceivedAt.IsZero() {
		o.ReceivedAt = l.clock.Now()
	}
	o.Conditions = slices.Clone(o.Conditions)

	stored := o
	l.offers[o.ID] = &stored
	l.order = append(l.order, o.ID)
	if _, taken := l.pendingByContent(key); !taken {
		l.byContent[key] = o.ID
	}
	return clone(&stored), true
}

// pendingByContent returns the pending offer recorded under key.
func (l *Ledger) pendingByContent(key string) (string, bool) {
	id, ok := l.byContent[key]
	if !ok {
		return "", false
	}
	if o, known := l.offers[id]; !known || o.Status != models.OfferStatusPending {
		delete(l.byContent, key)
		return "", false
	}
	return id, true
}

func (l *Ledger) adopt(oldID, newID string) models.Offer {
	o := l.offers[oldID]
	delete(l.offers, oldID)
	delete(l.generated, oldID)
	o.ID = newID
	l.offers[newID] = o
	for i, id := range l.order {
		if id == oldID {
			l.order[i] = newID
		}
	}
	l.byContent[o.ContentKey()] = newID
	return clone(o)
}

// Resolve applies the user's action. The phase must be qa or offers, and an
// offer resolves exactly once.
func (l *Ledger) Resolve(id string, action models.OfferAction, terms *models.CounterTerms, phase models.Phase) (models.Offer, error) {
	o, ok := l.offers[id]
	if !ok {
		return models.Offer{}, fmt.Errorf("%w: %s", ErrUnknownOffer, id)
	}
	if o.Status.Terminal() {
		return clone(o), fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, id, o.Status)
	}
	if phase != models.PhaseQA && phase != models.PhaseOffers {
		return clone(o), fmt.Errorf("%w: %s", ErrPhaseForbidsAction, phase)
	}

	switch action {
	case models.OfferActionAccept:
		o.Status = models.OfferStatusAccepted
	case models.OfferActionDecline:
		o.Status = models.OfferStatusDeclined
	case models.OfferActionCounter:
		o.Status = models.OfferStatusCountered
		if terms != nil {
			t := *terms
			o.Counter = &t
		}
	default:
		return clone(o), fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if key := o.ContentKey(); l.byContent[key] == id {
		delete(l.byContent, key)
	}
	return clone(o), nil
}

// SupersedeFor marks the participant's countered offers as no longer awaiting a
// response. It returns how many were superseded.
func (l *Ledger) SupersedeFor(sharkID string) int {
	n := 0
	for _, id := range l.order {
		o := l.offers[id]
		if o.SharkID == sharkID && o.AwaitingResponse() {
			o.Superseded = true
			n++
		}
	}
	return n
}

func (l *Ledger) Get(id string) (models.Offer, bool) {
	o, ok := l.offers[id]
	if !ok {
		return models.Offer{}, false
	}
	return clone(o), true
}

// Pending returns offers still waiting on the user, oldest first.
func (l *Ledger) Pending() []models.Offer {
	var out []models.Offer
	for _, id := range l.order {
		if o := l.offers[id]; o.Status == models.OfferStatusPending {
			out = append(out, clone(o))
		}
	}
	return out
}

// All returns every offer in arrival order.
func (l *Ledger) All() []models.Offer {
	out := make([]models.Offer, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, clone(l.offers[id]))
	}
	return out
}

func (l *Ledger) Len() int {
	return len(l.order)
}

// Accepted returns the accepted offer, if any.
func (l *Ledger) Accepted() (models.Offer, bool) {
	for _, id := range l.order {
		if o := l.offers[id]; o.Status == models.OfferStatusAccepted {
			return clone(o), true
		}
	}
	return models.Offer{}, false
}

// AllDeclined reports whether at least one offer arrived and every one of them
// was turned down or left without an answer from the shark.
func (l *Ledger) AllDeclined() bool {
	if len(l.order) == 0 {
		return false
	}
	for _, id := range l.order {
		o := l.offers[id]
		if o.Status == models.OfferStatusPending || o.Status == models.OfferStatusAccepted || o.AwaitingResponse() {
			return false
		}
	}
	return true
}

func clone(o *models.Offer) models.Offer {
	c := *o
	c.Conditions = slices.Clone(o.Conditions)
	if o.Counter != nil {
		t := *o.Counter
		c.Counter = &t
	}
	return c
}
