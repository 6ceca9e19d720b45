package session

import (
	"fmt"

	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/mcdev12/pitchtank/go/internal/pitch/events"
	"github.com/rs/zerolog/log"
)

// dispatch decodes one raw feed payload and applies it. Malformed events and
// events for another session are dropped.
func (c *Controller) dispatch(raw []byte) {
	d, err := events.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Str("session_id", c.sessionID).Msg("dropping feed event")
		return
	}
	if d.SessionID != "" && c.sessionID != "" && d.SessionID != c.sessionID {
		log.Warn().
			Str("session_id", c.sessionID).
			Str("event_session_id", d.SessionID).
			Msg("dropping event for another session")
		return
	}
	c.apply(d.Event)
}

// apply folds one event into the session state.
func (c *Controller) apply(ev events.Event) {
	if c.machine.Current() == models.PhaseIdle {
		return
	}

	switch e := ev.(type) {
	case events.Connected, events.Heartbeat:
		c.connected = true

	case events.Thinking:
		speaker := c.canonical(e.Speaker)
		if p, ok := c.participant(speaker); ok && p.Status == models.ParticipantOut {
			return
		}
		if c.machine.Closed() {
			return
		}
		c.setThinking(speaker)

	case events.Speaking:
		// Speaking-off is driven locally by audio completion and the clear delay.
		if e.On {
			c.setSpeaking(c.canonical(e.Speaker))
		}

	case events.Message:
		c.onMessage(e)

	case events.Out:
		c.markOut(e.Speaker, e.Reason)

	case events.OfferMade:
		c.createOffer(e.Offer)

	case events.DealClosed:
		c.onDealClosed(e)

	case events.PhaseChange:
		c.onPhaseChange(e.Phase)

	default:
		log.Warn().Str("kind", string(ev.Kind())).Msg("unhandled feed event")
	}
}

func (c *Controller) onMessage(e events.Message) {
	speaker := c.canonical(e.Speaker)
	if c.dedup.Observe(events.DedupKey(speaker, e.Text, c.cfg.DedupPrefix)) {
		log.Debug().Str("speaker", speaker).Msg("dropping duplicate message")
		return
	}

	c.clearThinking(speaker)
	c.addMessage(speaker, c.displayName(speaker, e.Name), e.Text)
	c.lastShark = speaker

	if e.Clip != nil && c.queue != nil {
		clip := *e.Clip
		clip.SpeakerID = speaker
		c.audioActive[speaker]++
		c.queue.Enqueue(clip)
	} else if c.audioActive[speaker] == 0 {
		c.setSpeaking(speaker)
		c.clearSpeakingAfter(speaker, c.cfg.SpeakingClearDelay)
	}

	if e.Offer != nil {
		c.createOffer(*e.Offer)
	}
}

// markOut takes a participant out of the running. Repeats are ignored. When
// the last participant goes out the session closes without a deal.
func (c *Controller) markOut(speaker, reason string) {
	p, ok := c.participant(speaker)
	if !ok {
		log.Warn().Str("speaker", speaker).Msg("out event for unknown participant")
		return
	}
	if p.Status == models.ParticipantOut {
		return
	}

	p.Status = models.ParticipantOut
	id, name := p.ID, p.DisplayName
	c.clearThinking(id)
	if n := c.ledger.SupersedeFor(id); n > 0 {
		log.Debug().Str("speaker", id).Int("superseded", n).Msg("superseded countered offers")
	}

	if reason != "" && !c.dedup.Observe(events.DedupKey(id, reason, c.cfg.DedupPrefix)) {
		c.addMessage(id, name, reason)
	}
	c.systemMessage(fmt.Sprintf("%s is out.", name))

	log.Info().Str("session_id", c.sessionID).Str("speaker", id).Msg("participant out")

	if c.allOut() && c.machine.Active() {
		c.closeNoDeal(models.NoDealAllOut)
	}
}

func (c *Controller) allOut() bool {
	for _, p := range c.participants {
		if p.Status != models.ParticipantOut {
			return false
		}
	}
	return len(c.participants) > 0
}

// createOffer records an offer from the panel. Offers are only accepted while
// offers can be resolved and never from a participant who is out.
func (c *Controller) createOffer(o models.Offer) {
	if !c.machine.CanResolveOffers() {
		log.Warn().
			Str("phase", string(c.machine.Current())).
			Str("offer_id", o.ID).
			Msg("dropping offer outside negotiation")
		return
	}

	o.SharkID = c.canonical(o.SharkID)
	p, known := c.participant(o.SharkID)
	if known {
		if p.Status == models.ParticipantOut {
			log.Warn().Str("speaker", p.ID).Msg("dropping offer from participant who is out")
			return
		}
		if o.SharkName == "" {
			o.SharkName = p.DisplayName
		}
	}

	stored, created := c.ledger.Create(o)
	if !created {
		return
	}
	if known && p.Status == models.ParticipantLive {
		p.Status = models.ParticipantInterested
	}
	if c.machine.Current() == models.PhaseQA {
		if _, _, err := c.machine.Transition(models.PhaseOffers); err != nil {
			log.Error().Err(err).Msg("failed to enter offers phase")
		}
	}

	log.Info().
		Str("session_id", c.sessionID).
		Str("offer_id", stored.ID).
		Str("speaker", stored.SharkID).
		Int64("amount", stored.Amount).
		Float64("equity", stored.EquityPercent).
		Msg("offer received")
}

func (c *Controller) onDealClosed(e events.DealClosed) {
	if !c.machine.Active() {
		return
	}
	if deal, ok := c.ledger.Accepted(); ok {
		c.closeDeal(deal)
		return
	}

	if e.Offer != nil && e.Offer.ID != "" {
		if o, ok := c.ledger.Get(e.Offer.ID); ok {
			c.closeDeal(c.settleNamedOffer(o, *e.Offer))
			return
		}
	}

	sharkID := c.canonical(e.SharkID)
	if e.Offer == nil || e.Offer.ID == "" {
		for _, o := range c.ledger.Pending() {
			if o.SharkID == sharkID {
				if accepted, err := c.ledger.Resolve(o.ID, models.OfferActionAccept, nil, c.machine.Current()); err == nil {
					c.closeDeal(accepted)
					return
				}
			}
		}
	}

	var deal models.Offer
	if e.Offer != nil {
		deal = *e.Offer
	}
	deal.SharkID = c.canonical(firstNonEmpty(deal.SharkID, sharkID))
	deal.SharkName = firstNonEmpty(deal.SharkName, c.displayName(deal.SharkID, e.Name))
	c.closeDeal(deal)
}

// settleNamedOffer returns the terms a deal_closed event agreed on for an offer
// already in the ledger. A pending offer is accepted; a countered one is
// already resolved and closes on the counter terms. Terms carried by the event
// win over both.
func (c *Controller) settleNamedOffer(o, agreed models.Offer) models.Offer {
	deal := o
	if o.Status == models.OfferStatusPending {
		if accepted, err := c.ledger.Resolve(o.ID, models.OfferActionAccept, nil, c.machine.Current()); err == nil {
			deal = accepted
		}
	}
	if t := deal.Counter; t != nil {
		if t.Amount > 0 {
			deal.Amount = t.Amount
		}
		if t.EquityPercent > 0 {
			deal.EquityPercent = t.EquityPercent
		}
	}
	if agreed.Amount > 0 {
		deal.Amount = agreed.Amount
	}
	if agreed.EquityPercent > 0 {
		deal.EquityPercent = agreed.EquityPercent
	}
	return deal
}

func (c *Controller) onPhaseChange(to models.Phase) {
	if !c.machine.Active() {
		return
	}

	switch to {
	case models.PhaseClosed:
		if deal, ok := c.ledger.Accepted(); ok {
			c.closeDeal(deal)
		} else {
			c.closeNoDeal(models.NoDealServer)
		}
	case models.PhaseQA, models.PhaseOffers:
		if c.machine.Current() == models.PhasePitch {
			// The server already knows the pitch is over.
			c.exitPitch("server")
		}
		if _, _, err := c.machine.Transition(to); err != nil {
			log.Warn().Err(err).Str("to", string(to)).Msg("ignoring phase change")
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
