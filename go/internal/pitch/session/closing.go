package session

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/pitchtank/go/internal/leaderboard"
	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/mcdev12/pitchtank/go/internal/pitch/audio"
	"github.com/rs/zerolog/log"
)

const recordTimeout = 10 * time.Second

func (c *Controller) closeDeal(deal models.Offer) {
	if !c.machine.Active() {
		return
	}
	deal.Status = models.OfferStatusAccepted
	if deal.SharkName == "" {
		deal.SharkName = c.displayName(deal.SharkID, "")
	}

	if _, err := c.machine.Close(models.Outcome{Result: models.OutcomeDeal, Deal: &deal}, c.clock.Now()); err != nil {
		log.Error().Err(err).Msg("failed to close session")
		return
	}
	c.finish(fmt.Sprintf("Deal! %s invests %s for %g%% equity.",
		deal.SharkName, formatAmount(deal.Amount), deal.EquityPercent), c.cfg.DealCue)
}

func (c *Controller) closeNoDeal(reason models.NoDealReason) {
	if !c.machine.Active() {
		return
	}
	outcome := models.Outcome{
		Result:      models.OutcomeNoDeal,
		Reason:      reason,
		AllDeclined: c.ledger.AllDeclined(),
	}
	if _, err := c.machine.Close(outcome, c.clock.Now()); err != nil {
		log.Error().Err(err).Msg("failed to close session")
		return
	}

	var summary string
	switch reason {
	case models.NoDealAllOut:
		summary = "Every shark is out. No deal this time."
	case models.NoDealTimeExpired:
		summary = "Time is up. No deal this time."
	default:
		summary = "The panel has closed the session. No deal."
	}
	c.finish(summary, c.cfg.NoDealCue)
}

// finish runs once the outcome is fixed. The timer and the feed stop; the
// audio queue and outbound actions keep running so the last clips play and a
// pending response is still delivered.
func (c *Controller) finish(summary, cue string) {
	c.timer.Stop()
	if c.stopFeed != nil {
		c.stopFeed()
		c.stopFeed = nil
	}
	c.clearAllThinking()
	c.systemMessage(summary)

	if c.queue != nil {
		clip, ok, err := audio.LoadCue(cue, "")
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("failed to load outcome cue")
		case ok:
			c.queue.Enqueue(clip)
		}
	}

	outcome := c.machine.Outcome()
	log.Info().
		Str("session_id", c.sessionID).
		Str("result", string(outcome.Result)).
		Str("reason", string(outcome.Reason)).
		Msg("session closed")

	c.record(*outcome)
}

// record stores the result on the leaderboard without blocking the loop.
func (c *Controller) record(outcome models.Outcome) {
	store := c.deps.Store
	if store == nil {
		return
	}
	pitchLeft, _ := c.timer.Remaining()
	entry := leaderboard.NewEntry(c.pitch, outcome, c.cfg.Timer.PitchSeconds-pitchLeft, c.deps.Identity)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := store.Record(ctx, entry); err != nil {
			log.Error().Err(err).Str("company", entry.CompanyName).Msg("failed to record leaderboard entry")
		}
	}()
}

func (c *Controller) snapshot() models.Session {
	inPitch := c.machine.Current() == models.PhasePitch
	pitchLeft, totalLeft := c.timer.Remaining()

	s := models.Session{
		SessionID:             c.sessionID,
		Pitch:                 c.pitch,
		Phase:                 c.machine.Current(),
		Outcome:               c.machine.Outcome(),
		PitchSecondsRemaining: pitchLeft,
		TotalSecondsRemaining: totalLeft,
		Pressure:              c.timer.Pressure(inPitch),
		Participants:          slices.Clone(c.participants),
		Messages:              slices.Clone(c.messages),
		Offers:                c.ledger.All(),
		Connected:             c.connected,
		Offline:               c.deps.Backend == nil,
		TextOnly:              c.textOnly,
	}
	if c.verification != nil {
		v := *c.verification
		s.Verification = &v
	}
	if !c.startedAt.IsZero() {
		started := c.startedAt
		s.StartedAt = &started
	}

	for speaker, p := range c.thinking {
		s.Thinking = append(s.Thinking, models.Thinking{Speaker: speaker, Since: p.since})
	}
	slices.SortFunc(s.Thinking, func(a, b models.Thinking) int {
		if d := a.Since.Compare(b.Since); d != 0 {
			return d
		}
		return strings.Compare(a.Speaker, b.Speaker)
	})

	for speaker := range c.speaking {
		s.Speaking = append(s.Speaking, speaker)
	}
	slices.Sort(s.Speaking)
	return s
}

// formatAmount renders whole dollars with thousands separators.
func formatAmount(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}
