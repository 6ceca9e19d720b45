package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mcdev12/pitchtank/go/clients/pitchtank_client"
	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/mcdev12/pitchtank/go/internal/pitch/capture"
	"github.com/mcdev12/pitchtank/go/internal/pitch/events"
	"github.com/rs/zerolog/log"
)

var (
	ErrWrongPhase         = errors.New("action not allowed in current phase")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrNoBackend          = errors.New("no backend configured")
)

const (
	chatActionMessage       = "message"
	chatActionPitchComplete = "pitch_complete"
	transcriptSpeakerUser   = "user"
	chatContextMessages     = 12
)

// EndPitch closes the pitch phase early and hands the transcript to the panel.
func (c *Controller) EndPitch() error {
	var result error
	if err := c.call(func() {
		if c.machine.Current() != models.PhasePitch {
			result = fmt.Errorf("%w: end pitch in %s", ErrWrongPhase, c.machine.Current())
			return
		}
		c.endPitch("user")
	}); err != nil {
		return err
	}
	return result
}

// endPitch leaves the pitch phase and tells the backend the pitch is done.
func (c *Controller) endPitch(reason string) {
	used := c.exitPitch(reason)
	c.notifyPitchComplete(used)
}

// exitPitch freezes the pitch clock and moves to questions. It returns how
// long the pitch ran.
func (c *Controller) exitPitch(reason string) time.Duration {
	c.timer.FreezePitch()
	if _, _, err := c.machine.Transition(models.PhaseQA); err != nil {
		log.Error().Err(err).Msg("failed to leave pitch phase")
	}
	pitchLeft, _ := c.timer.Remaining()
	used := time.Duration(c.cfg.Timer.PitchSeconds-pitchLeft) * time.Second

	log.Info().
		Str("session_id", c.sessionID).
		Str("reason", reason).
		Dur("pitch_duration", used).
		Int("transcript_lines", len(c.transcript)).
		Msg("pitch ended")
	return used
}

func (c *Controller) notifyPitchComplete(used time.Duration) {
	backend := c.deps.Backend
	if backend == nil {
		return
	}
	if c.streaming() {
		sessionID := c.sessionID
		transcript := slices.Clone(c.transcript)
		c.submit("complete_pitch", func(ctx context.Context) error {
			return backend.CompletePitch(ctx, sessionID, transcript, used)
		}, c.reportFailure("complete_pitch"))
		return
	}
	c.requestChat(pitchtank_client.ChatRequest{
		Action:    chatActionPitchComplete,
		PitchData: c.pitch,
		Context:   c.chatContext(),
	})
}

// SendMessage adds the user's line to the transcript and forwards it to the
// panel once questions have started. It is a no-op after the session closes.
func (c *Controller) SendMessage(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	var result error
	if err := c.call(func() { result = c.sendMessage(text) }); err != nil {
		return err
	}
	return result
}

func (c *Controller) sendMessage(text string) error {
	switch c.machine.Current() {
	case models.PhaseIdle:
		return ErrNoSession
	case models.PhaseClosed:
		return nil
	}

	m := c.addMessage(models.SpeakerUser, models.SpeakerUser, text)

	if c.machine.Current() == models.PhasePitch {
		c.transcript = append(c.transcript, pitchtank_client.TranscriptLine{
			Speaker:   transcriptSpeakerUser,
			Text:      text,
			Timestamp: m.Timestamp.UnixMilli(),
		})
		return nil
	}

	backend := c.deps.Backend
	if backend == nil {
		return nil
	}
	if c.streaming() {
		sessionID := c.sessionID
		c.submit("user_message", func(ctx context.Context) error {
			return backend.SendUserMessage(ctx, sessionID, text)
		}, c.reportFailure("user_message"))
		return nil
	}
	c.requestChat(pitchtank_client.ChatRequest{
		Action:    chatActionMessage,
		PitchData: c.pitch,
		Message:   text,
		Context:   c.chatContext(),
		LastShark: c.lastShark,
	})
	return nil
}

// requestChat asks for one reply in request/response mode and feeds the
// reply back through the reconciler as if it had arrived on the feed.
func (c *Controller) requestChat(req pitchtank_client.ChatRequest) {
	backend := c.deps.Backend
	gen := c.gen
	var resp *pitchtank_client.ChatResponse

	c.submit("chat", func(ctx context.Context) error {
		r, err := backend.Chat(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, func(err error) {
		if err != nil {
			log.Error().Err(err).Str("action", req.Action).Msg("chat request failed")
			c.postForSession(gen, func() { c.systemMessage("The panel did not respond. Try again.") })
			return
		}
		if resp == nil || resp.Text == "" {
			return
		}
		ev := events.Message{Speaker: resp.SharkID, Name: resp.SharkName, Text: resp.Text}
		if resp.Offer != nil {
			o := resp.Offer.ToOffer(resp.SharkID, resp.SharkName)
			ev.Offer = &o
		}
		c.postForSession(gen, func() { c.apply(ev) })
	})
}

func (c *Controller) chatContext() string {
	start := max(0, len(c.messages)-chatContextMessages)
	var b strings.Builder
	for _, m := range c.messages[start:] {
		if m.Speaker == models.SpeakerSystem {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", firstNonEmpty(m.Name, m.Speaker), m.Text)
	}
	return b.String()
}

// StartRecording begins voice capture. When capture is unavailable the
// session switches to text-only input and the error is returned.
func (c *Controller) StartRecording() error {
	var result error
	if err := c.call(func() {
		if !c.machine.Active() {
			result = ErrNoSession
			return
		}
		if err := c.deps.Recorder.Start(); err != nil {
			if errors.Is(err, capture.ErrUnavailable) {
				c.textOnly = true
			}
			log.Warn().Err(err).Msg("failed to start recording")
			result = err
		}
	}); err != nil {
		return err
	}
	return result
}

// SubmitRecording stops capture, transcribes the take and sends the text as a
// user message. It blocks on the transcription request.
func (c *Controller) SubmitRecording(ctx context.Context) (string, error) {
	rec, err := c.deps.Recorder.Stop()
	if err != nil {
		return "", err
	}
	backend := c.deps.Backend
	if backend == nil {
		return "", ErrNoBackend
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	text, err := backend.Transcribe(ctx, rec.Filename, rec.Data)
	if err != nil {
		log.Error().Err(err).Dur("duration", rec.Duration).Msg("failed to transcribe recording")
		return "", err
	}
	return text, c.SendMessage(text)
}

// CancelRecording stops capture and discards the take.
func (c *Controller) CancelRecording() {
	if _, err := c.deps.Recorder.Stop(); err != nil && !errors.Is(err, capture.ErrNotRecording) {
		log.Warn().Err(err).Msg("failed to stop recording")
	}
}

// RespondToOffer resolves an offer locally and forwards the response. An
// accept closes the session with a deal.
func (c *Controller) RespondToOffer(offerID string, action models.OfferAction, terms *models.CounterTerms) error {
	var result error
	if err := c.call(func() { result = c.respondToOffer(offerID, action, terms) }); err != nil {
		return err
	}
	return result
}

func (c *Controller) respondToOffer(offerID string, action models.OfferAction, terms *models.CounterTerms) error {
	o, err := c.ledger.Resolve(offerID, action, terms, c.machine.Current())
	if err != nil {
		return err
	}

	name := firstNonEmpty(o.SharkName, c.displayName(o.SharkID, ""))
	log.Info().
		Str("session_id", c.sessionID).
		Str("offer_id", o.ID).
		Str("action", string(action)).
		Msg("offer resolved")

	c.forwardOfferResponse(o.ID, action, terms)

	switch action {
	case models.OfferActionAccept:
		c.closeDeal(o)
	case models.OfferActionDecline:
		c.systemMessage(fmt.Sprintf("You declined %s's offer.", name))
	case models.OfferActionCounter:
		if terms != nil {
			c.systemMessage(fmt.Sprintf("You countered %s: %s for %g%% equity.", name, formatAmount(terms.Amount), terms.EquityPercent))
		} else {
			c.systemMessage(fmt.Sprintf("You countered %s.", name))
		}
	}
	return nil
}

func (c *Controller) forwardOfferResponse(offerID string, action models.OfferAction, terms *models.CounterTerms) {
	backend := c.deps.Backend
	if backend == nil || c.sessionID == "" {
		return
	}
	sessionID := c.sessionID
	gen := c.gen
	var res *pitchtank_client.OfferResponseResult

	c.submit("offer_response", func(ctx context.Context) error {
		r, err := backend.RespondToOffer(ctx, sessionID, offerID, action, terms)
		if err != nil {
			return err
		}
		res = r
		return nil
	}, func(err error) {
		if err != nil {
			log.Error().Err(err).Str("offer_id", offerID).Msg("failed to forward offer response")
			return
		}
		// A counter may come straight back with revised terms.
		if res != nil && res.Offer != nil {
			o := res.Offer.ToOffer(res.Offer.SharkID, res.Offer.SharkName)
			c.postForSession(gen, func() { c.createOffer(o) })
		}
	})
}

// CycleStatus steps a participant through live, interested and out by hand.
func (c *Controller) CycleStatus(participantID string) error {
	var result error
	if err := c.call(func() {
		if !c.machine.Active() {
			result = ErrNoSession
			return
		}
		p, ok := c.participant(participantID)
		if !ok {
			result = fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
			return
		}
		switch next := p.Status.Next(); {
		case p.Status == models.ParticipantOut:
		case next == models.ParticipantOut:
			c.markOut(p.ID, "")
		default:
			p.Status = next
		}
	}); err != nil {
		return err
	}
	return result
}

func (c *Controller) streaming() bool {
	return c.deps.Stream != nil && c.sessionID != ""
}

// reportFailure surfaces a failed outbound action in the transcript.
func (c *Controller) reportFailure(kind string) func(error) {
	gen := c.gen
	return func(err error) {
		if err == nil {
			return
		}
		log.Error().Err(err).Str("action", kind).Msg("outbound action failed")
		c.postForSession(gen, func() {
			c.systemMessage("Could not reach the panel. Your last action was not delivered.")
		})
	}
}
