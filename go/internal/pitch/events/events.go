package events

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	ErrMalformed   = errors.New("malformed event")
	ErrUnknownKind = errors.New("unknown event kind")
)

// Kind represents the type of a live feed event
type Kind string

const (
	KindConnected   Kind = "connected"
	KindHeartbeat   Kind = "heartbeat"
	KindThinking    Kind = "thinking"
	KindSpeaking    Kind = "speaking"
	KindMessage     Kind = "message"
	KindOut         Kind = "out"
	KindOffer       Kind = "offer"
	KindDealClosed  Kind = "deal_closed"
	KindPhaseChange Kind = "phase_change"
)

// aliases maps the names the streaming backend uses onto kinds.
var aliases = map[string]Kind{
	"shark_thinking": KindThinking,
	"shark_speaking": KindSpeaking,
	"shark_message":  KindMessage,
	"shark_out":      KindOut,
	"shark_offer":    KindOffer,
}

// ParseKind resolves a wire type string, including backend aliases.
func ParseKind(s string) (Kind, bool) {
	if k, ok := aliases[s]; ok {
		return k, true
	}
	switch k := Kind(s); k {
	case KindConnected, KindHeartbeat, KindThinking, KindSpeaking, KindMessage,
		KindOut, KindOffer, KindDealClosed, KindPhaseChange:
		return k, true
	}
	return "", false
}

// Envelope is the wire shape of every feed event
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Event is one decoded feed event. The concrete types below form a closed set.
type Event interface {
	Kind() Kind
}

type Connected struct{ SessionID string }

type Heartbeat struct{}

type Thinking struct {
	Speaker string
	Name    string
}

type Speaking struct {
	Speaker string
	Name    string
	On      bool
}

type Message struct {
	Speaker string
	Name    string
	Text    string
	Clip    *models.Clip
	Offer   *models.Offer
}

type Out struct {
	Speaker string
	Name    string
	Reason  string
}

type OfferMade struct{ Offer models.Offer }

type DealClosed struct {
	SharkID string
	Name    string
	Offer   *models.Offer
}

type PhaseChange struct{ Phase models.Phase }

func (Connected) Kind() Kind   { return KindConnected }
func (Heartbeat) Kind() Kind   { return KindHeartbeat }
func (Thinking) Kind() Kind    { return KindThinking }
func (Speaking) Kind() Kind    { return KindSpeaking }
func (Message) Kind() Kind     { return KindMessage }
func (Out) Kind() Kind         { return KindOut }
func (OfferMade) Kind() Kind   { return KindOffer }
func (DealClosed) Kind() Kind  { return KindDealClosed }
func (PhaseChange) Kind() Kind { return KindPhaseChange }

// Decoded pairs an event with its envelope metadata
type Decoded struct {
	Event     Event
	SessionID string
	Timestamp time.Time
}

// Decode parses one raw feed payload into a typed event
func Decode(raw []byte) (Decoded, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Decoded{}, fmt.Errorf("%w: unmarshal envelope: %v", ErrMalformed, err)
	}
	return DecodeEnvelope(env)
}

// DecodeEnvelope parses an already unmarshalled envelope
func DecodeEnvelope(env Envelope) (Decoded, error) {
	kind, ok := ParseKind(env.Type)
	if !ok {
		return Decoded{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
	ev, err := parsePayload(kind, env)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %s: %v", ErrMalformed, kind, err)
	}
	d := Decoded{Event: ev, SessionID: env.SessionID}
	if env.Timestamp > 0 {
		d.Timestamp = time.UnixMilli(env.Timestamp)
	}
	return d, nil
}

func parsePayload(kind Kind, env Envelope) (Event, error) {
	switch kind {
	case KindConnected:
		return Connected{SessionID: env.SessionID}, nil

	case KindHeartbeat:
		return Heartbeat{}, nil

	case KindThinking:
		var p ThinkingPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return nil, err
		}
		if p.SharkID == "" {
			return nil, errors.New("missing sharkId")
		}
		return Thinking{Speaker: p.SharkID, Name: p.SharkName}, nil

	case KindSpeaking:
		var p SpeakingPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return nil, err
		}
		if p.SharkID == "" {
			return nil, errors.New("missing sharkId")
		}
		return Speaking{Speaker: p.SharkID, Name: p.SharkName, On: p.Speaking}, nil

	case KindMessage:
		var p MessagePayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return nil, err
		}
		if p.SharkID == "" || p.Text == "" {
			return nil, errors.New("missing sharkId or text")
		}
		m := Message{Speaker: p.SharkID, Name: p.SharkName, Text: p.Text}
		if p.Offer != nil {
			o := p.Offer.ToOffer(p.SharkID, p.SharkName)
			m.Offer = &o
		}
		if p.Audio != nil && p.Audio.AudioData != "" {
			clip, err := p.Audio.ToClip(p.SharkID, time.Duration(p.DurationMs)*time.Millisecond)
			if err != nil {
				// A bad clip must not cost the message; it is shown without audio.
				log.Warn().Err(err).Str("shark_id", p.SharkID).Msg("dropping undecodable audio")
			} else {
				m.Clip = clip
			}
		}
		return m, nil

	case KindOut:
		var p OutPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return nil, err
		}
		if p.SharkID == "" {
			return nil, errors.New("missing sharkId")
		}
		return Out{Speaker: p.SharkID, Name: p.SharkName, Reason: p.Message}, nil

	case KindOffer:
		var p OfferEventPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return nil, err
		}
		src := p.OfferPayload
		if p.Offer != nil {
			src = *p.Offer
		}
		if src.SharkID == "" {
			src.SharkID = p.SharkID
		}
		if src.SharkID == "" {
			return nil, errors.New("missing sharkId")
		}
		return OfferMade{Offer: src.ToOffer(src.SharkID, firstNonEmpty(src.SharkName, p.SharkName))}, nil

	case KindDealClosed:
		var p DealClosedPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return nil, err
		}
		d := DealClosed{SharkID: p.SharkID, Name: p.SharkName}
		if p.Offer != nil {
			o := p.Offer.ToOffer(p.SharkID, p.SharkName)
			o.Status = models.OfferStatusAccepted
			d.Offer = &o
			if d.SharkID == "" {
				d.SharkID = o.SharkID
			}
		}
		return d, nil

	case KindPhaseChange:
		var p PhaseChangePayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return nil, err
		}
		ph := models.Phase(p.Phase)
		if !ph.Valid() || ph == models.PhaseIdle {
			return nil, fmt.Errorf("invalid phase %q", p.Phase)
		}
		return PhaseChange{Phase: ph}, nil
	}

	return nil, fmt.Errorf("no decoder for %s", kind)
}

func unmarshalData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return errors.New("missing data")
	}
	return json.Unmarshal(data, v)
}

// ToOffer converts a wire offer to the domain type
func (p OfferPayload) ToOffer(sharkID, sharkName string) models.Offer {
	o := models.Offer{
		ID:             p.ID,
		SharkID:        firstNonEmpty(p.SharkID, sharkID),
		SharkName:      firstNonEmpty(p.SharkName, sharkName),
		Amount:         int64(p.Amount),
		EquityPercent:  p.Equity,
		RoyaltyPerUnit: p.Royalty,
		Conditions:     p.Conditions,
		Status:         models.OfferStatusPending,
	}
	if p.RoyaltyUntil != nil {
		until := int64(*p.RoyaltyUntil)
		o.RoyaltyCap = &until
	}
	return o
}

// ToClip decodes the base64 audio into a clip
func (a AudioPayload) ToClip(speaker string, d time.Duration) (*models.Clip, error) {
	payload, err := base64.StdEncoding.DecodeString(a.AudioData)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	format := a.Format
	if format == "" {
		format = "audio/mpeg"
	}
	return &models.Clip{
		ID:        uuid.NewString(),
		SpeakerID: speaker,
		Payload:   payload,
		Format:    format,
		Duration:  d,
	}, nil
}

// DedupKey identifies an utterance by speaker and the normalized start of its
// text. Case and runs of whitespace are folded, so a redelivered message or an
// out reason repeated as a message share a key.
func DedupKey(speaker, text string, prefix int) string {
	norm := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if prefix > 0 {
		if r := []rune(norm); len(r) > prefix {
			norm = string(r[:prefix])
		}
	}
	return speaker + "|" + norm
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
