package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Outbound message types
const (
	TypeSnapshot = "snapshot"
	TypeAck      = "ack"
	TypeError    = "error"
	TypeActivity = "activity"
	// Replies to verify and search_defi, sent to the asking client only.
	TypeVerification = "verification"
	TypeProtocols    = "protocols"
)

// Client command types
const (
	CommandStart         = "start"
	CommandEndPitch      = "end_pitch"
	CommandMessage       = "message"
	CommandOfferResponse = "offer_response"
	CommandCycleStatus   = "cycle_status"
	CommandNewPitch      = "new_pitch"
	CommandVerify        = "verify"
	CommandSearchDeFi    = "search_defi"
)

var ErrUnknownCommand = errors.New("unknown command")

// Envelope is the wire shape of every message the bridge sends.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Command is the wire shape of a client command.
type Command struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type StartPayload struct {
	PitchData    models.PitchData     `json:"pitchData"`
	Verification *models.Verification `json:"verification,omitempty"`
}

type VerifyPayload struct {
	Type    models.VerificationType `json:"type"`
	Subject string                  `json:"subject"`
}

type SearchPayload struct {
	Query string `json:"query"`
}

type ProtocolsPayload struct {
	ID      string            `json:"id,omitempty"`
	Results []models.Protocol `json:"results"`
}

type VerificationPayload struct {
	ID           string              `json:"id,omitempty"`
	Verification models.Verification `json:"verification"`
}

type MessagePayload struct {
	Text string `json:"text"`
}

type OfferResponsePayload struct {
	OfferID      string               `json:"offerId"`
	Action       models.OfferAction   `json:"action"`
	CounterTerms *models.CounterTerms `json:"counterTerms,omitempty"`
}

type CycleStatusPayload struct {
	SharkID string `json:"sharkId"`
}

type AckPayload struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command"`
}

// ActivityPayload tells other clients that a command succeeded.
type ActivityPayload struct {
	ConnectionID string `json:"connectionId"`
	Command      string `json:"command"`
}

type ErrorPayload struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command,omitempty"`
	Message string `json:"message"`
}

// handleCommand executes one client command and returns the reply for the
// sender. State changes reach every client through the snapshot broadcast,
// and other clients are told who ran the command.
func (h *Hub) handleCommand(raw []byte) Envelope {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Envelope{Type: TypeError, Data: ErrorPayload{Message: "malformed command"}}
	}

	reply, err := h.execute(cmd)
	if err != nil {
		log.Warn().Err(err).Str("command", cmd.Type).Msg("bridge command failed")
		return Envelope{Type: TypeError, Data: ErrorPayload{ID: cmd.ID, Command: cmd.Type, Message: err.Error()}}
	}
	if reply != nil {
		return *reply
	}
	return Envelope{Type: TypeAck, Data: AckPayload{ID: cmd.ID, Command: cmd.Type}}
}

// execute runs cmd. Queries return their reply; state changes return nil
// and are acknowledged.
func (h *Hub) execute(cmd Command) (*Envelope, error) {
	switch cmd.Type {
	case CommandVerify:
		var p VerifyPayload
		if err := decode(cmd.Data, &p); err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.config.CommandTimeout)
		defer cancel()
		v, err := h.driver.Verify(ctx, p.Type, p.Subject)
		if err != nil {
			return nil, err
		}
		return &Envelope{Type: TypeVerification, Data: VerificationPayload{ID: cmd.ID, Verification: *v}}, nil

	case CommandSearchDeFi:
		var p SearchPayload
		if err := decode(cmd.Data, &p); err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.config.CommandTimeout)
		defer cancel()
		results, err := h.driver.SearchDeFi(ctx, p.Query)
		if err != nil {
			return nil, err
		}
		if results == nil {
			results = []models.Protocol{}
		}
		return &Envelope{Type: TypeProtocols, Data: ProtocolsPayload{ID: cmd.ID, Results: results}}, nil

	case CommandStart:
		var p StartPayload
		if err := decode(cmd.Data, &p); err != nil {
			return nil, err
		}
		if p.PitchData.CompanyName == "" {
			return nil, errors.New("companyName is required")
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.config.CommandTimeout)
		defer cancel()
		return nil, h.driver.Start(ctx, p.PitchData, p.Verification)

	case CommandEndPitch:
		return nil, h.driver.EndPitch()

	case CommandMessage:
		var p MessagePayload
		if err := decode(cmd.Data, &p); err != nil {
			return nil, err
		}
		return nil, h.driver.SendMessage(p.Text)

	case CommandOfferResponse:
		var p OfferResponsePayload
		if err := decode(cmd.Data, &p); err != nil {
			return nil, err
		}
		return nil, h.driver.RespondToOffer(p.OfferID, p.Action, p.CounterTerms)

	case CommandCycleStatus:
		var p CycleStatusPayload
		if err := decode(cmd.Data, &p); err != nil {
			return nil, err
		}
		return nil, h.driver.CycleStatus(p.SharkID)

	case CommandNewPitch:
		return nil, h.driver.Reset()
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}
	return nil
}
