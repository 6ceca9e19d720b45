package pitchtank_client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"time"

	"github.com/mcdev12/pitchtank/go/clients"
	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/mcdev12/pitchtank/go/internal/pitch/events"
)

var ErrEmptyTranscript = errors.New("transcription returned no text")

// PitchTankClient talks to the session backend that runs the panel.
type PitchTankClient struct {
	*clients.BaseClient
}

func NewPitchTankClient(baseURL, token string) *PitchTankClient {
	client := &PitchTankClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(AcceptHeader, JsonContentType)
	if token != "" {
		client.SetHeader(AuthorizationHeader, "Bearer "+token)
	}

	return client
}

type SharkState struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Confidence int    `json:"confidence"`
}

type StartSessionResponse struct {
	SessionID string       `json:"sessionId"`
	Sharks    []SharkState `json:"sharks"`
}

type TranscriptLine struct {
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type OfferResponseResult struct {
	Result string               `json:"result"`
	Offer  *events.OfferPayload `json:"offer,omitempty"`
}

type ChatRequest struct {
	Action    string           `json:"action"`
	PitchData models.PitchData `json:"pitchData"`
	Message   string           `json:"message,omitempty"`
	Context   string           `json:"context,omitempty"`
	LastShark string           `json:"lastShark,omitempty"`
}

type ChatResponse struct {
	SharkID   string               `json:"sharkId"`
	SharkName string               `json:"sharkName"`
	Text      string               `json:"text"`
	Offer     *events.OfferPayload `json:"offer"`
}

type transcribeResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Error   string `json:"error"`
}

// StreamURL is the live event feed address for a session.
func (c *PitchTankClient) StreamURL(sessionID string) string {
	return c.BaseURL() + fmt.Sprintf(SessionStreamPath, url.PathEscape(sessionID))
}

// StartSession registers a new pitch with the backend. verification is the
// optional result of a traction check run before the pitch.
func (c *PitchTankClient) StartSession(ctx context.Context, pitch models.PitchData, verification *models.Verification) (*StartSessionResponse, error) {
	req := struct {
		PitchData    models.PitchData     `json:"pitchData"`
		Verification *models.Verification `json:"verification,omitempty"`
	}{PitchData: pitch, Verification: verification}

	var resp StartSessionResponse
	if err := c.PostJSON(ctx, sessionStartPath, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("failed to start session: response carried no session id")
	}
	return &resp, nil
}

// CompletePitch submits the frozen pitch transcript and asks for initial reactions.
func (c *PitchTankClient) CompletePitch(ctx context.Context, sessionID string, transcript []TranscriptLine, pitchDuration time.Duration) error {
	req := struct {
		Transcript    []TranscriptLine `json:"transcript"`
		PitchDuration int              `json:"pitchDuration"`
	}{
		Transcript:    transcript,
		PitchDuration: int(pitchDuration / time.Second),
	}
	if req.Transcript == nil {
		req.Transcript = []TranscriptLine{}
	}

	endpoint := fmt.Sprintf(pitchCompletePath, url.PathEscape(sessionID))
	if err := c.PostJSON(ctx, endpoint, req, nil); err != nil {
		return fmt.Errorf("failed to complete pitch: %w", err)
	}
	return nil
}

// SendUserMessage posts a free-text line. Replies arrive on the live feed.
func (c *PitchTankClient) SendUserMessage(ctx context.Context, sessionID, text string) error {
	req := struct {
		Text string `json:"text"`
	}{Text: text}

	endpoint := fmt.Sprintf(userMessagePath, url.PathEscape(sessionID))
	if err := c.PostJSON(ctx, endpoint, req, nil); err != nil {
		return fmt.Errorf("failed to send user message: %w", err)
	}
	return nil
}

// RespondToOffer forwards accept, decline or counter for an offer.
func (c *PitchTankClient) RespondToOffer(ctx context.Context, sessionID, offerID string, action models.OfferAction, terms *models.CounterTerms) (*OfferResponseResult, error) {
	req := struct {
		OfferID      string               `json:"offerId"`
		Action       models.OfferAction   `json:"action"`
		CounterTerms *models.CounterTerms `json:"counterTerms,omitempty"`
	}{
		OfferID:      offerID,
		Action:       action,
		CounterTerms: terms,
	}

	var resp OfferResponseResult
	endpoint := fmt.Sprintf(offerResponsePath, url.PathEscape(sessionID))
	if err := c.PostJSON(ctx, endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to respond to offer %s: %w", offerID, err)
	}
	return &resp, nil
}

// Transcribe uploads recorded audio and returns the recognized text.
func (c *PitchTankClient) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(transcribeFormField, filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	body, err := c.Post(ctx, transcribePath, w.FormDataContentType(), &buf)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe: %w", err)
	}

	var resp transcribeResponse
	if err := decode(body, &resp); err != nil {
		return "", fmt.Errorf("failed to transcribe: %w", err)
	}
	if !resp.Success || resp.Text == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrEmptyTranscript, resp.Error)
		}
		return "", ErrEmptyTranscript
	}
	return resp.Text, nil
}

// Chat is the request/response mode: one call returns one panel reply.
func (c *PitchTankClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Action == "" {
		req.Action = "message"
	}
	var resp ChatResponse
	if err := c.PostJSON(ctx, chatPath, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to chat: %w", err)
	}
	return &resp, nil
}
