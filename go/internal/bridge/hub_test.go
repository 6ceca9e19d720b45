package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/pitchtank/go/internal/models"
)

type fakeDriver struct {
	mu      sync.Mutex
	calls   []string
	updates chan models.Session
	current models.Session
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		updates: make(chan models.Session, 4),
		current: models.Session{Phase: models.PhaseIdle},
	}
}

func (d *fakeDriver) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *fakeDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDriver) Start(ctx context.Context, pitch models.PitchData, verification *models.Verification) error {
	call := "start:" + pitch.CompanyName
	if verification != nil {
		call += ":" + string(verification.Type)
	}
	d.record(call)
	return nil
}

func (d *fakeDriver) Verify(ctx context.Context, kind models.VerificationType, subject string) (*models.Verification, error) {
	d.record("verify:" + string(kind) + ":" + subject)
	if kind != models.VerificationTrustMRR {
		return nil, errors.New("unknown verification type")
	}
	return &models.Verification{Type: kind, Verified: true, Level: "twitter_match", Subject: subject}, nil
}

func (d *fakeDriver) SearchDeFi(ctx context.Context, query string) ([]models.Protocol, error) {
	d.record("search:" + query)
	return []models.Protocol{{Slug: "sockswap", Name: "SockSwap", TVL: 2000000}}, nil
}

func (d *fakeDriver) EndPitch() error {
	d.record("end_pitch")
	return errors.New("action not allowed in current phase")
}

func (d *fakeDriver) SendMessage(text string) error {
	d.record("message:" + text)
	return nil
}

func (d *fakeDriver) RespondToOffer(offerID string, action models.OfferAction, terms *models.CounterTerms) error {
	call := "offer:" + offerID + ":" + string(action)
	if terms != nil {
		call += ":countered"
	}
	d.record(call)
	return nil
}

func (d *fakeDriver) CycleStatus(id string) error {
	d.record("cycle:" + id)
	return nil
}

func (d *fakeDriver) Reset() error {
	d.record("reset")
	return nil
}

func (d *fakeDriver) Snapshot() (models.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, nil
}

func (d *fakeDriver) Subscribe() (<-chan models.Session, func()) {
	return d.updates, func() {}
}

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func setup(t *testing.T) (*fakeDriver, *websocket.Conn) {
	t.Helper()
	driver, url := serve(t)
	return driver, dial(t, url)
}

// serve starts a hub and returns its base URL.
func serve(t *testing.T) (*fakeDriver, string) {
	t.Helper()
	driver := newFakeDriver()
	hub := NewHub(driver, DefaultConnectionConfig())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(NewServer("", nil, hub).Handler)
	t.Cleanup(srv.Close)
	return driver, srv.URL
}

func dial(t *testing.T, base string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(base, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial bridge: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg received
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	return msg
}

func TestInitialSnapshotOnConnect(t *testing.T) {
	_, conn := setup(t)

	msg := readMessage(t, conn)
	if msg.Type != TypeSnapshot {
		t.Fatalf("type: got %q, want snapshot", msg.Type)
	}
	var s models.Session
	if err := json.Unmarshal(msg.Data, &s); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if s.Phase != models.PhaseIdle {
		t.Errorf("phase: got %s, want idle", s.Phase)
	}
}

func TestSnapshotsAreBroadcast(t *testing.T) {
	driver, conn := setup(t)
	readMessage(t, conn)

	driver.updates <- models.Session{Phase: models.PhaseQA, TotalSecondsRemaining: 700}

	msg := readMessage(t, conn)
	var s models.Session
	if err := json.Unmarshal(msg.Data, &s); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if msg.Type != TypeSnapshot || s.Phase != models.PhaseQA || s.TotalSecondsRemaining != 700 {
		t.Errorf("got %s %+v, want qa snapshot with 700s left", msg.Type, s)
	}
}

func TestCommandsReachDriver(t *testing.T) {
	driver, conn := setup(t)
	readMessage(t, conn)

	commands := []string{
		`{"type":"start","id":"1","data":{"pitchData":{"companyName":"SockCo","amountRaising":500000,"equityPercent":10}}}`,
		`{"type":"message","id":"2","data":{"text":"hello panel"}}`,
		`{"type":"offer_response","id":"3","data":{"offerId":"o1","action":"counter","counterTerms":{"amount":400000,"equity":15}}}`,
		`{"type":"cycle_status","id":"4","data":{"sharkId":"elena"}}`,
		`{"type":"new_pitch","id":"5"}`,
	}
	for _, c := range commands {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(c)); err != nil {
			t.Fatalf("failed to write command: %v", err)
		}
		if msg := readMessage(t, conn); msg.Type != TypeAck {
			t.Errorf("reply to %s: got %s %s, want ack", c, msg.Type, msg.Data)
		}
	}

	want := []string{"start:SockCo", "message:hello panel", "offer:o1:counter:countered", "cycle:elena", "reset"}
	got := driver.Calls()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("calls: got %v, want %v", got, want)
	}
}

func TestCommandErrorsAreReported(t *testing.T) {
	_, conn := setup(t)
	readMessage(t, conn)

	cases := map[string]string{
		`{"type":"end_pitch","id":"9"}`: "not allowed",
		`{"type":"dance"}`:              "unknown command",
		`{not json`:                     "malformed",
		`{"type":"message"}`:            "missing data",
		`{"type":"start","data":{}}`:    "companyName",
	}
	for raw, want := range cases {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("failed to write command: %v", err)
		}
		msg := readMessage(t, conn)
		var p ErrorPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			t.Fatalf("failed to decode error: %v", err)
		}
		if msg.Type != TypeError || !strings.Contains(p.Message, want) {
			t.Errorf("reply to %s: got %s %q, want error containing %q", raw, msg.Type, p.Message, want)
		}
	}
}

func TestOtherClientsSeeCommandActivity(t *testing.T) {
	_, base := serve(t)
	sender := dial(t, base)
	readMessage(t, sender)
	watcher := dial(t, base)
	readMessage(t, watcher)

	if err := sender.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","id":"1","data":{"text":"hi"}}`)); err != nil {
		t.Fatalf("failed to write command: %v", err)
	}
	if msg := readMessage(t, sender); msg.Type != TypeAck {
		t.Fatalf("sender reply: got %s, want ack", msg.Type)
	}

	msg := readMessage(t, watcher)
	if msg.Type != TypeActivity {
		t.Fatalf("watcher message: got %s, want %s", msg.Type, TypeActivity)
	}
	var p ActivityPayload
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		t.Fatalf("failed to decode activity: %v", err)
	}
	if p.Command != CommandMessage || p.ConnectionID == "" {
		t.Errorf("activity: got %+v, want command %q with a connection id", p, CommandMessage)
	}

	// Failed commands are not announced, and the sender never hears its own.
	if err := sender.WriteMessage(websocket.TextMessage, []byte(`{"type":"end_pitch"}`)); err != nil {
		t.Fatalf("failed to write command: %v", err)
	}
	if msg := readMessage(t, sender); msg.Type != TypeError {
		t.Fatalf("sender reply: got %s, want error", msg.Type)
	}
	watcher.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var extra received
	if err := watcher.ReadJSON(&extra); err == nil {
		t.Errorf("watcher got unexpected %s message", extra.Type)
	}
}

func TestPongUpdatesLastPing(t *testing.T) {
	_, base := serve(t)
	conn := dial(t, base)
	readMessage(t, conn)

	before := stats(t, base)
	if len(before.Connections) != 1 {
		t.Fatalf("connections: got %d, want 1", len(before.Connections))
	}

	time.Sleep(20 * time.Millisecond)
	if err := conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("failed to write pong: %v", err)
	}
	// The server only runs the pong handler while reading, so follow with a
	// command and wait for its reply.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"new_pitch"}`)); err != nil {
		t.Fatalf("failed to write command: %v", err)
	}
	readMessage(t, conn)

	after := stats(t, base)
	if len(after.Connections) != 1 {
		t.Fatalf("connections: got %d, want 1", len(after.Connections))
	}
	if !after.Connections[0].LastPing.After(before.Connections[0].LastPing) {
		t.Errorf("last ping: got %v, want after %v", after.Connections[0].LastPing, before.Connections[0].LastPing)
	}
}

type statsResponse struct {
	Total       int               `json:"total_connections"`
	Connections []ConnectionStats `json:"connections"`
}

func stats(t *testing.T, base string) statsResponse {
	t.Helper()
	resp, err := http.Get(base + "/ws/stats")
	if err != nil {
		t.Fatalf("failed to fetch stats: %v", err)
	}
	defer resp.Body.Close()
	var out statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	return out
}

func TestVerificationBeforeStart(t *testing.T) {
	driver, conn := setup(t)
	readMessage(t, conn)

	send := func(raw string) received {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("failed to write command: %v", err)
		}
		return readMessage(t, conn)
	}

	msg := send(`{"type":"search_defi","id":"1","data":{"query":"sock"}}`)
	var protocols ProtocolsPayload
	if err := json.Unmarshal(msg.Data, &protocols); err != nil {
		t.Fatalf("failed to decode protocols: %v", err)
	}
	if msg.Type != TypeProtocols || protocols.ID != "1" || len(protocols.Results) != 1 || protocols.Results[0].Slug != "sockswap" {
		t.Errorf("search reply: got %s %s, want protocols with sockswap", msg.Type, msg.Data)
	}

	msg = send(`{"type":"verify","id":"2","data":{"type":"trustmrr","subject":"trustmrr.com/startup/sockco"}}`)
	var verified VerificationPayload
	if err := json.Unmarshal(msg.Data, &verified); err != nil {
		t.Fatalf("failed to decode verification: %v", err)
	}
	if msg.Type != TypeVerification || !verified.Verification.Verified || verified.Verification.Subject != "trustmrr.com/startup/sockco" {
		t.Errorf("verify reply: got %s %s, want a verified trustmrr check", msg.Type, msg.Data)
	}

	if msg := send(`{"type":"verify","id":"3","data":{"type":"defi","subject":"sockswap"}}`); msg.Type != TypeError {
		t.Errorf("failed verify reply: got %s, want error", msg.Type)
	}

	start := `{"type":"start","id":"4","data":{"pitchData":{"companyName":"SockCo","amountRaising":500000,"equityPercent":10},` +
		`"verification":{"type":"trustmrr","verified":true,"level":"twitter_match"}}}`
	if msg := send(start); msg.Type != TypeAck {
		t.Errorf("start reply: got %s %s, want ack", msg.Type, msg.Data)
	}

	want := []string{"search:sock", "verify:trustmrr:trustmrr.com/startup/sockco", "verify:defi:sockswap", "start:SockCo:trustmrr"}
	if got := driver.Calls(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("calls: got %v, want %v", got, want)
	}
}
