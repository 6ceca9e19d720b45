// Package session owns one pitch session. Every mutation of session state runs
// on the controller goroutine: live feed events, timer ticks, audio callbacks
// and user actions are all delivered to it through one mailbox.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pitchtank/go/clients/pitchtank_client"
	"github.com/mcdev12/pitchtank/go/internal/leaderboard"
	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/mcdev12/pitchtank/go/internal/pitch/actions"
	"github.com/mcdev12/pitchtank/go/internal/pitch/audio"
	"github.com/mcdev12/pitchtank/go/internal/pitch/capture"
	"github.com/mcdev12/pitchtank/go/internal/pitch/feed"
	"github.com/mcdev12/pitchtank/go/internal/pitch/offers"
	"github.com/mcdev12/pitchtank/go/internal/pitch/phase"
	"github.com/mcdev12/pitchtank/go/internal/pitch/timer"
	"github.com/rs/zerolog/log"
)

var (
	ErrStartFailed    = errors.New("failed to start session")
	ErrNoSession      = errors.New("no active session")
	ErrSessionActive  = errors.New("session already active")
	ErrNotRunning     = errors.New("session controller not running")
	ErrAlreadyRunning = errors.New("session controller already running")
)

const mailboxSize = 256

// Backend is the remote collaborator that runs the panel.
type Backend interface {
	StartSession(ctx context.Context, pitch models.PitchData, verification *models.Verification) (*pitchtank_client.StartSessionResponse, error)
	CompletePitch(ctx context.Context, sessionID string, transcript []pitchtank_client.TranscriptLine, pitchDuration time.Duration) error
	SendUserMessage(ctx context.Context, sessionID, text string) error
	RespondToOffer(ctx context.Context, sessionID, offerID string, action models.OfferAction, terms *models.CounterTerms) (*pitchtank_client.OfferResponseResult, error)
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
	Chat(ctx context.Context, req pitchtank_client.ChatRequest) (*pitchtank_client.ChatResponse, error)
	TranscribeStatus(ctx context.Context) (*pitchtank_client.TranscribeStatus, error)
	VerifyTrustMRR(ctx context.Context, profileURL string) (*models.Verification, error)
	VerifyDeFi(ctx context.Context, protocolSlug string) (*models.Verification, error)
	SearchDeFi(ctx context.Context, query string) ([]models.Protocol, error)
}

type Config struct {
	Timer              timer.Config         `yaml:"timer"`
	Roster             []models.Participant `yaml:"roster"`
	DedupWindow        int                  `yaml:"dedup_window"`
	DedupPrefix        int                  `yaml:"dedup_prefix"`
	SpeakingClearDelay time.Duration        `yaml:"speaking_clear_delay"`
	ThinkingTimeout    time.Duration        `yaml:"thinking_timeout"`
	DealCue            string               `yaml:"deal_cue"`
	NoDealCue          string               `yaml:"no_deal_cue"`
	RequestTimeout     time.Duration        `yaml:"request_timeout"`
	Feed               feed.RetryConfig     `yaml:"feed"`
	Actions            actions.Config       `yaml:"actions"`
}

func DefaultConfig() Config {
	return Config{
		Timer:              timer.DefaultConfig(),
		Roster:             models.DefaultRoster(),
		DedupWindow:        20,
		DedupPrefix:        50,
		SpeakingClearDelay: 1500 * time.Millisecond,
		ThinkingTimeout:    20 * time.Second,
		RequestTimeout:     30 * time.Second,
		Feed:               feed.DefaultRetryConfig(),
		Actions:            actions.DefaultConfig(),
	}
}

// Deps are the collaborators of a controller. Every field is optional: without
// a Backend the session runs offline, without a Stream replies come back from
// Backend.Chat, without a Recorder input is text-only.
type Deps struct {
	Clock    clockwork.Clock
	Backend  Backend
	Stream   feed.Stream
	Player   audio.Player
	Recorder capture.Recorder
	Store    leaderboard.Store
	Identity leaderboard.Identity
}

// Controller is the session actor. Its exported methods are safe to call from
// any goroutine once Run is running.
type Controller struct {
	cfg   Config
	deps  Deps
	clock clockwork.Clock

	mailbox chan func()
	done    chan struct{}
	running atomic.Bool

	subMu       sync.Mutex
	subscribers map[int]chan models.Session
	nextSubID   int

	// Owned by the Run goroutine.
	runCtx       context.Context
	gen          uint64
	starting     bool
	sessionID    string
	pitch        models.PitchData
	verification *models.Verification
	machine      *phase.Machine
	timer        *timer.Engine
	ledger       *offers.Ledger
	participants []models.Participant
	messages     []models.Message
	thinking     map[string]*placeholder
	speaking     map[string]*indicator
	audioActive  map[string]int
	dedup        *dedupWindow
	queue        *audio.Queue
	dispatcher   *actions.Dispatcher
	stopFeed     context.CancelFunc
	transcript   []pitchtank_client.TranscriptLine
	lastShark    string
	connected    bool
	textOnly     bool
	startedAt    time.Time
}

func New(cfg Config, deps Deps) *Controller {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Player == nil {
		deps.Player = audio.NullPlayer{Clock: deps.Clock}
	}
	if deps.Recorder == nil {
		deps.Recorder = capture.Unavailable{}
	}
	if len(cfg.Roster) == 0 {
		cfg.Roster = models.DefaultRoster()
	}
	if cfg.Timer.TotalSeconds <= 0 {
		cfg.Timer = timer.DefaultConfig()
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	c := &Controller{
		cfg:         cfg,
		deps:        deps,
		clock:       deps.Clock,
		mailbox:     make(chan func(), mailboxSize),
		done:        make(chan struct{}),
		subscribers: make(map[int]chan models.Session),
		runCtx:      context.Background(),
	}
	c.resetState()
	return c
}

// Run processes the mailbox and timer ticks until ctx is done, then tears the
// session down.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	c.runCtx = ctx
	defer close(c.done)
	defer c.teardown("controller stopped")

	log.Info().Msg("session controller started")

	for {
		// A due tick goes before queued work so the countdown never lags.
		select {
		case <-c.timer.C():
			c.tick()
			c.publish()
			continue
		default:
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("session controller shutting down")
			return nil
		case <-c.timer.C():
			c.tick()
		case fn := <-c.mailbox:
			fn()
		}
		c.publish()
	}
}

// post queues fn for the controller goroutine. It reports false once Run has exited.
func (c *Controller) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.mailbox <- fn:
		return true
	case <-c.done:
		return false
	}
}

// call runs fn on the controller goroutine and waits for it.
func (c *Controller) call(fn func()) error {
	finished := make(chan struct{})
	if !c.post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrNotRunning
	}
	select {
	case <-finished:
		return nil
	case <-c.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrNotRunning
		}
	}
}

// postForSession is post guarded by the session generation, so callbacks
// belonging to a torn-down session never touch its successor.
func (c *Controller) postForSession(gen uint64, fn func()) bool {
	return c.post(func() {
		if c.gen != gen {
			return
		}
		fn()
	})
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() (models.Session, error) {
	var s models.Session
	err := c.call(func() { s = c.snapshot() })
	return s, err
}

// Subscribe delivers a snapshot after every unit of work. Slow subscribers only
// see the latest snapshot. Call cancel to unsubscribe.
func (c *Controller) Subscribe() (<-chan models.Session, func()) {
	ch := make(chan models.Session, 1)

	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subscribers, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Controller) publish() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if len(c.subscribers) == 0 {
		return
	}

	s := c.snapshot()
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Start registers the pitch with the backend and begins the pitch phase. A
// closed session is reset first. Failure to reach the backend is returned as
// ErrStartFailed and leaves the controller idle. verification is optional.
func (c *Controller) Start(ctx context.Context, pitch models.PitchData, verification *models.Verification) error {
	var precheck error
	if err := c.call(func() {
		switch {
		case c.starting || c.machine.Active():
			precheck = ErrSessionActive
		case c.machine.Closed():
			c.reset("new pitch")
			c.starting = true
		default:
			c.starting = true
		}
	}); err != nil {
		return err
	}
	if precheck != nil {
		return precheck
	}

	var resp *pitchtank_client.StartSessionResponse
	var startErr error
	transcribe := true
	if c.deps.Backend != nil {
		resp, startErr = c.deps.Backend.StartSession(ctx, pitch, verification)
		if startErr == nil {
			transcribe = c.transcriptionAvailable(ctx)
		}
	}

	var result error
	err := c.call(func() {
		c.starting = false
		if startErr != nil {
			log.Error().Err(startErr).Str("company", pitch.CompanyName).Msg("failed to start session")
			result = errors.Join(ErrStartFailed, startErr)
			return
		}
		c.begin(pitch, verification, resp, transcribe)
	})
	if err != nil {
		return err
	}
	return result
}

// Reset tears down the current session and returns to idle.
func (c *Controller) Reset() error {
	return c.call(func() { c.reset("reset") })
}

// Teardown stops the timer, the live feed, audio and capture and cancels
// every pending deadline. The session state stays readable. Idempotent.
func (c *Controller) Teardown() error {
	return c.call(func() { c.teardown("teardown") })
}

func (c *Controller) begin(pitch models.PitchData, verification *models.Verification, resp *pitchtank_client.StartSessionResponse, transcribe bool) {
	c.gen++
	gen := c.gen

	c.pitch = pitch
	if verification != nil {
		v := *verification
		c.verification = &v
	}
	c.participants = c.rosterFor(resp)
	c.startedAt = c.clock.Now()
	if resp != nil {
		c.sessionID = resp.SessionID
	}

	if _, err := c.machine.Begin(); err != nil {
		log.Error().Err(err).Msg("failed to begin pitch phase")
		return
	}
	c.timer.Start()

	c.queue = audio.NewQueue(c.deps.Player, audio.Hooks{
		OnStart: func(clip models.Clip) {
			c.postForSession(gen, func() { c.onClipStart(clip) })
		},
		OnFinish: func(clip models.Clip, _ error) {
			c.postForSession(gen, func() { c.onClipFinish(clip) })
		},
	})

	c.dispatcher = actions.NewDispatcher(c.clock, c.cfg.Actions)
	go c.dispatcher.Run(c.runCtx)

	c.textOnly = !transcribe || !c.recorderAvailable()

	if c.deps.Stream != nil && c.sessionID != "" {
		ctx, cancel := context.WithCancel(c.runCtx)
		c.stopFeed = cancel
		runner := feed.NewRunner(c.clock, c.deps.Stream, c.cfg.Feed, func(connected bool, err error) {
			c.postForSession(gen, func() { c.setConnected(connected, err) })
		})
		sessionID := c.sessionID
		go runner.Run(ctx, sessionID, func(raw []byte) {
			c.postForSession(gen, func() { c.dispatch(raw) })
		})
	}

	log.Info().
		Str("session_id", c.sessionID).
		Str("company", pitch.CompanyName).
		Bool("offline", c.deps.Backend == nil).
		Bool("streaming", c.stopFeed != nil).
		Bool("text_only", c.textOnly).
		Msg("session started")
}

func (c *Controller) rosterFor(resp *pitchtank_client.StartSessionResponse) []models.Participant {
	roster := make([]models.Participant, len(c.cfg.Roster))
	copy(roster, c.cfg.Roster)
	for i := range roster {
		roster[i].Status = models.ParticipantLive
		if resp == nil {
			continue
		}
		for _, s := range resp.Sharks {
			if roster[i].Matches(s.ID) && s.Name != "" {
				roster[i].DisplayName = s.Name
			}
		}
	}
	return roster
}

func (c *Controller) recorderAvailable() bool {
	_, unavailable := c.deps.Recorder.(capture.Unavailable)
	return !unavailable
}

// transcriptionAvailable asks the backend whether recordings can be turned
// into text. A failed check leaves voice input on.
func (c *Controller) transcriptionAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	st, err := c.deps.Backend.TranscribeStatus(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to check transcription status")
		return true
	}
	if !st.Available {
		log.Info().Str("reason", st.Message).Msg("transcription unavailable, text only")
	}
	return st.Available
}

// teardown releases every session resource. Each step tolerates resources
// that were never acquired.
func (c *Controller) teardown(reason string) {
	c.gen++

	c.timer.Stop()
	if c.stopFeed != nil {
		c.stopFeed()
		c.stopFeed = nil
	}
	if c.queue != nil {
		c.queue.Stop()
	}
	c.deps.Recorder.Release()
	if c.dispatcher != nil {
		c.dispatcher.Stop()
	}
	for speaker, p := range c.thinking {
		p.cancel()
		delete(c.thinking, speaker)
	}
	for speaker, ind := range c.speaking {
		ind.cancel()
		delete(c.speaking, speaker)
	}
	clear(c.audioActive)
	c.connected = false

	log.Debug().Str("session_id", c.sessionID).Str("reason", reason).Msg("session torn down")
}

func (c *Controller) reset(reason string) {
	c.teardown(reason)
	c.resetState()
	log.Info().Str("reason", reason).Msg("session reset to idle")
}

func (c *Controller) resetState() {
	c.sessionID = ""
	c.pitch = models.PitchData{}
	c.verification = nil
	c.machine = phase.NewMachine()
	c.timer = timer.NewEngine(c.clock, c.cfg.Timer)
	c.ledger = offers.NewLedger(c.clock)
	c.participants = nil
	c.messages = nil
	c.thinking = make(map[string]*placeholder)
	c.speaking = make(map[string]*indicator)
	c.audioActive = make(map[string]int)
	c.dedup = newDedupWindow(c.cfg.DedupWindow)
	c.queue = nil
	c.dispatcher = nil
	c.stopFeed = nil
	c.transcript = nil
	c.lastShark = ""
	c.connected = false
	c.textOnly = false
	c.startedAt = time.Time{}
}

func (c *Controller) setConnected(connected bool, err error) {
	if c.connected == connected {
		return
	}
	c.connected = connected
	if connected {
		log.Info().Str("session_id", c.sessionID).Msg("event feed connected")
	} else {
		log.Warn().Err(err).Str("session_id", c.sessionID).Msg("event feed lost, continuing locally")
	}
}

func (c *Controller) tick() {
	if !c.machine.Active() {
		return
	}
	res := c.timer.Tick(c.machine.Current() == models.PhasePitch)
	if res.TotalExpired {
		log.Info().Str("session_id", c.sessionID).Msg("session time expired")
		c.closeNoDeal(models.NoDealTimeExpired)
		return
	}
	if res.PitchExpired && c.machine.Current() == models.PhasePitch {
		log.Info().Str("session_id", c.sessionID).Msg("pitch time expired")
		c.endPitch("timer")
	}
}

func (c *Controller) addMessage(speaker, name, text string) models.Message {
	m := models.Message{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Name:      name,
		Text:      text,
		Timestamp: c.clock.Now(),
	}
	c.messages = append(c.messages, m)
	return m
}

func (c *Controller) systemMessage(text string) {
	c.addMessage(models.SpeakerSystem, "", text)
}

// participant resolves a wire speaker id, including short ids, to the roster.
func (c *Controller) participant(id string) (*models.Participant, bool) {
	for i := range c.participants {
		if c.participants[i].Matches(id) {
			return &c.participants[i], true
		}
	}
	return nil, false
}

func (c *Controller) canonical(id string) string {
	if p, ok := c.participant(id); ok {
		return p.ID
	}
	return id
}

func (c *Controller) displayName(id, fallback string) string {
	if p, ok := c.participant(id); ok {
		return p.DisplayName
	}
	if fallback != "" {
		return fallback
	}
	return id
}

func (c *Controller) submit(kind string, do func(ctx context.Context) error, onDone func(err error)) {
	if c.dispatcher == nil {
		return
	}
	timeout := c.cfg.RequestTimeout
	c.dispatcher.Submit(actions.Action{
		Kind: kind,
		Do: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return do(ctx)
		},
		OnDone: onDone,
	})
}

// Dispatch applies one raw feed payload, as a feed transport would deliver it.
func (c *Controller) Dispatch(raw []byte) {
	payload := append([]byte(nil), raw...)
	c.post(func() { c.dispatch(payload) })
}
