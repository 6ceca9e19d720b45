// Package actions delivers outbound control requests to the backend in order,
// retrying transport failures and buffering while the backend is unreachable.
package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pitchtank/go/clients"
	"github.com/rs/zerolog/log"
	backoff "gopkg.in/cenkalti/backoff.v1"
)

var ErrAlreadyRunning = errors.New("action dispatcher already running")

// Action is one outbound request. Do performs it; OnDone, if set, receives the
// final result from the dispatcher goroutine. OnDone is not called for actions
// dropped by Stop.
type Action struct {
	ID     uuid.UUID
	Kind   string
	Do     func(ctx context.Context) error
	OnDone func(err error)
}

type Config struct {
	RetryDelay  time.Duration    `yaml:"retry_delay"`
	MaxDelay    time.Duration    `yaml:"max_delay"`
	MaxAttempts int              `yaml:"max_attempts"` // 0 retries temporary failures until stopped
	Retryable   func(error) bool `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		RetryDelay:  time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 0,
		Retryable:   clients.IsTemporary,
	}
}

type Dispatcher struct {
	clock  clockwork.Clock
	config Config

	mu      sync.Mutex
	queue   []Action
	running bool
	stopped bool
	cancel  context.CancelFunc
	wake    chan struct{}
}

func NewDispatcher(clock clockwork.Clock, cfg Config) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Retryable == nil {
		cfg.Retryable = clients.IsTemporary
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = backoff.DefaultMaxInterval
	}
	return &Dispatcher{
		clock:  clock,
		config: cfg,
		wake:   make(chan struct{}, 1),
	}
}

// Submit queues an action without waiting for it to be delivered.
func (d *Dispatcher) Submit(a Action) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		log.Debug().Str("action", a.Kind).Msg("dispatcher stopped, dropping action")
		return
	}
	d.queue = append(d.queue, a)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending is the number of actions not yet delivered, including the one in flight.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Run delivers queued actions one at a time until ctx is done or Stop is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.mu.Unlock()

	defer func() {
		cancel()
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	log.Debug().Msg("action dispatcher started")

	for {
		a, ok := d.head()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-d.wake:
				continue
			}
		}

		err := d.deliverWithRetry(ctx, a)
		if ctx.Err() != nil {
			return nil
		}
		d.pop(a.ID)

		if err != nil {
			log.Error().
				Err(err).
				Str("action_id", a.ID.String()).
				Str("action", a.Kind).
				Msg("failed to deliver action")
		}
		if a.OnDone != nil {
			a.OnDone(err)
		}
	}
}

// Stop cancels delivery and drops anything still queued. Safe to call repeatedly.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if len(d.queue) > 0 {
		log.Info().Int("dropped", len(d.queue)).Msg("action dispatcher stopped with undelivered actions")
	}
	d.queue = nil
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Dispatcher) head() (Action, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return Action{}, false
	}
	return d.queue[0], true
}

func (d *Dispatcher) pop(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) > 0 && d.queue[0].ID == id {
		d.queue = d.queue[1:]
	}
}

func (d *Dispatcher) deliverWithRetry(ctx context.Context, a Action) error {
	var lastErr error
	retry := d.newBackOff()

	for attempt := 1; ; attempt++ {
		err := a.Do(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("action_id", a.ID.String()).
					Str("action", a.Kind).
					Int("attempts", attempt).
					Msg("action delivered after retry")
			}
			return nil
		}
		lastErr = err

		if !d.config.Retryable(err) {
			return err
		}
		if d.config.MaxAttempts > 0 && attempt >= d.config.MaxAttempts {
			return fmt.Errorf("failed after %d attempts: %w", attempt, lastErr)
		}

		delay := retry.NextBackOff()
		log.Warn().
			Err(err).
			Str("action_id", a.ID.String()).
			Str("action", a.Kind).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("failed to deliver action, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.clock.After(delay):
		}
	}
}

func (d *Dispatcher) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval: d.config.RetryDelay,
		Multiplier:      2,
		MaxInterval:     d.config.MaxDelay,
		Clock:           d.clock,
	}
	b.Reset()
	return b
}
