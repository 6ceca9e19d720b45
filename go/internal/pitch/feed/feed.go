// Package feed connects to the live event feed of a session and hands every
// raw event payload, in arrival order, to a delivery callback.
package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	backoff "gopkg.in/cenkalti/backoff.v1"
)

var ErrStreamClosed = errors.New("event stream closed by server")

// Stream is one transport for the live feed. Run blocks until ctx is done,
// returning nil, or until the connection is lost, returning an error.
// deliver is always called from the goroutine running Run.
type Stream interface {
	Name() string
	Run(ctx context.Context, sessionID string, deliver func(raw []byte)) error
}

// StatusFunc reports connectivity changes: true once a (re)connected stream
// delivers its first event, false when a connection drops.
type StatusFunc func(connected bool, err error)

type RetryConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Runner keeps a Stream connected for the lifetime of a session, reconnecting
// with exponential backoff. Consumers must tolerate redelivery after a reconnect.
type Runner struct {
	clock    clockwork.Clock
	stream   Stream
	config   RetryConfig
	onStatus StatusFunc
}

func NewRunner(clock clockwork.Clock, stream Stream, cfg RetryConfig, onStatus StatusFunc) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = backoff.DefaultMaxInterval
	}
	return &Runner{
		clock:    clock,
		stream:   stream,
		config:   cfg,
		onStatus: onStatus,
	}
}

// Run returns nil once ctx is done. Connection errors never escape it.
func (r *Runner) Run(ctx context.Context, sessionID string, deliver func(raw []byte)) error {
	failures := 0
	retry := r.newBackOff()

	for {
		var connected atomic.Bool
		err := r.stream.Run(ctx, sessionID, func(raw []byte) {
			if connected.CompareAndSwap(false, true) {
				failures = 0
				retry.Reset()
				r.status(true, nil)
			}
			deliver(raw)
		})
		if ctx.Err() != nil {
			log.Debug().Str("session_id", sessionID).Str("transport", r.stream.Name()).Msg("event feed stopped")
			return nil
		}
		if err == nil {
			err = ErrStreamClosed
		}

		r.status(false, err)
		failures++
		delay := retry.NextBackOff()

		log.Warn().
			Err(err).
			Str("session_id", sessionID).
			Str("transport", r.stream.Name()).
			Int("failures", failures).
			Dur("retry_in", delay).
			Msg("event feed disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-r.clock.After(delay):
		}
	}
}

func (r *Runner) status(connected bool, err error) {
	if r.onStatus != nil {
		r.onStatus(connected, err)
	}
}

// newBackOff doubles the delay from InitialDelay up to MaxDelay, without
// jitter, and never gives up.
func (r *Runner) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval: r.config.InitialDelay,
		Multiplier:      2,
		MaxInterval:     r.config.MaxDelay,
		Clock:           r.clock,
	}
	b.Reset()
	return b
}
