// Package timer implements the session countdowns: a pitch sub-timer that only
// runs during the pitch phase and an overall session timer.
package timer

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/rs/zerolog/log"
)

const tickInterval = time.Second

// Config holds countdown lengths and pressure thresholds, all in seconds.
type Config struct {
	PitchSeconds  int `yaml:"pitch_seconds"`
	TotalSeconds  int `yaml:"total_seconds"`
	WarningBelow  int `yaml:"warning_below"`
	CriticalBelow int `yaml:"critical_below"`
}

func DefaultConfig() Config {
	return Config{
		PitchSeconds:  180,
		TotalSeconds:  900,
		WarningBelow:  180,
		CriticalBelow: 60,
	}
}

// TickResult reports what a tick expired. Each flag is set at most once per session.
type TickResult struct {
	PitchExpired bool
	TotalExpired bool
}

// Engine is owned by a single goroutine: the owner selects on C() and calls
// Tick for every value received.
type Engine struct {
	clock  clockwork.Clock
	config Config

	pitchRemaining int
	totalRemaining int
	pitchFrozen    bool
	totalExpired   bool

	ticker  clockwork.Ticker
	running bool
	paused  bool
}

func NewEngine(clock clockwork.Clock, config Config) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		clock:          clock,
		config:         config,
		pitchRemaining: config.PitchSeconds,
		totalRemaining: config.TotalSeconds,
	}
}

// Start resets both counters and begins ticking.
func (e *Engine) Start() {
	e.Stop()
	e.pitchRemaining = e.config.PitchSeconds
	e.totalRemaining = e.config.TotalSeconds
	e.pitchFrozen = false
	e.totalExpired = false
	e.paused = false
	e.ticker = e.clock.NewTicker(tickInterval)
	e.running = true

	log.Debug().
		Int("pitch_seconds", e.pitchRemaining).
		Int("total_seconds", e.totalRemaining).
		Msg("session timer started")
}

// C delivers ticks while the engine runs. It returns nil when stopped or
// paused, so a select on it blocks forever instead of firing.
func (e *Engine) C() <-chan time.Time {
	if !e.running || e.paused || e.ticker == nil {
		return nil
	}
	return e.ticker.Chan()
}

// Tick applies one elapsed second. inPitch is whether the session is in the pitch phase.
func (e *Engine) Tick(inPitch bool) TickResult {
	var res TickResult
	if !e.running || e.paused {
		return res
	}

	if inPitch && !e.pitchFrozen && e.pitchRemaining > 0 {
		e.pitchRemaining--
		if e.pitchRemaining == 0 {
			res.PitchExpired = true
		}
	}

	if e.totalRemaining > 0 {
		e.totalRemaining--
	}
	if e.totalRemaining == 0 && !e.totalExpired {
		e.totalExpired = true
		res.TotalExpired = true
	}
	return res
}

// FreezePitch stops the pitch sub-timer at its current value.
func (e *Engine) FreezePitch() {
	e.pitchFrozen = true
}

func (e *Engine) Pause() {
	if !e.running || e.paused {
		return
	}
	e.paused = true
	e.ticker.Stop()
}

func (e *Engine) Resume() {
	if !e.running || !e.paused {
		return
	}
	e.paused = false
	e.ticker = e.clock.NewTicker(tickInterval)
}

// Stop halts ticking. Counters keep their last values. Safe to call repeatedly.
func (e *Engine) Stop() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
	e.running = false
}

func (e *Engine) Running() bool {
	return e.running && !e.paused
}

// Remaining returns the pitch and total seconds left.
func (e *Engine) Remaining() (pitch, total int) {
	return e.pitchRemaining, e.totalRemaining
}

// Pressure derives the urgency level. Outside the pitch phase it is always neutral.
func (e *Engine) Pressure(inPitch bool) models.Pressure {
	if !inPitch {
		return models.PressureNeutral
	}
	switch {
	case e.pitchRemaining < e.config.CriticalBelow:
		return models.PressureCritical
	case e.pitchRemaining < e.config.WarningBelow:
		return models.PressureWarning
	default:
		return models.PressureNeutral
	}
}
