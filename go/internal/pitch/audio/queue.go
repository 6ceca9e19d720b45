// Package audio plays synthesized speech clips one at a time, in arrival order.
package audio

import (
	"context"
	"sync"

	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Player renders one clip and returns when playback ends or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, clip models.Clip) error
}

// Hooks are invoked from the playback goroutine. OnFinish runs before the next
// clip's OnStart. Neither runs after Stop.
type Hooks struct {
	OnStart  func(clip models.Clip)
	OnFinish func(clip models.Clip, err error)
}

// Queue is a FIFO of clips with a single playing slot.
type Queue struct {
	player Player
	hooks  Hooks

	mu      sync.Mutex
	pending []models.Clip
	playing *models.Clip
	// finishing holds the playing slot while OnFinish runs.
	finishing bool
	cancel    context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func NewQueue(player Player, hooks Hooks) *Queue {
	return &Queue{
		player: player,
		hooks:  hooks,
	}
}

// Enqueue appends a clip and starts it right away if the queue is idle.
// The queue owns the clip's payload from here on.
func (q *Queue) Enqueue(clip models.Clip) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		log.Debug().Str("clip_id", clip.ID).Msg("audio queue stopped, dropping clip")
		return
	}
	q.pending = append(q.pending, clip)
	q.startNextLocked()
}

// Playing returns the clip currently in the playing slot.
func (q *Queue) Playing() (models.Clip, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.playing == nil {
		return models.Clip{}, false
	}
	return *q.playing, true
}

// Len is the number of clips waiting behind the playing one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Idle reports whether nothing is playing or waiting.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing == nil && !q.finishing && len(q.pending) == 0
}

// Stop cancels the playing clip and drops everything queued. It does not wait
// for the player to return, so it is safe to call from a hook's consumer.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return
	}
	q.stopped = true
	for i := range q.pending {
		q.pending[i].Payload = nil
	}
	q.pending = nil
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
}

// Wait blocks until the playback goroutine has exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) startNextLocked() {
	if q.playing != nil || q.finishing || q.stopped || len(q.pending) == 0 {
		return
	}

	clip := q.pending[0]
	q.pending[0] = models.Clip{}
	q.pending = q.pending[1:]
	q.playing = &clip

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	q.wg.Add(1)
	go q.play(ctx, clip)
}

func (q *Queue) play(ctx context.Context, clip models.Clip) {
	defer q.wg.Done()

	if q.hooks.OnStart != nil {
		q.hooks.OnStart(clip)
	}

	err := q.player.Play(ctx, clip)
	if err != nil && ctx.Err() == nil {
		log.Warn().
			Err(err).
			Str("clip_id", clip.ID).
			Str("speaker_id", clip.SpeakerID).
			Msg("audio playback failed, continuing")
	}
	clip.Payload = nil

	q.mu.Lock()
	stopped := q.stopped
	q.playing = nil
	q.finishing = !stopped
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.mu.Unlock()

	if stopped {
		return
	}
	if q.hooks.OnFinish != nil {
		q.hooks.OnFinish(clip, err)
	}

	q.mu.Lock()
	q.finishing = false
	q.startNextLocked()
	q.mu.Unlock()
}
