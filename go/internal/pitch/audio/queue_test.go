package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pitchtank/go/internal/models"
)

type gatedPlayer struct {
	mu        sync.Mutex
	active    int
	maxActive int
	release   chan struct{}
	failIDs   map[string]bool
}

func newGatedPlayer() *gatedPlayer {
	return &gatedPlayer{release: make(chan struct{}), failIDs: map[string]bool{}}
}

func (p *gatedPlayer) Play(ctx context.Context, clip models.Clip) error {
	p.mu.Lock()
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	fail := p.failIDs[clip.ID]
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	if fail {
		return errors.New("unsupported format")
	}
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recordingHooks(events chan<- string) Hooks {
	return Hooks{
		OnStart:  func(c models.Clip) { events <- "start:" + c.ID },
		OnFinish: func(c models.Clip, _ error) { events <- "finish:" + c.ID },
	}
}

func next(t *testing.T, events <-chan string) string {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for playback event")
		return ""
	}
}

func TestQueuePlaysInOrderWithoutOverlap(t *testing.T) {
	player := newGatedPlayer()
	events := make(chan string, 16)
	q := NewQueue(player, recordingHooks(events))

	q.Enqueue(models.Clip{ID: "c1", SpeakerID: "marcus_kellan", Payload: []byte{1}})
	q.Enqueue(models.Clip{ID: "c2", SpeakerID: "elena_brooks", Payload: []byte{2}})
	q.Enqueue(models.Clip{ID: "c3", SpeakerID: "victor_slate", Payload: []byte{3}})

	if got := next(t, events); got != "start:c1" {
		t.Fatalf("first event: got %q, want start:c1", got)
	}
	if got := q.Len(); got != 2 {
		t.Errorf("pending: got %d, want 2", got)
	}
	if playing, ok := q.Playing(); !ok || playing.ID != "c1" {
		t.Errorf("playing: got %+v ok=%v, want c1", playing, ok)
	}

	want := []string{"finish:c1", "start:c2", "finish:c2", "start:c3", "finish:c3"}
	var got []string
	for i := 0; i < 3; i++ {
		player.release <- struct{}{}
		got = append(got, next(t, events))
		if i < 2 {
			got = append(got, next(t, events))
		}
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got %q, want %q (all: %v)", i, got[i], want[i], got)
		}
	}

	q.Wait()
	if player.maxActive != 1 {
		t.Errorf("max concurrent clips: got %d, want 1", player.maxActive)
	}
	if !q.Idle() {
		t.Error("queue should be idle after the last clip")
	}
}

func TestSpeakingClearedAtEndOfClip(t *testing.T) {
	player := newGatedPlayer()
	var mu sync.Mutex
	speaking := map[string]bool{}
	finished := make(chan struct{}, 4)

	q := NewQueue(player, Hooks{
		OnStart: func(c models.Clip) {
			mu.Lock()
			speaking[c.SpeakerID] = true
			mu.Unlock()
		},
		OnFinish: func(c models.Clip, _ error) {
			mu.Lock()
			delete(speaking, c.SpeakerID)
			mu.Unlock()
			finished <- struct{}{}
		},
	})

	q.Enqueue(models.Clip{ID: "c1", SpeakerID: "daniel_frost"})
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		on := speaking["daniel_frost"]
		mu.Unlock()
		if on {
			break
		}
		select {
		case <-deadline:
			t.Fatal("speaking indicator never set")
		case <-time.After(5 * time.Millisecond):
		}
	}

	player.release <- struct{}{}
	<-finished
	mu.Lock()
	defer mu.Unlock()
	if speaking["daniel_frost"] {
		t.Error("speaking indicator still set after clip finished")
	}
}

func TestClipEnqueuedDuringFinishWaitsForIt(t *testing.T) {
	player := newGatedPlayer()
	events := make(chan string, 8)
	gate := make(chan struct{})

	q := NewQueue(player, Hooks{
		OnStart: func(c models.Clip) { events <- "start:" + c.ID },
		OnFinish: func(c models.Clip, _ error) {
			events <- "finishing:" + c.ID
			<-gate
			events <- "finish:" + c.ID
		},
	})

	q.Enqueue(models.Clip{ID: "c1", SpeakerID: "marcus_kellan"})
	if got := next(t, events); got != "start:c1" {
		t.Fatalf("first event: got %q, want start:c1", got)
	}
	player.release <- struct{}{}
	if got := next(t, events); got != "finishing:c1" {
		t.Fatalf("second event: got %q, want finishing:c1", got)
	}

	q.Enqueue(models.Clip{ID: "c2", SpeakerID: "elena_brooks"})
	if q.Idle() {
		t.Error("queue reported idle while a clip was finishing")
	}
	select {
	case e := <-events:
		t.Fatalf("got %q while c1 was still finishing", e)
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	want := []string{"finish:c1", "start:c2"}
	for _, w := range want {
		if got := next(t, events); got != w {
			t.Fatalf("event: got %q, want %q", got, w)
		}
	}
	q.Stop()
	q.Wait()
}

func TestPlaybackErrorDoesNotStall(t *testing.T) {
	player := newGatedPlayer()
	player.failIDs["bad"] = true
	events := make(chan string, 8)
	q := NewQueue(player, recordingHooks(events))

	q.Enqueue(models.Clip{ID: "bad", SpeakerID: "richard_hale"})
	q.Enqueue(models.Clip{ID: "good", SpeakerID: "richard_hale"})

	want := []string{"start:bad", "finish:bad", "start:good"}
	for _, w := range want {
		if got := next(t, events); got != w {
			t.Fatalf("got %q, want %q", got, w)
		}
	}
	player.release <- struct{}{}
	if got := next(t, events); got != "finish:good" {
		t.Fatalf("got %q, want finish:good", got)
	}
}

func TestStopCancelsAndDrops(t *testing.T) {
	player := newGatedPlayer()
	events := make(chan string, 8)
	q := NewQueue(player, recordingHooks(events))

	q.Enqueue(models.Clip{ID: "c1"})
	q.Enqueue(models.Clip{ID: "c2"})
	if got := next(t, events); got != "start:c1" {
		t.Fatalf("got %q, want start:c1", got)
	}

	q.Stop()
	q.Stop()
	q.Wait()

	q.Enqueue(models.Clip{ID: "c3"})
	select {
	case e := <-events:
		t.Fatalf("unexpected event after stop: %s", e)
	case <-time.After(50 * time.Millisecond):
	}
	if !q.Idle() {
		t.Error("stopped queue should be idle")
	}
}

func TestNullPlayerHoldsForDuration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NullPlayer{Clock: clock}

	done := make(chan error, 1)
	go func() {
		done <- p.Play(context.Background(), models.Clip{ID: "c1", Duration: 3 * time.Second})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("player never waited on the clock: %v", err)
	}
	select {
	case <-done:
		t.Fatal("player returned before the clip duration elapsed")
	default:
	}

	clock.Advance(3 * time.Second)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("player did not return after the clip duration")
	}
}

func TestLoadCueBlankPath(t *testing.T) {
	_, ok, err := LoadCue("", "system")
	if err != nil || ok {
		t.Errorf("blank cue: got ok=%v err=%v, want ok=false err=nil", ok, err)
	}
}
