package actions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pitchtank/go/clients"
)

func waitDone(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for action result")
		return nil
	}
}

func TestDeliversInOrder(t *testing.T) {
	d := NewDispatcher(clockwork.NewFakeClock(), DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	var mu sync.Mutex
	var order []string
	done := make(chan error, 3)
	for _, name := range []string{"pitch_complete", "user_message", "offer_response"} {
		name := name
		d.Submit(Action{
			Kind: name,
			Do: func(context.Context) error {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return nil
			},
			OnDone: func(err error) { done <- err },
		})
	}
	for i := 0; i < 3; i++ {
		if err := waitDone(t, done); err != nil {
			t.Fatalf("action %d: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"pitch_complete", "user_message", "offer_response"}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d]: got %q, want %q", i, order[i], want[i])
		}
	}
}

func TestRetriesTemporaryFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewDispatcher(clock, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	attempts := 0
	done := make(chan error, 1)
	d.Submit(Action{
		Kind: "user_message",
		Do: func(context.Context) error {
			attempts++
			if attempts < 3 {
				return &clients.StatusError{StatusCode: 503}
			}
			return nil
		},
		OnDone: func(err error) { done <- err },
	})

	for _, step := range []time.Duration{time.Second, 2 * time.Second} {
		wctx, wcancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := clock.BlockUntilContext(wctx, 1); err != nil {
			wcancel()
			t.Fatalf("dispatcher never waited to retry: %v", err)
		}
		wcancel()
		if d.Pending() != 1 {
			t.Errorf("action should stay buffered while retrying, pending=%d", d.Pending())
		}
		clock.Advance(step)
	}

	if err := waitDone(t, done); err != nil {
		t.Fatalf("want success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts: got %d, want 3", attempts)
	}
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	d := NewDispatcher(clockwork.NewFakeClock(), DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	done := make(chan error, 2)
	d.Submit(Action{
		Kind:   "offer_response",
		Do:     func(context.Context) error { return &clients.StatusError{StatusCode: 404} },
		OnDone: func(err error) { done <- err },
	})
	d.Submit(Action{
		Kind:   "user_message",
		Do:     func(context.Context) error { return nil },
		OnDone: func(err error) { done <- err },
	})

	var se *clients.StatusError
	if err := waitDone(t, done); !errors.As(err, &se) {
		t.Fatalf("first action: got %v, want StatusError", err)
	}
	if err := waitDone(t, done); err != nil {
		t.Errorf("second action should still be delivered: %v", err)
	}
}

func TestMaxAttempts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := DefaultConfig()
	cfg.MaxAttempts = 2
	d := NewDispatcher(clock, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	done := make(chan error, 1)
	d.Submit(Action{
		Kind:   "transcribe",
		Do:     func(context.Context) error { return errors.New("connection refused") },
		OnDone: func(err error) { done <- err },
	})

	wctx, wcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer wcancel()
	if err := clock.BlockUntilContext(wctx, 1); err != nil {
		t.Fatalf("dispatcher never waited to retry: %v", err)
	}
	clock.Advance(time.Second)

	if err := waitDone(t, done); err == nil {
		t.Fatal("want error after max attempts")
	}
}

func TestStopDropsQueue(t *testing.T) {
	d := NewDispatcher(clockwork.NewFakeClock(), DefaultConfig())
	d.Submit(Action{Kind: "a", Do: func(context.Context) error { return nil }})
	d.Stop()
	d.Stop()

	if d.Pending() != 0 {
		t.Errorf("pending after stop: %d", d.Pending())
	}
	d.Submit(Action{Kind: "b", Do: func(context.Context) error { return nil }})
	if d.Pending() != 0 {
		t.Error("submit after stop should be dropped")
	}
	if err := d.Run(context.Background()); err != nil {
		t.Errorf("run after stop: %v", err)
	}
}

func TestBackoffCapped(t *testing.T) {
	d := NewDispatcher(clockwork.NewFakeClock(), Config{RetryDelay: time.Second, MaxDelay: 5 * time.Second})
	b := d.newBackOff()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Errorf("attempt %d: got %v, want %v", i+1, got, w)
		}
	}
}
