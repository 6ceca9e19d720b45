package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type scriptedStream struct {
	mu    sync.Mutex
	runs  []func(ctx context.Context, deliver func([]byte)) error
	calls int
}

func (s *scriptedStream) Name() string { return "scripted" }

func (s *scriptedStream) Run(ctx context.Context, _ string, deliver func([]byte)) error {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.mu.Unlock()
	if i >= len(s.runs) {
		<-ctx.Done()
		return nil
	}
	return s.runs[i](ctx, deliver)
}

func TestRunnerReconnectsAndReportsStatus(t *testing.T) {
	clock := clockwork.NewFakeClock()
	stream := &scriptedStream{runs: []func(context.Context, func([]byte)) error{
		func(context.Context, func([]byte)) error { return errors.New("dial refused") },
		func(_ context.Context, deliver func([]byte)) error {
			deliver([]byte("a"))
			deliver([]byte("b"))
			return errors.New("connection reset")
		},
		func(ctx context.Context, deliver func([]byte)) error {
			deliver([]byte("c"))
			<-ctx.Done()
			return nil
		},
	}}

	var mu sync.Mutex
	var statuses []bool
	var got []string
	delivered := make(chan struct{}, 8)

	r := NewRunner(clock, stream, DefaultRetryConfig(), func(connected bool, _ error) {
		mu.Lock()
		statuses = append(statuses, connected)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, "s-1", func(raw []byte) {
			mu.Lock()
			got = append(got, string(raw))
			mu.Unlock()
			delivered <- struct{}{}
		})
	}()

	for i := 0; i < 2; i++ {
		wctx, wcancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := clock.BlockUntilContext(wctx, 1); err != nil {
			wcancel()
			t.Fatalf("runner never backed off (round %d): %v", i, err)
		}
		wcancel()
		clock.Advance(time.Second)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-delivered:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d events delivered", i)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: got %v, want nil", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(got) != "[a b c]" {
		t.Errorf("delivered: got %v, want [a b c]", got)
	}
	if fmt.Sprint(statuses) != "[false true false true]" {
		t.Errorf("statuses: got %v", statuses)
	}
}

func TestRunnerStopsDuringBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	stream := &scriptedStream{runs: []func(context.Context, func([]byte)) error{
		func(context.Context, func([]byte)) error { return errors.New("dial refused") },
	}}
	r := NewRunner(clock, stream, DefaultRetryConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, "s-1", func([]byte) {}) }()

	wctx, wcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer wcancel()
	if err := clock.BlockUntilContext(wctx, 1); err != nil {
		t.Fatalf("runner never backed off: %v", err)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestBackoffCapped(t *testing.T) {
	r := NewRunner(clockwork.NewFakeClock(), nil, RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second}, nil)
	b := r.newBackOff()
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Errorf("failures=%d: got %v, want %v", i+1, got, w)
		}
	}

	b.Reset()
	if got := b.NextBackOff(); got != time.Second {
		t.Errorf("after reset: got %v, want %v", got, time.Second)
	}
}

func TestSSEFeedDeliversEventsInOrder(t *testing.T) {
	authCh := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCh <- r.Header.Get("Authorization")
		if r.URL.Path != "/api/session/s-1/stream" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"type\":\"connected\",\"sessionId\":\"s-1\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"shark_thinking\",\"data\":{\"sharkId\":\"elena\"}}\n\n")
		w.(http.Flusher).Flush()
	}))
	defer srv.Close()

	f := NewSSEFeed(func(id string) string {
		return srv.URL + "/api/session/" + id + "/stream"
	}, map[string]string{"Authorization": "Bearer tok"}, srv.Client())

	var got []string
	err := f.Run(context.Background(), "s-1", func(raw []byte) {
		got = append(got, string(raw))
	})
	if !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Run: got %v, want ErrStreamClosed", err)
	}
	if len(got) != 2 {
		t.Fatalf("events: got %d, want 2 (%v)", len(got), got)
	}
	if got[0] != `{"type":"connected","sessionId":"s-1"}` {
		t.Errorf("first event: %s", got[0])
	}
	if auth := <-authCh; auth != "Bearer tok" {
		t.Errorf("authorization header: got %q", auth)
	}
}

func TestSSEFeedBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Session not found", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewSSEFeed(func(string) string { return srv.URL }, nil, srv.Client())
	if err := f.Run(context.Background(), "gone", func([]byte) {}); err == nil {
		t.Fatal("want error for a 404 stream")
	}
}

func TestJetStreamSubject(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	if got := cfg.Subject("s-1"); got != "pitch.sessions.s-1.events" {
		t.Errorf("subject: got %q", got)
	}
}
