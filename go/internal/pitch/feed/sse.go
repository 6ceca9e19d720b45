package feed

import (
	"context"
	"fmt"
	"net/http"

	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog/log"
	backoff "gopkg.in/cenkalti/backoff.v1"
)

// SSEFeed reads the session's server-sent event stream.
type SSEFeed struct {
	urlFor  func(sessionID string) string
	headers map[string]string
	client  *http.Client
}

// NewSSEFeed builds a feed that subscribes to urlFor(sessionID). headers are
// sent with every connection attempt.
func NewSSEFeed(urlFor func(sessionID string) string, headers map[string]string, client *http.Client) *SSEFeed {
	if client == nil {
		client = &http.Client{}
	}
	return &SSEFeed{
		urlFor:  urlFor,
		headers: headers,
		client:  client,
	}
}

func (f *SSEFeed) Name() string { return "sse" }

func (f *SSEFeed) Run(ctx context.Context, sessionID string, deliver func(raw []byte)) error {
	url := f.urlFor(sessionID)
	client := sse.NewClient(url)
	client.Connection = f.client
	// Reconnects are owned by Runner.
	client.ReconnectStrategy = &backoff.StopBackOff{}
	for k, v := range f.headers {
		client.Headers[k] = v
	}

	log.Info().Str("session_id", sessionID).Str("url", url).Msg("subscribing to event stream")

	err := client.SubscribeRawWithContext(ctx, func(ev *sse.Event) {
		if len(ev.Data) == 0 {
			return
		}
		raw := make([]byte, len(ev.Data))
		copy(raw, ev.Data)
		deliver(raw)
	})
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sse subscribe: %w", err)
	}
	return ErrStreamClosed
}
