package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamConfig holds configuration for the JetStream transport.
type JetStreamConfig struct {
	URL           string        `yaml:"url"`
	StreamName    string        `yaml:"stream"`
	SubjectPrefix string        `yaml:"subject_prefix"` // events for session X live on <prefix>.X.events
	AckWait       time.Duration `yaml:"ack_wait"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "PITCH_EVENTS",
		SubjectPrefix: "pitch.sessions",
		AckWait:       30 * time.Second,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Subject is the per-session subject events are published on.
func (c JetStreamConfig) Subject(sessionID string) string {
	return strings.Join([]string{c.SubjectPrefix, sessionID, "events"}, ".")
}

// NATSFeed consumes a session's events from JetStream with an ephemeral
// consumer. After a reconnect it resumes from the last stream sequence seen.
type NATSFeed struct {
	config  JetStreamConfig
	lastSeq uint64
}

func NewNATSFeed(config JetStreamConfig) *NATSFeed {
	return &NATSFeed{config: config}
}

func (f *NATSFeed) Name() string { return "nats" }

func (f *NATSFeed) Run(ctx context.Context, sessionID string, deliver func(raw []byte)) error {
	closed := make(chan struct{})
	opts := []nats.Option{
		nats.Name("pitchtank-" + sessionID),
		nats.MaxReconnects(f.config.MaxReconnects),
		nats.ReconnectWait(f.config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Str("session_id", sessionID).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Str("session_id", sessionID).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			close(closed)
		}),
	}

	nc, err := nats.Connect(f.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	consumer, err := f.createConsumer(ctx, js, sessionID)
	if err != nil {
		return err
	}

	messageCh := make(chan jetstream.Msg, 100)
	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	log.Info().
		Str("session_id", sessionID).
		Str("stream", f.config.StreamName).
		Uint64("resume_after", f.lastSeq).
		Msg("consuming session events from JetStream")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return fmt.Errorf("NATS connection closed: %w", ErrStreamClosed)
		case msg := <-messageCh:
			if meta, err := msg.Metadata(); err == nil {
				f.lastSeq = meta.Sequence.Stream
			}
			deliver(msg.Data())
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

func (f *NATSFeed) createConsumer(ctx context.Context, js jetstream.JetStream, sessionID string) (jetstream.Consumer, error) {
	stream, err := js.Stream(ctx, f.config.StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}

	cfg := jetstream.ConsumerConfig{
		Description:       "pitchtank session " + sessionID,
		FilterSubject:     f.config.Subject(sessionID),
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		AckWait:           f.config.AckWait,
		ReplayPolicy:      jetstream.ReplayInstantPolicy,
		InactiveThreshold: time.Minute,
	}
	if f.lastSeq > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = f.lastSeq + 1
	}

	consumer, err := stream.CreateConsumer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	return consumer, nil
}
