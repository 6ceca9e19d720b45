package main

import (
	"context"
	"errors"

	"github.com/mcdev12/pitchtank/go/clients/pitchtank_client"
	"github.com/mcdev12/pitchtank/go/internal/config"
	"github.com/mcdev12/pitchtank/go/internal/leaderboard"
	"github.com/mcdev12/pitchtank/go/internal/pitch/audio"
	"github.com/mcdev12/pitchtank/go/internal/pitch/capture"
	"github.com/mcdev12/pitchtank/go/internal/pitch/feed"
	"github.com/mcdev12/pitchtank/go/internal/pitch/session"
	"github.com/rs/zerolog/log"
)

// setupController builds a session controller from cfg. Optional
// collaborators that fail to initialize are left out with a warning so a
// session can still run.
func setupController(ctx context.Context, cfg *config.Config) (*session.Controller, leaderboard.Store) {
	deps := session.Deps{
		Identity: setupIdentity(cfg.Identity),
	}

	if cfg.Offline() {
		log.Warn().Msg("no backend configured, running offline")
	} else {
		client := newBackendClient(cfg)
		deps.Backend = client
		deps.Stream = setupStream(cfg, client)
	}

	if !cfg.Audio.Disabled {
		if player, err := audio.NewExecPlayer(cfg.Audio.PlayerCommand); err != nil {
			log.Warn().Err(err).Msg("audio playback unavailable, clips will be skipped")
		} else {
			deps.Player = player
		}
		if recorder, err := capture.NewExecRecorder(cfg.Audio.RecorderCommand); err != nil {
			log.Info().Err(err).Msg("voice input unavailable, text only")
		} else {
			deps.Recorder = recorder
		}
	}

	store, err := leaderboard.Open(ctx, cfg.Leaderboard)
	if err != nil {
		log.Warn().Err(err).Str("driver", cfg.Leaderboard.Driver).Msg("leaderboard unavailable, results will not be recorded")
		store = nil
	}
	deps.Store = store

	log.Info().
		Str("backend", cfg.Backend.URL).
		Str("transport", string(cfg.Backend.Transport)).
		Str("leaderboard", cfg.Leaderboard.Driver).
		Int("pitch_seconds", cfg.Session.Timer.PitchSeconds).
		Int("total_seconds", cfg.Session.Timer.TotalSeconds).
		Msg("session configured")

	return session.New(cfg.Session, deps), store
}

func newBackendClient(cfg *config.Config) *pitchtank_client.PitchTankClient {
	client := pitchtank_client.NewPitchTankClient(cfg.Backend.URL, cfg.Identity.Token)
	if cfg.Backend.Timeout > 0 {
		client.SetTimeout(cfg.Backend.Timeout)
	}
	return client
}

// requireBackend builds a client for commands that cannot run offline.
func requireBackend(cfg *config.Config) (*pitchtank_client.PitchTankClient, error) {
	if cfg.Offline() {
		return nil, errors.New("no backend configured, set backend.url or PITCHTANK_BACKEND_URL")
	}
	return newBackendClient(cfg), nil
}

func setupStream(cfg *config.Config, client *pitchtank_client.PitchTankClient) feed.Stream {
	switch cfg.Backend.Transport {
	case config.TransportNATS:
		return feed.NewNATSFeed(cfg.NATS)
	case config.TransportREST:
		return nil
	default:
		headers := map[string]string{}
		if cfg.Identity.Token != "" {
			headers[pitchtank_client.AuthorizationHeader] = "Bearer " + cfg.Identity.Token
		}
		return feed.NewSSEFeed(client.StreamURL, headers, nil)
	}
}

func setupIdentity(cfg config.IdentityConfig) leaderboard.Identity {
	if cfg.Token == "" {
		return leaderboard.Identity{}
	}
	claims, err := pitchtank_client.ParseIdentity(cfg.Token, []byte(cfg.Secret))
	if err != nil {
		log.Warn().Err(err).Msg("ignoring identity token")
		return leaderboard.Identity{}
	}
	return leaderboard.Identity{UserID: claims.UID(), Handle: claims.TwitterHandle}
}

func closeStore(store leaderboard.Store) {
	if store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		log.Error().Err(err).Msg("failed to close leaderboard")
	}
}

