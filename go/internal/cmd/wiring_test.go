package main

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mcdev12/pitchtank/go/clients/pitchtank_client"
	"github.com/mcdev12/pitchtank/go/internal/config"
	"github.com/mcdev12/pitchtank/go/internal/pitch/feed"
)

func TestSetupStreamFollowsTransport(t *testing.T) {
	client := pitchtank_client.NewPitchTankClient("http://localhost:8000", "")
	cfg := config.Default()

	cfg.Backend.Transport = config.TransportSSE
	if _, ok := setupStream(cfg, client).(*feed.SSEFeed); !ok {
		t.Errorf("sse transport did not build an SSE feed")
	}

	cfg.Backend.Transport = config.TransportNATS
	if _, ok := setupStream(cfg, client).(*feed.NATSFeed); !ok {
		t.Errorf("nats transport did not build a NATS feed")
	}

	cfg.Backend.Transport = config.TransportREST
	if s := setupStream(cfg, client); s != nil {
		t.Errorf("rest transport built %T, want nil", s)
	}
}

func TestSetupIdentity(t *testing.T) {
	secret := []byte("test-secret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, pitchtank_client.IdentityClaims{
		UserID:        "u-42",
		TwitterHandle: "@founder",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	who := setupIdentity(config.IdentityConfig{Token: token, Secret: string(secret)})
	if who.UserID != "u-42" || who.Handle != "@founder" {
		t.Errorf("identity = %+v, want u-42 @founder", who)
	}

	who = setupIdentity(config.IdentityConfig{Token: token, Secret: "wrong"})
	if who.UserID != "" {
		t.Errorf("bad signature accepted: %+v", who)
	}

	if who := setupIdentity(config.IdentityConfig{}); who.UserID != "" || who.Handle != "" {
		t.Errorf("empty token produced %+v", who)
	}
}

func TestSetupControllerOffline(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.Disabled = true
	cfg.Leaderboard.Driver = "memory"

	controller, store := setupController(context.Background(), cfg)
	if controller == nil {
		t.Fatal("expected a controller")
	}
	if store == nil {
		t.Fatal("expected the memory leaderboard")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- controller.Run(ctx) }()

	s, err := controller.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !s.Offline {
		t.Errorf("Offline = false, want true without a backend")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("controller did not stop")
	}
}
