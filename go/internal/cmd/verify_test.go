package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mcdev12/pitchtank/go/clients/pitchtank_client"
	"github.com/mcdev12/pitchtank/go/internal/config"
	"github.com/mcdev12/pitchtank/go/internal/models"
)

func TestRequireBackendOffline(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.URL = ""
	if _, err := requireBackend(cfg); err == nil {
		t.Error("requireBackend without a URL should fail")
	}

	cfg.Backend.URL = "http://localhost:8000"
	client, err := requireBackend(cfg)
	if err != nil || client.BaseURL() != "http://localhost:8000" {
		t.Errorf("requireBackend = %v, %v; want a client for localhost:8000", client, err)
	}
}

func TestRemoteLeaderboardForUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/leaderboard/user/uid-42" {
			t.Errorf("path = %q, want the per-user lookup", r.URL.Path)
		}
		w.Write([]byte(`{"entry":{"id":"p1","userId":"uid-42","userTwitterHandle":"founder",
			"pitchData":{"companyName":"SockCo"},"outcome":{"result":"deal","dealAmount":400000,"equity":15},
			"verification":{"type":"trustmrr","verified":true}}}`))
	}))
	defer srv.Close()

	leaderboardUser = "uid-42"
	defer func() { leaderboardUser = "" }()

	var out bytes.Buffer
	client := pitchtank_client.NewPitchTankClient(srv.URL, "")
	if err := runRemoteLeaderboard(context.Background(), client, &out); err != nil {
		t.Fatalf("runRemoteLeaderboard: %v", err)
	}
	for _, want := range []string{"SockCo", "deal", "$400000", "15%", "founder", "trustmrr"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestPrintRemoteLeaderboardEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := printRemoteLeaderboard(&out, nil); err != nil {
		t.Fatalf("printRemoteLeaderboard: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "No pitches yet." {
		t.Errorf("output = %q, want No pitches yet.", got)
	}
}

func TestPrintVerification(t *testing.T) {
	var out bytes.Buffer
	v := &models.Verification{
		Type:         models.VerificationDeFi,
		Level:        "claimed",
		Name:         "SockSwap",
		PrimaryLabel: "30d Fees",
		PrimaryValue: 41000,
		Message:      "Claimed: Protocol has no Twitter on DefiLlama",
	}
	if err := printVerification(&out, v); err != nil {
		t.Fatalf("printVerification: %v", err)
	}
	for _, want := range []string{"defi not verified (claimed)", "SockSwap", "30d Fees: $41000", "no Twitter"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestPrintVerificationStatus(t *testing.T) {
	var out bytes.Buffer
	st := &pitchtank_client.VerificationStatus{
		Verified: true,
		Verifications: map[string]map[string]any{
			"trustmrr": {"verifiedAt": 1},
			"defi":     {"verifiedAt": 2},
		},
	}
	if err := printVerificationStatus(&out, st); err != nil {
		t.Fatalf("printVerificationStatus: %v", err)
	}
	if got, want := out.String(), "defi verified\ntrustmrr verified\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
