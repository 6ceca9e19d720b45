package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mcdev12/pitchtank/go/internal/leaderboard"
	"github.com/mcdev12/pitchtank/go/internal/models"
)

const defaultSeedFile = "go/internal/assets/leaderboard.json"

// seedResult mirrors the JSON snapshot of past pitches.
type seedResult struct {
	ID               string  `json:"id"`
	Handle           string  `json:"handle"`
	CompanyName      string  `json:"company_name"`
	Result           string  `json:"result"`
	Reason           string  `json:"reason"`
	DealAmount       int64   `json:"deal_amount"`
	Equity           float64 `json:"equity"`
	SharkID          string  `json:"shark_id"`
	PitchSecondsUsed int     `json:"pitch_seconds_used"`
	CreatedAt        string  `json:"created_at"`
}

func (r seedResult) entry() (leaderboard.Entry, error) {
	created := time.Now()
	if r.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, r.CreatedAt)
		if err != nil {
			return leaderboard.Entry{}, fmt.Errorf("created_at %q: %w", r.CreatedAt, err)
		}
		created = t
	}
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	return leaderboard.Entry{
		ID:               id,
		Handle:           r.Handle,
		CompanyName:      r.CompanyName,
		Result:           models.OutcomeResult(r.Result),
		Reason:           models.NoDealReason(r.Reason),
		DealAmount:       r.DealAmount,
		Equity:           r.Equity,
		SharkID:          r.SharkID,
		PitchSecondsUsed: r.PitchSecondsUsed,
		CreatedAt:        created,
	}, nil
}

func main() {
	_ = godotenv.Load()

	path := defaultSeedFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the JSON snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var results []seedResult
	if err := json.Unmarshal(data, &results); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to the configured store
	cfg := leaderboard.Config{
		Driver:   os.Getenv("LEADERBOARD_DRIVER"),
		DSN:      os.Getenv("LEADERBOARD_DSN"),
		Database: os.Getenv("LEADERBOARD_DATABASE"),
	}
	if cfg.Driver == "" {
		cfg.Driver = "postgres"
	}
	ctx := context.Background()
	store, err := leaderboard.Open(ctx, cfg)
	if err != nil || store == nil {
		fmt.Fprintf(os.Stderr, "failed to open %s leaderboard: %v\n", cfg.Driver, err)
		os.Exit(1)
	}
	defer store.Close(ctx)

	// 3) Record and count
	var (
		total    = len(results)
		inserted int
		errs     int
	)
	for _, r := range results {
		e, err := r.entry()
		if err == nil {
			err = store.Record(ctx, e)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error recording %s: %v\n", r.CompanyName, err)
			errs++
			continue
		}
		inserted++
	}

	// 4) Print summary
	fmt.Printf(
		"Leaderboard seed complete: %d total, %d recorded, %d errors\n",
		total, inserted, errs,
	)
}
