// Package leaderboard persists pitch results and ranks closed deals.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/pitchtank/go/internal/dbconfig"
	"github.com/mcdev12/pitchtank/go/internal/models"
)

var ErrUnknownDriver = errors.New("unknown leaderboard driver")

// Entry is one finished pitch.
type Entry struct {
	ID               string               `json:"id" bson:"_id"`
	UserID           string               `json:"userId,omitempty" bson:"user_id,omitempty"`
	Handle           string               `json:"handle,omitempty" bson:"handle,omitempty"`
	CompanyName      string               `json:"companyName" bson:"company_name"`
	Result           models.OutcomeResult `json:"result" bson:"result"`
	Reason           models.NoDealReason  `json:"reason,omitempty" bson:"reason,omitempty"`
	DealAmount       int64                `json:"dealAmount" bson:"deal_amount"`
	Equity           float64              `json:"equity" bson:"equity"`
	SharkID          string               `json:"sharkId,omitempty" bson:"shark_id,omitempty"`
	PitchSecondsUsed int                  `json:"pitchSecondsUsed" bson:"pitch_seconds_used"`
	CreatedAt        time.Time            `json:"createdAt" bson:"created_at"`
}

// Identity names who pitched. Anonymous pitches carry an empty identity.
type Identity struct {
	UserID string
	Handle string
}

// NewEntry builds the record for a closed session.
func NewEntry(pitch models.PitchData, outcome models.Outcome, pitchSecondsUsed int, who Identity) Entry {
	e := Entry{
		ID:               uuid.NewString(),
		UserID:           who.UserID,
		Handle:           who.Handle,
		CompanyName:      pitch.CompanyName,
		Result:           outcome.Result,
		Reason:           outcome.Reason,
		PitchSecondsUsed: pitchSecondsUsed,
		CreatedAt:        outcome.ClosedAt,
	}
	if outcome.Deal != nil {
		e.DealAmount = outcome.Deal.Amount
		e.Equity = outcome.Deal.EquityPercent
		e.SharkID = outcome.Deal.SharkID
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return e
}

// Store records results and returns the top deals by amount.
type Store interface {
	Record(ctx context.Context, e Entry) error
	Top(ctx context.Context, limit int) ([]Entry, error)
	Close(ctx context.Context) error
}

type Config struct {
	Driver   string `yaml:"driver"` // postgres, mongo, memory or none
	DSN      string `yaml:"dsn"`
	Database string `yaml:"database"`
}

// Open connects the configured store. The "none" driver returns a nil Store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = dbconfig.NewConfigFromEnv().DSN()
		}
		return NewPostgresStore(ctx, dsn)
	case "mongo":
		mc := dbconfig.NewMongoConfigFromEnv()
		if cfg.DSN != "" {
			mc.URI = cfg.DSN
		}
		if cfg.Database != "" {
			mc.Database = cfg.Database
		}
		return NewMongoStore(ctx, mc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
