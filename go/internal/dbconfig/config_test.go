package dbconfig

import "testing"

func TestDSNFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_USER", "tank")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "")
	t.Setenv("DB_SSLMODE", "")

	got := NewConfigFromEnv().DSN()
	want := "postgres://tank:pw@db.internal:6543/pitchtank?sslmode=disable"
	if got != want {
		t.Errorf("DSN: got %q, want %q", got, want)
	}
}

func TestBadPortFallsBack(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	if got := NewConfigFromEnv().Port; got != 5432 {
		t.Errorf("port: got %d, want 5432", got)
	}
}

func TestMongoDefaults(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	t.Setenv("MONGODB_DATABASE", "")
	cfg := NewMongoConfigFromEnv()
	if cfg.URI != "mongodb://localhost:27017" || cfg.Database != "pitchtank" {
		t.Errorf("mongo config: %+v", cfg)
	}
}
