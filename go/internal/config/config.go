// Package config loads pitchtank.yaml and layers environment variables on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/pitchtank/go/internal/leaderboard"
	"github.com/mcdev12/pitchtank/go/internal/pitch/feed"
	"github.com/mcdev12/pitchtank/go/internal/pitch/session"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "pitchtank.yaml"

// Transport selects how panel replies reach the client.
type Transport string

const (
	TransportSSE  Transport = "sse"
	TransportNATS Transport = "nats"
	TransportREST Transport = "rest"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Backend     BackendConfig        `yaml:"backend"`
	NATS        feed.JetStreamConfig `yaml:"nats"`
	Session     session.Config       `yaml:"session"`
	Audio       AudioConfig          `yaml:"audio"`
	Leaderboard leaderboard.Config   `yaml:"leaderboard"`
	Bridge      BridgeConfig         `yaml:"bridge"`
	Identity    IdentityConfig       `yaml:"identity"`
	Log         LogConfig            `yaml:"log"`
}

// BackendConfig points at the session backend. An empty URL runs offline.
type BackendConfig struct {
	URL       string        `yaml:"url"`
	Transport Transport     `yaml:"transport"`
	Timeout   time.Duration `yaml:"timeout"`
}

type AudioConfig struct {
	PlayerCommand   string `yaml:"player_command"`   // {file} is replaced by the clip path
	RecorderCommand string `yaml:"recorder_command"` // {file} is replaced by the output path
	Disabled        bool   `yaml:"disabled"`
}

type BridgeConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// IdentityConfig carries the signed-in user's token. Secret, when set,
// verifies the token signature.
type IdentityConfig struct {
	Token  string `yaml:"token"`
	Secret string `yaml:"secret"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Transport: TransportSSE,
			Timeout:   30 * time.Second,
		},
		NATS:    feed.DefaultJetStreamConfig(),
		Session: session.DefaultConfig(),
		Audio: AudioConfig{
			PlayerCommand:   "ffplay -nodisp -autoexit -loglevel quiet {file}",
			RecorderCommand: "ffmpeg -loglevel quiet -f avfoundation -i :0 -y {file}",
		},
		Leaderboard: leaderboard.Config{Driver: "none"},
		Bridge: BridgeConfig{
			Addr:           ":8787",
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. A missing file is only an error when required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Backend.URL = getEnv("PITCHTANK_BACKEND_URL", c.Backend.URL)
	c.Backend.Transport = Transport(strings.ToLower(getEnv("PITCHTANK_TRANSPORT", string(c.Backend.Transport))))
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.StreamName = getEnv("NATS_STREAM", c.NATS.StreamName)

	c.Session.Timer.PitchSeconds = getEnvAsInt("PITCHTANK_PITCH_SECONDS", c.Session.Timer.PitchSeconds)
	c.Session.Timer.TotalSeconds = getEnvAsInt("PITCHTANK_TOTAL_SECONDS", c.Session.Timer.TotalSeconds)
	c.Session.DealCue = getEnv("PITCHTANK_DEAL_CUE", c.Session.DealCue)
	c.Session.NoDealCue = getEnv("PITCHTANK_NO_DEAL_CUE", c.Session.NoDealCue)

	c.Audio.PlayerCommand = getEnv("PITCHTANK_AUDIO_PLAYER", c.Audio.PlayerCommand)
	c.Audio.RecorderCommand = getEnv("PITCHTANK_RECORDER", c.Audio.RecorderCommand)

	c.Leaderboard.Driver = getEnv("LEADERBOARD_DRIVER", c.Leaderboard.Driver)
	c.Leaderboard.DSN = getEnv("LEADERBOARD_DSN", c.Leaderboard.DSN)

	c.Bridge.Addr = getEnv("PITCHTANK_BRIDGE_ADDR", c.Bridge.Addr)
	c.Identity.Token = getEnv("PITCHTANK_TOKEN", c.Identity.Token)
	c.Identity.Secret = getEnv("PITCHTANK_TOKEN_SECRET", c.Identity.Secret)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
}

// Validate rejects settings the session cannot run with.
func (c *Config) Validate() error {
	switch c.Backend.Transport {
	case TransportSSE, TransportNATS, TransportREST:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Backend.Transport)
	}
	t := c.Session.Timer
	if t.PitchSeconds <= 0 || t.TotalSeconds <= 0 {
		return fmt.Errorf("%w: timers must be positive", ErrInvalid)
	}
	if t.PitchSeconds > t.TotalSeconds {
		return fmt.Errorf("%w: pitch time %ds exceeds session time %ds", ErrInvalid, t.PitchSeconds, t.TotalSeconds)
	}
	if t.CriticalBelow > t.WarningBelow {
		return fmt.Errorf("%w: critical threshold above warning threshold", ErrInvalid)
	}
	if len(c.Session.Roster) == 0 {
		return fmt.Errorf("%w: roster is empty", ErrInvalid)
	}
	seen := make(map[string]bool)
	for _, p := range c.Session.Roster {
		if p.ID == "" || seen[p.ID] {
			return fmt.Errorf("%w: roster ids must be unique and non-empty", ErrInvalid)
		}
		seen[p.ID] = true
	}
	return nil
}

// Offline reports whether no backend is configured.
func (c *Config) Offline() bool {
	return c.Backend.URL == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
