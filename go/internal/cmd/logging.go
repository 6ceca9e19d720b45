package main

import (
	"io"
	"os"

	"github.com/mcdev12/pitchtank/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultTUILogFile = "pitchtank.log"

// setupLogging points the global logger at the console, or at a rotating file
// when one is configured. The full-screen UI owns the terminal, so it always
// logs to a file.
func setupLogging(cfg config.LogConfig, ownsTerminal bool) io.Closer {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	file := cfg.File
	if file == "" && ownsTerminal {
		file = defaultTUILogFile
	}
	if file == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return io.NopCloser(nil)
	}

	w := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return w
}
