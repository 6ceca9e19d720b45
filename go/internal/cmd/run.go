package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcdev12/pitchtank/go/internal/tui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Pitch from the terminal",
	Long: `Start an interactive pitch session. On a terminal this opens the
full-screen interface; otherwise commands are read line by line from stdin.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logs := setupLogging(cfg.Log, tui.IsTTY())
	defer logs.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, store := setupController(ctx, cfg)
	defer closeStore(store)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- controller.Run(runCtx) }()

	uiErr := tui.Run(ctx, controller)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("session controller failed")
		}
	case <-time.After(shutdownTimeout):
		log.Warn().Msg("session controller did not stop in time")
	}
	return uiErr
}
