package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/pitchtank/go/internal/bridge"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var bridgeAddr string

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve the session to browser clients over WebSocket",
	Long: `Run a single pitch session behind a WebSocket bridge. Connected clients
receive every session snapshot and send commands back over the same socket.`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().StringVar(&bridgeAddr, "addr", "", "Listen address (default from config)")
}

func runBridge(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if bridgeAddr != "" {
		cfg.Bridge.Addr = bridgeAddr
	}
	logs := setupLogging(cfg.Log, false)
	defer logs.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, store := setupController(ctx, cfg)
	defer closeStore(store)

	hub := bridge.NewHub(controller, bridge.DefaultConnectionConfig())
	server := bridge.NewServer(cfg.Bridge.Addr, cfg.Bridge.AllowedOrigins, hub)

	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	controllerDone := make(chan error, 1)
	go func() { controllerDone <- controller.Run(serviceCtx) }()
	go hub.Run(serviceCtx)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("bridge server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("bridge server failed")
			cancel()
			<-controllerDone
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("bridge server shutdown failed")
	}

	cancel()
	select {
	case <-controllerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("session controller did not stop in time")
	}

	log.Info().Msg("bridge shutdown complete")
	return nil
}
