package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/paneld-dev/paneld/internal/devapi"
	"github.com/paneld-dev/paneld/internal/logger"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := devapi.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init("paneld-api", cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	// Create server
	srv, err := devapi.New(cfg, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", version).Msg("Starting paneld-api...")

	// Start HTTP server (this blocks until a shutdown signal)
	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Server failed")
		os.Exit(1)
	}
}
