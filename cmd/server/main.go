// Package main is the entry point for the NGO Hub portal.
//
// The main package stays minimal. Its job is to:
// 1. Read configuration (env vars, optionally a config file)
// 2. Create the logger
// 3. Assemble and start the server
//
// All actual logic lives in internal/.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/ngo-hub/internal/config"
	"github.com/sakif/ngo-hub/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Config comes first so LOG_LEVEL can pick the logger's level. Until
	// then, errors go to a default logger.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// Log levels (from least to most severe): Debug → Info → Warn → Error
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if !cfg.GitHubEnabled() && !cfg.GoogleEnabled() {
		logger.Info("no federated provider configured, only email sign-in is available")
	}

	// === 3. ASSEMBLE THE SERVER ===
	// Connecting to Mongo, Redis and Google discovery may touch the network,
	// so startup gets a deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
