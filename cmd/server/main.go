// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

/* main.go - Pulseboard server entrypoint

Boot order: configuration, logging, store, sync manager, auth middleware,
router, supervisor tree. The supervisor owns the long-running pieces (sync
scheduler and HTTP server); main only wires them and waits for a signal.
*/
//nolint:staticcheck // File documentation, not package doc
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulseboard/pulseboard/internal/api"
	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/database"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/supervisor"
	"github.com/pulseboard/pulseboard/internal/supervisor/services"
	"github.com/pulseboard/pulseboard/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Bool("board", cfg.Board.Enabled).
		Bool("analytics", cfg.Analytics.Enabled).
		Bool("uptime", cfg.Uptime.Enabled).
		Bool("vitals", cfg.Vitals.Enabled).
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Server.AuthMode).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	manager := sync.NewManager(db, cfg)

	middleware, err := auth.NewMiddleware(&cfg.Server)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize auth middleware")
	}

	handler := api.NewHandler(db, manager, cfg)
	router := api.NewRouter(handler, middleware.Authenticate, &cfg.Server)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(services.NewSyncService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Pulseboard stopped gracefully")
}
