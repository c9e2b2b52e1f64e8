// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

// Command server runs the Railatlas daemon: the sync orchestrator pulling
// rail data from every configured game server, and the HTTP surface
// serving route details, the network overview, and sync administration.
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

	"github.com/wrenhall/railatlas/internal/api"
	"github.com/wrenhall/railatlas/internal/config"
	"github.com/wrenhall/railatlas/internal/logging"
	"github.com/wrenhall/railatlas/internal/overview"
	"github.com/wrenhall/railatlas/internal/remote"
	"github.com/wrenhall/railatlas/internal/routedetail"
	"github.com/wrenhall/railatlas/internal/store"
	"github.com/wrenhall/railatlas/internal/supervisor"
	syncer "github.com/wrenhall/railatlas/internal/sync"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", version).
		Int("sources", len(cfg.EnabledSources())).
		Msg("Railatlas starting")

	db, err := store.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Store close failed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := remote.NewPool(ctx)
	defer pool.Close()
	links := remote.PoolLinks{Pool: pool}

	manager := syncer.NewManager(cfg, db, links)
	defer manager.Stop()

	routes := routedetail.NewAssembler(cfg, db, links)
	aggregator := overview.NewAggregator(cfg, db, links)

	handlers := api.NewHandlers(cfg, manager, routes, aggregator, pool, db)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg, handlers),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: 10 * time.Second,
	})
	tree.AddSyncService(manager)
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Serving")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop in time")
		}
	}
	logging.Info().Msg("Railatlas stopped")
}
