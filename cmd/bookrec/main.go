// Bookrec - Hybrid Book Recommendation Engine
// Copyright 2026 M. Whitten (mwhitten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mwhitten/bookrec

// Package main is the entry point for the bookrec server.
//
// Bookrec serves hybrid book recommendations over HTTP, blending five
// candidate strategies (content-based, collaborative, trending,
// geographic, cold-start) over a DuckDB relational store and a Badger
// document store.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML, env)
//  2. Logging: zerolog initialized from configuration
//  3. Relational store: DuckDB with schema migration and circuit breaker
//  4. Document store: Badger for profiles, metrics, and the rec cache
//  5. Engine: strategy generators wired to both stores
//  6. Supervisor tree: HTTP server and cache sweeper under suture
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the root context; the supervisor drains the
// HTTP server gracefully and stops the sweeper before the process exits.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/mwhitten/bookrec/internal/api"
	"github.com/mwhitten/bookrec/internal/config"
	"github.com/mwhitten/bookrec/internal/database"
	"github.com/mwhitten/bookrec/internal/docstore"
	"github.com/mwhitten/bookrec/internal/logging"
	"github.com/mwhitten/bookrec/internal/recommend"
	"github.com/mwhitten/bookrec/internal/recommend/strategy"
	"github.com/mwhitten/bookrec/internal/supervisor"
	"github.com/mwhitten/bookrec/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet; the default logger applies.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging)
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("db_path", cfg.Database.Path).
		Str("docstore_path", cfg.DocStore.Path).
		Msg("Starting bookrec")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open relational store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing relational store")
		}
	}()

	if err := db.InitSchema(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to migrate schema")
	}

	docs, err := docstore.New(cfg.DocStore, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open document store")
	}
	defer func() {
		if err := docs.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing document store")
		}
	}()

	engine, err := buildEngine(cfg, db, docs)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build recommendation engine")
	}

	handler := api.NewHandler(engine, logging.Logger())
	router := api.NewRouter(handler, db, api.RouterConfig{
		CORSOrigins:       cfg.Server.CORSOrigins,
		RateLimitReqs:     cfg.Server.RateLimitReqs,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
		RateLimitDisabled: cfg.Server.RateLimitDisabled,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))
	if cfg.Recommend.Cache.Enabled {
		tree.AddMaintenanceService(services.NewSweeperService(
			docs, cfg.Recommend.Cache.SweepInterval, logging.Logger()))
	}
	if cfg.Database.MetricsRefreshInterval > 0 {
		tree.AddMaintenanceService(services.NewMetricsRefreshService(
			db, docs, cfg.Database.MetricsRefreshInterval, logging.Logger()))
	}
	if cfg.Database.ProfileRefreshInterval > 0 {
		tree.AddMaintenanceService(services.NewProfileRefreshService(
			db, docs, cfg.Database.ProfileRefreshInterval, logging.Logger()))
	}

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Serving")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Supervisor tree terminated")
	}

	logging.Info().Msg("Shutdown complete")
}

// buildEngine wires the five strategy generators into the engine.
func buildEngine(cfg *config.Config, db *database.DB, docs *docstore.Store) (*recommend.Engine, error) {
	logger := logging.Logger()
	generators := []recommend.Generator{
		strategy.NewContentBased(db, cfg.Recommend.ContentBased, logger),
		strategy.NewCollaborative(db, cfg.Recommend.Collaborative, logger),
		strategy.NewTrending(db, docs, cfg.Recommend.Trending, logger),
		strategy.NewGeographic(db, cfg.Recommend.Geographic, logger),
		strategy.NewColdStart(db, docs, cfg.Recommend.ColdStart, logger),
	}
	return recommend.NewEngine(cfg.Recommend, db, docs, generators, logger)
}
