// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

// Package main is the entry point for the Harborcast server.
//
// Harborcast forecasts empty-container availability per (origin port,
// container type) over 1 to 30 day horizons by blending a gradient-boosted
// tree model over engineered calendar and lag features with an LSTM over
// raw daily totals.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered Koanf v2 sources (defaults, YAML file, env)
//  2. Database: DuckDB booking-history store
//  3. Artifact store: Badger directory for trained model parameters
//  4. Caches: tiered in-process LRU with an optional shared Redis tier
//  5. Models: tree and sequence models, restored from artifacts when present
//  6. HTTP server: Chi REST API with Prometheus metrics
//
// Shutdown on SIGINT/SIGTERM is graceful: the server stops accepting new
// connections, waits for in-flight requests, then closes storage.
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

	"github.com/harborcast/harborcast/internal/api"
	"github.com/harborcast/harborcast/internal/artifact"
	"github.com/harborcast/harborcast/internal/cache"
	"github.com/harborcast/harborcast/internal/config"
	"github.com/harborcast/harborcast/internal/database"
	"github.com/harborcast/harborcast/internal/features"
	"github.com/harborcast/harborcast/internal/forecast"
	"github.com/harborcast/harborcast/internal/forecast/algorithms"
	"github.com/harborcast/harborcast/internal/logging"
)

// shutdownTimeout bounds how long in-flight requests may run after a
// shutdown signal.
const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("artifacts_path", cfg.Artifacts.Path).
		Bool("redis_enabled", cfg.Redis.Enabled).
		Msg("Starting Harborcast")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Artifact persistence is optional: without a path the models live in
	// memory only and every restart needs a training run.
	var store *artifact.Store
	if cfg.Artifacts.Path != "" {
		store, err = artifact.Open(cfg.Artifacts.Path)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open artifact store")
		}
		defer func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing artifact store")
			}
		}()
	} else {
		logging.Warn().Msg("Artifact persistence disabled, models are memory-only")
	}

	shared := cache.NewSharedTier(cfg.Redis)
	if shared != nil {
		defer func() {
			if err := shared.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing shared cache tier")
			}
		}()
	}
	forecastCache := cache.NewTiered("forecast", cfg.Cache.Capacity, shared)
	observationCache := cache.NewTiered("observations", cfg.Cache.Capacity, shared)

	cachedDB := database.NewCachedDB(db, observationCache, cfg.Cache.ObservationTTL)

	featCfg := features.DefaultConfig()
	featCfg.SequenceLookback = cfg.Training.Lookback
	builder, err := features.NewBuilder(featCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build feature schema")
	}

	short := algorithms.NewGBTree(algorithms.GBTreeConfig{
		Estimators:      cfg.Training.Estimators,
		MaxDepth:        cfg.Training.MaxDepth,
		LearningRate:    cfg.Training.LearningRate,
		Subsample:       cfg.Training.Subsample,
		MinSamplesLeaf:  5,
		ValidationSplit: 0.2,
		MinSamples:      cfg.Training.MinShortSamples,
		Seed:            1,
	}, builder.FeatureNames())

	long := algorithms.NewLSTM(algorithms.LSTMConfig{
		HiddenSize:      cfg.Training.HiddenSize,
		Epochs:          cfg.Training.Epochs,
		LearningRate:    0.01,
		Lookback:        cfg.Training.Lookback,
		ValidationSplit: 0.2,
		MinSamples:      cfg.Training.MinLongSamples,
		ClipValue:       5.0,
		Seed:            1,
	})

	var artifactStore forecast.ArtifactStore
	if store != nil {
		artifactStore = store
	}
	coordinator := forecast.NewCoordinator(builder, short, long, cachedDB, artifactStore, cfg.Training)
	if err := coordinator.Restore(); err != nil {
		logging.Error().Err(err).Msg("Artifact restore failed, continuing untrained")
	}

	engine := forecast.NewEngine(builder, short, long, coordinator, cachedDB, forecastCache,
		cfg.Forecast, cfg.Cache.PredictionTTL)

	handler := api.NewHandler(engine, cachedDB, db)
	router := api.NewRouter(handler, api.NewChiMiddleware(cfg.Server))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("HTTP server error")
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logging.Info().Msg("Harborcast stopped gracefully")
}
