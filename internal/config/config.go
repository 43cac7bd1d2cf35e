// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

// Package config loads and validates the Harborcast configuration from
// layered sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Harborcast server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Database  DatabaseConfig  `koanf:"database"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Redis     RedisConfig     `koanf:"redis"`
	Cache     CacheConfig     `koanf:"cache"`
	Forecast  ForecastConfig  `koanf:"forecast"`
	Training  TrainingConfig  `koanf:"training"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"gte=1,lte=65535"`

	// Timeout bounds request read/write on the HTTP server.
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs is the per-IP request budget per RateLimitWindow.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// CORSOrigins lists allowed origins for browser clients.
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig holds booking-history store settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file. ":memory:" opens an in-memory store.
	Path string `koanf:"path" validate:"required"`

	// MaxMemory caps DuckDB memory usage (e.g. "1GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads limits DuckDB worker threads. 0 = runtime.NumCPU().
	Threads int `koanf:"threads" validate:"gte=0"`
}

// ArtifactsConfig holds model-artifact store settings.
type ArtifactsConfig struct {
	// Path is the Badger directory for trained model artifacts.
	// Empty disables persistence (models live in memory only).
	Path string `koanf:"path"`
}

// RedisConfig holds the optional shared cache tier settings.
type RedisConfig struct {
	// Enabled turns the shared tier on. When false, or when the server is
	// unreachable, the cache degrades to the in-process tier only.
	Enabled     bool          `koanf:"enabled"`
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db" validate:"gte=0"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

// CacheConfig holds TTL and capacity settings for the tiered cache.
type CacheConfig struct {
	// PredictionTTL is how long forecast responses stay cached.
	PredictionTTL time.Duration `koanf:"prediction_ttl"`

	// ObservationTTL is how long booking-history reads stay cached.
	ObservationTTL time.Duration `koanf:"observation_ttl"`

	// Capacity is the entry ceiling per logical in-process cache.
	Capacity int `koanf:"capacity" validate:"gte=1"`
}

// ForecastConfig holds the ensemble blending tunables. The weight schedule
// and agreement constants are empirically chosen defaults, not fixed
// requirements.
type ForecastConfig struct {
	// HistoryLimit bounds the booking rows read per forecast.
	HistoryLimit int `koanf:"history_limit" validate:"gte=1"`

	// NearTermDays is the last horizon day on which the tree model leads
	// the blend. From NearTermDays+1 the weights invert.
	NearTermDays int `koanf:"near_term_days" validate:"gte=1"`

	// ShortModelNearWeight is the tree model's blend weight on near-term
	// days. The sequence model receives the complement.
	ShortModelNearWeight float64 `koanf:"short_model_near_weight" validate:"gte=0,lte=1"`

	// AgreementTolerance is the relative gap under which the two models are
	// considered to agree.
	AgreementTolerance float64 `koanf:"agreement_tolerance" validate:"gte=0"`

	// AgreementBonus is added to blended confidence when the models agree.
	AgreementBonus float64 `koanf:"agreement_bonus" validate:"gte=0,lte=1"`

	// HighRiskRatio and MediumRiskRatio scale the per-(port,type) historical
	// mean into risk thresholds.
	HighRiskRatio   float64 `koanf:"high_risk_ratio" validate:"gt=0"`
	MediumRiskRatio float64 `koanf:"medium_risk_ratio" validate:"gt=0"`

	// TrendBand is the relative delta under which a forecast counts as
	// stable.
	TrendBand float64 `koanf:"trend_band" validate:"gte=0"`
}

// TrainingConfig holds model training thresholds and hyperparameters.
type TrainingConfig struct {
	// MinShortSamples is the minimum feature-vector count to train the tree
	// model.
	MinShortSamples int `koanf:"min_short_samples" validate:"gte=1"`

	// MinLongSamples is the minimum observation count to train the sequence
	// model (it needs lookback headroom).
	MinLongSamples int `koanf:"min_long_samples" validate:"gte=1"`

	// RetrainAfter is the staleness window after which retraining is
	// recommended.
	RetrainAfter time.Duration `koanf:"retrain_after"`

	// MinR2 is the validation floor below which retraining for accuracy is
	// recommended.
	MinR2 float64 `koanf:"min_r2" validate:"lte=1"`

	// Estimators is the boosting round count for the tree model.
	Estimators int `koanf:"estimators" validate:"gte=1"`

	// MaxDepth bounds individual regression trees.
	MaxDepth int `koanf:"max_depth" validate:"gte=1"`

	// LearningRate is the boosting shrinkage factor.
	LearningRate float64 `koanf:"learning_rate" validate:"gt=0,lte=1"`

	// Subsample is the per-round row sampling fraction.
	Subsample float64 `koanf:"subsample" validate:"gt=0,lte=1"`

	// HiddenSize is the LSTM hidden state width.
	HiddenSize int `koanf:"hidden_size" validate:"gte=1"`

	// Epochs is the LSTM training epoch count.
	Epochs int `koanf:"epochs" validate:"gte=1"`

	// Lookback is the LSTM input window length in days.
	Lookback int `koanf:"lookback" validate:"gte=2"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8432,
			Timeout:         30 * time.Second,
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Database: DatabaseConfig{
			Path:      "/data/harborcast.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Artifacts: ArtifactsConfig{
			Path: "/data/artifacts",
		},
		Redis: RedisConfig{
			Enabled:     false, // in-process tier only by default
			Addr:        "localhost:6379",
			DB:          0,
			DialTimeout: 2 * time.Second,
		},
		Cache: CacheConfig{
			PredictionTTL:  10 * time.Minute,
			ObservationTTL: 30 * time.Minute,
			Capacity:       100,
		},
		Forecast: ForecastConfig{
			HistoryLimit:         5000,
			NearTermDays:         3,
			ShortModelNearWeight: 0.7,
			AgreementTolerance:   0.15,
			AgreementBonus:       0.1,
			HighRiskRatio:        1.5,
			MediumRiskRatio:      1.0,
			TrendBand:            0.05,
		},
		Training: TrainingConfig{
			MinShortSamples: 50,
			MinLongSamples:  100,
			RetrainAfter:    14 * 24 * time.Hour,
			MinR2:           0.5,
			Estimators:      80,
			MaxDepth:        4,
			LearningRate:    0.05,
			Subsample:       0.8,
			HiddenSize:      16,
			Epochs:          60,
			Lookback:        14,
		},
	}
}

// Validate checks the configuration for structural and cross-field errors.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Server.Timeout <= 0 {
		return fmt.Errorf("config validation: server.timeout must be positive")
	}
	if c.Cache.PredictionTTL <= 0 || c.Cache.ObservationTTL <= 0 {
		return fmt.Errorf("config validation: cache TTLs must be positive")
	}
	if c.Forecast.MediumRiskRatio >= c.Forecast.HighRiskRatio {
		return fmt.Errorf("config validation: forecast.medium_risk_ratio (%g) must be below high_risk_ratio (%g)",
			c.Forecast.MediumRiskRatio, c.Forecast.HighRiskRatio)
	}
	if c.Training.MinLongSamples < c.Training.MinShortSamples {
		return fmt.Errorf("config validation: training.min_long_samples must be >= min_short_samples")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config validation: redis.addr is required when redis.enabled")
	}
	return nil
}
