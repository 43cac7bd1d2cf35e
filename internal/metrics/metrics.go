// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

// Package metrics exposes Prometheus instrumentation for the forecasting
// service: request latency, cache efficiency, training runs and the shared
// cache tier's circuit breaker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harborcast_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	// Forecast metrics.
	ForecastRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harborcast_forecast_requests_total",
			Help: "Total forecast requests by outcome",
		},
		[]string{"outcome"}, // "ok", "client_error", "server_error"
	)

	ForecastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harborcast_forecast_duration_seconds",
			Help:    "End-to-end forecast computation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Cache metrics, labelled by tier ("local", "shared").
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harborcast_cache_hits_total",
			Help: "Total cache hits by tier",
		},
		[]string{"tier"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harborcast_cache_misses_total",
			Help: "Total cache misses by tier",
		},
		[]string{"tier"},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harborcast_cache_entries",
			Help: "Current number of entries in the in-process cache tier",
		},
	)

	// Training metrics.
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harborcast_training_runs_total",
			Help: "Total training runs by result",
		},
		[]string{"result"}, // "trained", "partial", "failed"
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harborcast_training_duration_seconds",
			Help:    "Duration of full training runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// Shared cache tier circuit breaker: 0 closed, 1 half-open, 2 open.
	SharedCacheBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harborcast_shared_cache_breaker_state",
			Help: "Shared cache circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Ingest metrics.
	BookingsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harborcast_bookings_ingested_total",
			Help: "Total booking records accepted through the ingest endpoint",
		},
	)
)

// RecordCacheHit increments the hit counter for a tier.
func RecordCacheHit(tier string) {
	CacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss increments the miss counter for a tier.
func RecordCacheMiss(tier string) {
	CacheMisses.WithLabelValues(tier).Inc()
}

// RecordForecast records one forecast request outcome and its duration.
func RecordForecast(outcome string, elapsed time.Duration) {
	ForecastRequests.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		ForecastDuration.Observe(elapsed.Seconds())
	}
}

// RecordTrainingRun records one training run result and its duration.
func RecordTrainingRun(result string, elapsed time.Duration) {
	TrainingRuns.WithLabelValues(result).Inc()
	TrainingDuration.Observe(elapsed.Seconds())
}
