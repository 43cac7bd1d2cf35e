// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires the handler and middleware stack into a Chi mux.
type Router struct {
	handler    *Handler
	middleware *ChiMiddleware
}

// NewRouter creates the router.
func NewRouter(handler *Handler, middleware *ChiMiddleware) *Router {
	return &Router{handler: handler, middleware: middleware}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS()) // global so OPTIONS preflight always answers

	// Health probes get their own permissive rate limit so monitoring is
	// never starved by API traffic.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.middleware.RateLimitHealth())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Core API endpoints.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(PrometheusMetrics())
		r.Use(RequestLogging())

		r.Get("/forecast", router.handler.Forecast)
		r.Post("/train", router.handler.Train)
		r.Get("/train/status", router.handler.TrainStatus)
		r.Post("/bookings", router.handler.IngestBookings)
		r.Post("/cache/invalidate", router.handler.InvalidateCache)
	})

	// Prometheus scrape endpoint, outside the API rate limit.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
