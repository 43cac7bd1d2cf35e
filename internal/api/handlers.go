// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/harborcast/harborcast/internal/forecast"
	"github.com/harborcast/harborcast/internal/logging"
	"github.com/harborcast/harborcast/internal/metrics"
	"github.com/harborcast/harborcast/internal/models"
)

// maxIngestBody bounds the bulk booking ingest payload (16 MiB).
const maxIngestBody = 16 << 20

// ForecastService is the forecasting engine surface the handlers need.
// Satisfied by *forecast.Engine.
type ForecastService interface {
	Forecast(ctx context.Context, req forecast.Request) (*models.ForecastResponse, error)
	Train() error
	Status() forecast.TrainingStatus
	InvalidateCache(ctx context.Context)
}

// BookingStore persists ingested booking records and owns the observation
// cache. Satisfied by *database.CachedDB.
type BookingStore interface {
	InsertBookings(ctx context.Context, records []models.BookingRecord) (int, error)
	Invalidate(ctx context.Context)
}

// Pinger reports storage liveness for the readiness probe. Satisfied by
// *database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains dependencies for the API handlers.
type Handler struct {
	engine    ForecastService
	store     BookingStore
	pinger    Pinger
	startTime time.Time
}

// NewHandler creates the API handler. pinger may be nil; readiness then
// reports ready whenever the process is up.
func NewHandler(engine ForecastService, store BookingStore, pinger Pinger) *Handler {
	return &Handler{
		engine:    engine,
		store:     store,
		pinger:    pinger,
		startTime: time.Now(),
	}
}

// Forecast handles GET /api/v1/forecast.
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	req, err := parseForecastRequest(r)
	if err != nil {
		metrics.RecordForecast("client_error", 0)
		respondError(w, r, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}

	start := time.Now()
	resp, err := h.engine.Forecast(r.Context(), forecast.Request{
		HorizonDays:   req.Days,
		Port:          req.Port,
		ContainerType: req.ContainerType,
	})
	if err != nil {
		metrics.RecordForecast(outcomeFor(err), time.Since(start))
		respondForecastError(w, r, err)
		return
	}

	metrics.RecordForecast("ok", time.Since(start))
	respondSuccess(w, r, http.StatusOK, resp)
}

// outcomeFor buckets a forecast error for the request counter.
func outcomeFor(err error) string {
	switch {
	case errors.Is(err, forecast.ErrInvalidHorizon),
		errors.Is(err, forecast.ErrNoHistoricalData),
		errors.Is(err, forecast.ErrModelNotTrained),
		errors.Is(err, forecast.ErrTrainingInProgress),
		errors.Is(err, forecast.ErrInsufficientData):
		return "client_error"
	default:
		return "server_error"
	}
}

// Train handles POST /api/v1/train. Training runs in the background; the
// 202 response carries the lifecycle snapshot taken right after the start.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Train(); err != nil {
		respondForecastError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Msg("Training run started")
	respondSuccess(w, r, http.StatusAccepted, h.engine.Status())
}

// TrainStatus handles GET /api/v1/train/status.
func (h *Handler) TrainStatus(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, h.engine.Status())
}

// IngestResult summarises one bulk booking ingest.
type IngestResult struct {
	Received int `json:"received"`
	Inserted int `json:"inserted"`
}

// IngestBookings handles POST /api/v1/bookings: a JSON array of booking
// records. All records are validated before any row is written; a single
// bad record rejects the whole batch.
func (h *Handler) IngestBookings(w http.ResponseWriter, r *http.Request) {
	var records []models.BookingRecord
	body := http.MaxBytesReader(w, r.Body, maxIngestBody)
	if err := json.NewDecoder(body).Decode(&records); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidBody, "request body must be a JSON array of booking records")
		return
	}
	if len(records) == 0 {
		respondError(w, r, http.StatusBadRequest, CodeInvalidBody, "empty booking batch")
		return
	}

	for i := range records {
		if err := records[i].Validate(); err != nil {
			respondError(w, r, http.StatusBadRequest, CodeValidationError, err.Error())
			return
		}
	}

	inserted, err := h.store.InsertBookings(r.Context(), records)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Booking ingest failed")
		respondError(w, r, http.StatusInternalServerError, CodeInternalError, "failed to persist bookings")
		return
	}

	metrics.BookingsIngested.Add(float64(inserted))
	// New observations change every horizon; cached forecasts are stale now.
	h.engine.InvalidateCache(r.Context())

	logging.Ctx(r.Context()).Info().
		Int("received", len(records)).
		Int("inserted", inserted).
		Msg("Bookings ingested")
	respondSuccess(w, r, http.StatusCreated, IngestResult{Received: len(records), Inserted: inserted})
}

// InvalidateCache handles POST /api/v1/cache/invalidate. Both namespaces go:
// cached forecasts and cached observation reads.
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.engine.InvalidateCache(r.Context())
	h.store.Invalidate(r.Context())
	logging.Ctx(r.Context()).Info().Msg("Caches invalidated on request")
	respondSuccess(w, r, http.StatusOK, map[string]string{"cache": "invalidated"})
}

// HealthStatus is the payload for GET /api/v1/health.
type HealthStatus struct {
	Status        string                  `json:"status"`
	UptimeSeconds float64                 `json:"uptime_seconds"`
	Training      forecast.TrainingStatus `json:"training"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, HealthStatus{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Training:      h.engine.Status(),
	})
}

// HealthLive handles GET /api/v1/health/live: process liveness only.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady handles GET /api/v1/health/ready: the service can answer
// queries only when the booking store responds.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			respondError(w, r, http.StatusServiceUnavailable, "NOT_READY", "booking store unavailable")
			return
		}
	}
	respondSuccess(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
