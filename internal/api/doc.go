// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

/*
Package api provides the HTTP REST layer for Harborcast.

Endpoints:

  - GET  /api/v1/forecast          blended forecast for a horizon and slice
  - POST /api/v1/train             start a background training run
  - GET  /api/v1/train/status      training lifecycle and model metrics
  - POST /api/v1/bookings          bulk booking ingestion
  - POST /api/v1/cache/invalidate  drop cached forecasts and observations
  - GET  /api/v1/health            health summary
  - GET  /api/v1/health/live       liveness probe
  - GET  /api/v1/health/ready      readiness probe (storage ping)
  - GET  /metrics                  Prometheus metrics

Responses use a uniform JSON envelope with a status field, a data payload
and, on failure, a machine-readable error code. Forecast error sentinels map
onto HTTP statuses in errors.go.

Routing is Chi with the production middleware stack: request IDs, real IP
extraction, panic recovery, CORS, per-IP rate limiting and Prometheus
request instrumentation.
*/
package api
