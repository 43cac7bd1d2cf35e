// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

// errors.go maps the forecast package's error taxonomy onto HTTP statuses.
// Every sentinel gets a distinct machine-readable code so clients can branch
// without parsing messages.
package api

import (
	"errors"
	"net/http"

	"github.com/harborcast/harborcast/internal/forecast"
	"github.com/harborcast/harborcast/internal/logging"
)

// Error codes returned in the envelope's error.code field.
const (
	CodeInvalidHorizon     = "INVALID_HORIZON"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNoHistoricalData   = "NO_HISTORICAL_DATA"
	CodeModelNotTrained    = "MODEL_NOT_TRAINED"
	CodeTrainingInProgress = "TRAINING_IN_PROGRESS"
	CodeInsufficientData   = "INSUFFICIENT_DATA"
	CodeSchemaMismatch     = "SCHEMA_MISMATCH"
	CodeAllModelsFailed    = "ALL_MODELS_FAILED"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidBody        = "INVALID_REQUEST_BODY"
)

// respondForecastError translates a forecast error into the HTTP taxonomy.
// Unknown errors become opaque 500s; the detail stays in the log.
func respondForecastError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, forecast.ErrInvalidHorizon):
		respondError(w, r, http.StatusBadRequest, CodeInvalidHorizon, err.Error())
	case errors.Is(err, forecast.ErrNoHistoricalData):
		respondError(w, r, http.StatusNotFound, CodeNoHistoricalData, err.Error())
	case errors.Is(err, forecast.ErrModelNotTrained):
		respondJSON(w, r, http.StatusConflict, &APIResponse{
			Status: "error",
			Error: &APIError{
				Code:    CodeModelNotTrained,
				Message: err.Error(),
				Hint:    "start a training run with POST /api/v1/train",
			},
		})
	case errors.Is(err, forecast.ErrTrainingInProgress):
		respondError(w, r, http.StatusConflict, CodeTrainingInProgress, err.Error())
	case errors.Is(err, forecast.ErrInsufficientData):
		respondError(w, r, http.StatusUnprocessableEntity, CodeInsufficientData, err.Error())
	case errors.Is(err, forecast.ErrSchemaMismatch):
		respondError(w, r, http.StatusInternalServerError, CodeSchemaMismatch, err.Error())
	case errors.Is(err, forecast.ErrAllModelsFailed):
		respondError(w, r, http.StatusInternalServerError, CodeAllModelsFailed, err.Error())
	default:
		logging.Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled forecast error")
		respondError(w, r, http.StatusInternalServerError, CodeInternalError, "internal error")
	}
}
