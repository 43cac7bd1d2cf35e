// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package forecast

import "errors"

// Sentinel errors for the forecasting pipeline. Handlers map these onto
// HTTP status codes; callers branch with errors.Is.
var (
	// ErrInvalidHorizon indicates a requested horizon outside [1, 30] days.
	ErrInvalidHorizon = errors.New("forecast: horizon must be between 1 and 30 days")

	// ErrNoHistoricalData indicates the requested (port, type) slice has no
	// booking history at all.
	ErrNoHistoricalData = errors.New("forecast: no historical data for requested slice")

	// ErrInsufficientData indicates training was requested with fewer
	// samples than a model's minimum.
	ErrInsufficientData = errors.New("forecast: insufficient training data")

	// ErrTrainingInProgress indicates a training run is already active.
	ErrTrainingInProgress = errors.New("forecast: training already in progress")

	// ErrModelNotTrained indicates inference was requested before any
	// successful training run.
	ErrModelNotTrained = errors.New("forecast: models not trained")

	// ErrSchemaMismatch indicates a persisted artifact was trained under a
	// different feature schema than the running configuration.
	ErrSchemaMismatch = errors.New("forecast: artifact schema does not match feature configuration")

	// ErrAllModelsFailed indicates neither model produced a usable
	// prediction for a requested day.
	ErrAllModelsFailed = errors.New("forecast: all models failed to predict")
)
