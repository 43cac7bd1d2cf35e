// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package models

import "time"

// RiskLevel classifies a forecasted count relative to the port/type
// historical baseline. Thresholds are port-relative, not global, so busy
// ports are not permanently flagged high-risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Trend describes the direction of the blended forecast across the horizon.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// ForecastMethod records which models contributed to a prediction.
type ForecastMethod string

const (
	// MethodEnsemble means both models contributed to the blend.
	MethodEnsemble ForecastMethod = "ensemble"
	// MethodGBROnly means the sequence model failed and the tree model
	// served the day at full weight.
	MethodGBROnly ForecastMethod = "gbr_only"
	// MethodLSTMOnly means the tree model failed and the sequence model
	// served the day at full weight.
	MethodLSTMOnly ForecastMethod = "lstm_only"
)

// ModelComponents breaks a blended value down into its per-model inputs.
// A nil component means that model produced no value for the day.
type ModelComponents struct {
	GBR      *float64 `json:"gbr,omitempty"`
	LSTM     *float64 `json:"lstm,omitempty"`
	Ensemble float64  `json:"ensemble"`
}

// ModelWeights records the effective blend weights for one forecast day.
type ModelWeights struct {
	GBR  float64 `json:"gbr"`
	LSTM float64 `json:"lstm"`
}

// PredictionResult is one blended forecast for a (date, port, type) triple.
// It is a value object: created per forecast call, never mutated.
type PredictionResult struct {
	Date           time.Time       `json:"date"`
	Port           string          `json:"port"`
	ContainerType  string          `json:"container_type"`
	PredictedCount float64         `json:"predicted_count"`
	Confidence     float64         `json:"confidence"`
	RiskLevel      RiskLevel       `json:"risk_level"`
	Method         ForecastMethod  `json:"method"`
	Trend          Trend           `json:"trend"`
	Components     ModelComponents `json:"components"`
	Weights        ModelWeights    `json:"weights"`
}

// RiskBreakdown counts predictions per risk level within one forecast batch.
type RiskBreakdown struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// ForecastFilters echoes the request parameters back in the response.
type ForecastFilters struct {
	Port          string `json:"port,omitempty"`
	ContainerType string `json:"container_type,omitempty"`
	HorizonDays   int    `json:"horizon_days"`
}

// ForecastResponse is the full payload for one forecast request.
type ForecastResponse struct {
	Predictions       []PredictionResult `json:"predictions"`
	AverageConfidence float64            `json:"average_confidence"`
	RiskBreakdown     RiskBreakdown      `json:"risk_breakdown"`
	TrainingDataSize  int                `json:"training_data_size"`
	Filters           ForecastFilters    `json:"filters"`
	GeneratedAt       time.Time          `json:"generated_at"`
}
