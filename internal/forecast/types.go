// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

// Package forecast implements the ensemble forecasting pipeline: feature
// extraction over booking history, a gradient-boosted tree model for short
// horizons, a recurrent model for long horizons, and the combiner that
// blends both into per-day predictions with confidence and risk.
package forecast

import (
	"context"
	"time"

	"github.com/harborcast/harborcast/internal/artifact"
	"github.com/harborcast/harborcast/internal/features"
)

// PointPrediction is one model's estimate for a single future day.
type PointPrediction struct {
	Value      float64
	Confidence float64
}

// FeatureWeight is one feature's share of a trained tree model's total
// split gain. Weights across the full schema sum to 1.
type FeatureWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// ShortModelMetrics summarizes a tree-model training run. R2, MAE and RMSE
// are measured on the held-out validation split.
type ShortModelMetrics struct {
	R2              float64         `json:"r2"`
	MAE             float64         `json:"mae"`
	RMSE            float64         `json:"rmse"`
	Samples         int             `json:"samples"`
	TrainingSeconds float64         `json:"training_seconds"`
	TopFeatures     []FeatureWeight `json:"top_features,omitempty"`
}

// LongModelMetrics summarizes a sequence-model training run. TestMAPE is the
// mean absolute percentage error on the held-out split.
type LongModelMetrics struct {
	Loss            float64 `json:"loss"`
	Epochs          int     `json:"epochs"`
	TestMAPE        float64 `json:"test_mape"`
	Samples         int     `json:"samples"`
	TrainingSeconds float64 `json:"training_seconds"`
}

// ShortHorizonModel is the per-day regression model driving near-term
// forecasts. Implementations are safe for concurrent Predict calls and
// serialize Train internally.
type ShortHorizonModel interface {
	Name() string
	IsTrained() bool
	Version() int
	LastTrainedAt() time.Time

	// Train fits the model on feature-vector samples. Returns
	// ErrInsufficientData when the sample count is below the model minimum.
	Train(ctx context.Context, samples []features.TrainingSample) (*ShortModelMetrics, error)

	// Predict estimates the count for one feature vector. Returns
	// ErrModelNotTrained before the first successful Train or restore.
	Predict(vec features.Vector) (PointPrediction, error)

	// FeatureImportance returns normalized split gains, highest first.
	FeatureImportance() ([]FeatureWeight, error)

	// Metrics returns the metrics of the last training run, nil if untrained.
	Metrics() *ShortModelMetrics

	// ExportParams serializes the trained parameters for persistence.
	ExportParams() ([]byte, error)

	// RestoreParams loads previously exported parameters.
	RestoreParams(data []byte) error
}

// LongHorizonModel is the sequence model driving far-term forecasts. It
// predicts autoregressively, so confidence never increases with day offset.
type LongHorizonModel interface {
	Name() string
	IsTrained() bool
	Version() int
	LastTrainedAt() time.Time

	// Train fits the model on sliding-window samples. Returns
	// ErrInsufficientData when the sample count is below the model minimum.
	Train(ctx context.Context, samples []features.SequenceSample) (*LongModelMetrics, error)

	// Predict rolls the model forward horizonDays steps from the given
	// lookback window of daily totals, oldest first.
	Predict(window []float64, horizonDays int) ([]PointPrediction, error)

	// Metrics returns the metrics of the last training run, nil if untrained.
	Metrics() *LongModelMetrics

	// ExportParams serializes the trained parameters for persistence.
	ExportParams() ([]byte, error)

	// RestoreParams loads previously exported parameters.
	RestoreParams(data []byte) error
}

// ArtifactStore is the persistence surface the coordinator needs. Satisfied
// by *artifact.Store; nil-able for memory-only deployments.
type ArtifactStore interface {
	Save(a *artifact.Artifact) error
	LoadLatest(kind string) (*artifact.Artifact, error)
}

// TrainingState is the coordinator's lifecycle state.
type TrainingState string

const (
	StateIdle     TrainingState = "idle"
	StateTraining TrainingState = "training"
	StateTrained  TrainingState = "trained"
	StateFailed   TrainingState = "failed"
)

// RecommendedAction tells operators what the coordinator suggests next.
type RecommendedAction string

const (
	ActionTrainRequired       RecommendedAction = "train_required"
	ActionTrainingInProgress  RecommendedAction = "training_in_progress"
	ActionRetrainRecommended  RecommendedAction = "retrain_recommended"
	ActionRetrainForAccuracy  RecommendedAction = "retrain_for_accuracy"
	ActionReadyForPredictions RecommendedAction = "ready_for_predictions"
)

// TrainingStatus is the coordinator's externally visible state snapshot.
type TrainingStatus struct {
	State             TrainingState      `json:"state"`
	RecommendedAction RecommendedAction  `json:"recommended_action"`
	LastTrainedAt     *time.Time         `json:"last_trained_at,omitempty"`
	LastError         string             `json:"last_error,omitempty"`
	TrainingDataSize  int                `json:"training_data_size"`
	ShortModel        *ShortModelMetrics `json:"short_model,omitempty"`
	LongModel         *LongModelMetrics  `json:"long_model,omitempty"`
}

// Request identifies one forecast query.
type Request struct {
	HorizonDays   int
	Port          string
	ContainerType string
}
