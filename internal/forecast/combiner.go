// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package forecast

import (
	"math"
	"time"

	"github.com/harborcast/harborcast/internal/config"
	"github.com/harborcast/harborcast/internal/models"
)

// Combiner blends per-day model outputs into final predictions. The tree
// model leads near-term days, the sequence model leads the rest; when one
// model fails for a day the survivor serves it at full weight.
//
// A Combiner is immutable and safe for concurrent use.
type Combiner struct {
	cfg config.ForecastConfig
}

// NewCombiner creates a combiner with the given blending configuration.
func NewCombiner(cfg config.ForecastConfig) *Combiner {
	return &Combiner{cfg: cfg}
}

// Weights returns the blend weights for a horizon day, 1-based.
func (c *Combiner) Weights(day int) models.ModelWeights {
	near := c.cfg.ShortModelNearWeight
	if day <= c.cfg.NearTermDays {
		return models.ModelWeights{GBR: near, LSTM: 1 - near}
	}
	return models.ModelWeights{GBR: 1 - near, LSTM: near}
}

// Combine blends one day's model outputs. Either input may be nil when that
// model failed; both nil returns ErrAllModelsFailed. historicalMean is the
// slice's mean daily count, used for port-relative risk classification.
func (c *Combiner) Combine(date time.Time, day int, port, containerType string,
	short, long *PointPrediction, historicalMean float64) (models.PredictionResult, error) {

	result := models.PredictionResult{
		Date:          date,
		Port:          port,
		ContainerType: containerType,
		Weights:       c.Weights(day),
	}

	switch {
	case short == nil && long == nil:
		return models.PredictionResult{}, ErrAllModelsFailed

	case long == nil:
		result.Method = models.MethodGBROnly
		result.Weights = models.ModelWeights{GBR: 1, LSTM: 0}
		result.PredictedCount = short.Value
		result.Confidence = short.Confidence
		result.Components.GBR = &short.Value

	case short == nil:
		result.Method = models.MethodLSTMOnly
		result.Weights = models.ModelWeights{GBR: 0, LSTM: 1}
		result.PredictedCount = long.Value
		result.Confidence = long.Confidence
		result.Components.LSTM = &long.Value

	default:
		result.Method = models.MethodEnsemble
		w := result.Weights
		result.PredictedCount = w.GBR*short.Value + w.LSTM*long.Value
		result.Confidence = w.GBR*short.Confidence + w.LSTM*long.Confidence
		if c.agree(short.Value, long.Value) {
			result.Confidence += c.cfg.AgreementBonus
		}
		result.Components.GBR = &short.Value
		result.Components.LSTM = &long.Value
	}

	if result.PredictedCount < 0 {
		result.PredictedCount = 0
	}
	result.Confidence = clamp01(result.Confidence)
	result.Components.Ensemble = result.PredictedCount
	result.RiskLevel = c.riskLevel(result.PredictedCount, historicalMean)

	return result, nil
}

// agree reports whether the two model values are within the configured
// relative tolerance of each other.
func (c *Combiner) agree(a, b float64) bool {
	larger := math.Max(math.Abs(a), math.Abs(b))
	if larger == 0 {
		return true
	}
	return math.Abs(a-b)/larger <= c.cfg.AgreementTolerance
}

// riskLevel classifies a predicted count against the slice's historical
// mean. With no baseline everything is low risk.
func (c *Combiner) riskLevel(predicted, historicalMean float64) models.RiskLevel {
	if historicalMean <= 0 {
		return models.RiskLow
	}
	ratio := predicted / historicalMean
	switch {
	case ratio >= c.cfg.HighRiskRatio:
		return models.RiskHigh
	case ratio >= c.cfg.MediumRiskRatio:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// ClassifyTrend compares the first and last forecasted day's blended
// values: a delta outside the configured band, relative to the first day,
// is rising or falling.
func (c *Combiner) ClassifyTrend(predictions []models.PredictionResult) models.Trend {
	if len(predictions) < 2 {
		return models.TrendStable
	}

	first := predictions[0].PredictedCount
	last := predictions[len(predictions)-1].PredictedCount
	base := math.Abs(first)
	if base == 0 {
		base = 1
	}
	rel := (last - first) / base
	switch {
	case rel > c.cfg.TrendBand:
		return models.TrendRising
	case rel < -c.cfg.TrendBand:
		return models.TrendFalling
	default:
		return models.TrendStable
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
