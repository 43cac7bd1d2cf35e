// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package forecast

import (
	"errors"
	"testing"
	"time"

	"github.com/harborcast/harborcast/internal/config"
	"github.com/harborcast/harborcast/internal/models"
)

func testForecastConfig() config.ForecastConfig {
	return config.ForecastConfig{
		HistoryLimit:         5000,
		NearTermDays:         3,
		ShortModelNearWeight: 0.7,
		AgreementTolerance:   0.15,
		AgreementBonus:       0.1,
		HighRiskRatio:        1.5,
		MediumRiskRatio:      1.0,
		TrendBand:            0.05,
	}
}

func TestWeightSchedule(t *testing.T) {
	t.Parallel()

	c := NewCombiner(testForecastConfig())

	for day := 1; day <= 3; day++ {
		w := c.Weights(day)
		if w.GBR <= w.LSTM {
			t.Errorf("day %d: tree weight %g must exceed sequence weight %g", day, w.GBR, w.LSTM)
		}
	}
	for _, day := range []int{4, 10, 30} {
		w := c.Weights(day)
		if w.LSTM <= w.GBR {
			t.Errorf("day %d: sequence weight %g must exceed tree weight %g", day, w.LSTM, w.GBR)
		}
	}

	w := c.Weights(1)
	if sum := w.GBR + w.LSTM; sum != 1 {
		t.Errorf("weights sum to %g, want 1", sum)
	}
}

func TestCombineEnsemble(t *testing.T) {
	t.Parallel()

	c := NewCombiner(testForecastConfig())
	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	short := &PointPrediction{Value: 100, Confidence: 0.8}
	long := &PointPrediction{Value: 50, Confidence: 0.6}

	nearResult, err := c.Combine(date, 1, "SGSIN", "40HC", short, long, 80)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if want := 0.7*100 + 0.3*50; nearResult.PredictedCount != want {
		t.Errorf("day 1 blend = %g, want %g", nearResult.PredictedCount, want)
	}
	if nearResult.Method != models.MethodEnsemble {
		t.Errorf("method = %q, want ensemble", nearResult.Method)
	}
	if nearResult.Components.GBR == nil || nearResult.Components.LSTM == nil {
		t.Error("ensemble result must expose both components")
	}

	farResult, err := c.Combine(date.AddDate(0, 0, 6), 7, "SGSIN", "40HC", short, long, 80)
	if err != nil {
		t.Fatal(err)
	}
	if want := 0.3*100 + 0.7*50; farResult.PredictedCount != want {
		t.Errorf("day 7 blend = %g, want %g", farResult.PredictedCount, want)
	}
}

func TestCombineAgreementBonus(t *testing.T) {
	t.Parallel()

	c := NewCombiner(testForecastConfig())
	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	agreeing := &PointPrediction{Value: 100, Confidence: 0.6}
	near := &PointPrediction{Value: 95, Confidence: 0.6}
	far := &PointPrediction{Value: 40, Confidence: 0.6}

	withBonus, err := c.Combine(date, 1, "SGSIN", "40HC", agreeing, near, 80)
	if err != nil {
		t.Fatal(err)
	}
	withoutBonus, err := c.Combine(date, 1, "SGSIN", "40HC", agreeing, far, 80)
	if err != nil {
		t.Fatal(err)
	}

	if diff := withBonus.Confidence - withoutBonus.Confidence; diff < 0.099 || diff > 0.101 {
		t.Errorf("agreement bonus = %g, want 0.1", diff)
	}
}

func TestCombineConfidenceClamped(t *testing.T) {
	t.Parallel()

	c := NewCombiner(testForecastConfig())
	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	// Both models near the ceiling plus the agreement bonus would exceed 1.
	short := &PointPrediction{Value: 100, Confidence: 0.97}
	long := &PointPrediction{Value: 100, Confidence: 0.97}

	result, err := c.Combine(date, 1, "SGSIN", "40HC", short, long, 80)
	if err != nil {
		t.Fatal(err)
	}
	if result.Confidence > 1 {
		t.Errorf("confidence = %g, must clamp to 1", result.Confidence)
	}
}

func TestCombineFallbacks(t *testing.T) {
	t.Parallel()

	c := NewCombiner(testForecastConfig())
	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	short := &PointPrediction{Value: 100, Confidence: 0.8}
	long := &PointPrediction{Value: 50, Confidence: 0.6}

	tests := []struct {
		name       string
		short      *PointPrediction
		long       *PointPrediction
		wantMethod models.ForecastMethod
		wantValue  float64
	}{
		{"sequence model down", short, nil, models.MethodGBROnly, 100},
		{"tree model down", nil, long, models.MethodLSTMOnly, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := c.Combine(date, 5, "SGSIN", "40HC", tt.short, tt.long, 80)
			if err != nil {
				t.Fatalf("Combine: %v", err)
			}
			if result.Method != tt.wantMethod {
				t.Errorf("method = %q, want %q", result.Method, tt.wantMethod)
			}
			if result.PredictedCount != tt.wantValue {
				t.Errorf("value = %g, want %g", result.PredictedCount, tt.wantValue)
			}
			if result.Weights.GBR+result.Weights.LSTM != 1 {
				t.Errorf("fallback weights %+v must sum to 1", result.Weights)
			}
		})
	}

	if _, err := c.Combine(date, 1, "SGSIN", "40HC", nil, nil, 80); !errors.Is(err, ErrAllModelsFailed) {
		t.Errorf("both models nil: err = %v, want ErrAllModelsFailed", err)
	}
}

func TestRiskLevels(t *testing.T) {
	t.Parallel()

	c := NewCombiner(testForecastConfig())
	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value float64
		mean  float64
		want  models.RiskLevel
	}{
		{"well above baseline", 15, 10, models.RiskHigh},
		{"at baseline", 10, 10, models.RiskMedium},
		{"below baseline", 5, 10, models.RiskLow},
		{"no baseline", 100, 0, models.RiskLow},
		{"busy port not flagged", 90, 100, models.RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &PointPrediction{Value: tt.value, Confidence: 0.5}
			result, err := c.Combine(date, 1, "SGSIN", "40HC", p, nil, tt.mean)
			if err != nil {
				t.Fatal(err)
			}
			if result.RiskLevel != tt.want {
				t.Errorf("risk(%g vs mean %g) = %q, want %q", tt.value, tt.mean, result.RiskLevel, tt.want)
			}
		})
	}
}

func TestClassifyTrend(t *testing.T) {
	t.Parallel()

	c := NewCombiner(testForecastConfig())

	mk := func(values ...float64) []models.PredictionResult {
		out := make([]models.PredictionResult, len(values))
		for i, v := range values {
			out[i] = models.PredictionResult{PredictedCount: v}
		}
		return out
	}

	tests := []struct {
		name string
		pred []models.PredictionResult
		want models.Trend
	}{
		{"rising", mk(10, 11, 12), models.TrendRising},
		{"falling", mk(10, 9, 8), models.TrendFalling},
		{"inside band", mk(10, 10.3, 10.2), models.TrendStable},
		{"rising from zero", mk(0, 1, 3), models.TrendRising},
		{"single day", mk(5), models.TrendStable},
		{"empty", nil, models.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := c.ClassifyTrend(tt.pred); got != tt.want {
				t.Errorf("ClassifyTrend = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCombineNonNegative(t *testing.T) {
	t.Parallel()

	c := NewCombiner(testForecastConfig())
	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	short := &PointPrediction{Value: -3, Confidence: 0.5}
	result, err := c.Combine(date, 1, "SGSIN", "40HC", short, nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if result.PredictedCount != 0 {
		t.Errorf("negative blend must clamp to 0, got %g", result.PredictedCount)
	}
}
