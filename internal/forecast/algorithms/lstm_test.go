// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package algorithms

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/harborcast/harborcast/internal/features"
	"github.com/harborcast/harborcast/internal/forecast"
)

func testLSTMConfig() LSTMConfig {
	cfg := DefaultLSTMConfig()
	cfg.HiddenSize = 8
	cfg.Epochs = 40
	return cfg
}

// constantSamples builds windows of a flat series: every day is value.
func constantSamples(n int, value float64, lookback int) []features.SequenceSample {
	samples := make([]features.SequenceSample, n)
	for i := range samples {
		window := make([]float64, lookback)
		for j := range window {
			window[j] = value
		}
		samples[i] = features.SequenceSample{Window: window, Target: value}
	}
	return samples
}

func trainedLSTM(t *testing.T) *LSTM {
	t.Helper()
	l := NewLSTM(testLSTMConfig())
	if _, err := l.Train(context.Background(), constantSamples(120, 10, 14)); err != nil {
		t.Fatalf("Train: %v", err)
	}
	return l
}

func flatWindow(value float64, n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = value
	}
	return w
}

func TestLSTMInsufficientData(t *testing.T) {
	t.Parallel()

	l := NewLSTM(testLSTMConfig())
	_, err := l.Train(context.Background(), constantSamples(30, 10, 14))
	if !errors.Is(err, forecast.ErrInsufficientData) {
		t.Errorf("Train(30 windows) err = %v, want ErrInsufficientData", err)
	}
}

func TestLSTMPredictBeforeTraining(t *testing.T) {
	t.Parallel()

	l := NewLSTM(testLSTMConfig())
	_, err := l.Predict(flatWindow(10, 14), 7)
	if !errors.Is(err, forecast.ErrModelNotTrained) {
		t.Errorf("Predict before training err = %v, want ErrModelNotTrained", err)
	}
}

func TestLSTMLearnsFlatSeries(t *testing.T) {
	t.Parallel()

	l := trainedLSTM(t)

	preds, err := l.Predict(flatWindow(10, 14), 1)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if math.Abs(preds[0].Value-10) > 3 {
		t.Errorf("next-day prediction = %g, want near 10 for a flat series", preds[0].Value)
	}

	m := l.Metrics()
	if m == nil {
		t.Fatal("Metrics() = nil after training")
	}
	if m.Epochs != 40 || m.Samples != 120 {
		t.Errorf("metrics = %+v, want epochs 40 and samples 120", m)
	}
	if m.TestMAPE > 30 {
		t.Errorf("test MAPE = %g%%, want modest error on a flat series", m.TestMAPE)
	}
}

func TestLSTMHorizonLength(t *testing.T) {
	t.Parallel()

	l := trainedLSTM(t)

	preds, err := l.Predict(flatWindow(10, 14), 30)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(preds) != 30 {
		t.Errorf("got %d predictions, want 30", len(preds))
	}

	if _, err := l.Predict(flatWindow(10, 14), 0); err == nil {
		t.Error("Predict(horizon=0) must fail")
	}
}

func TestLSTMConfidenceNonIncreasing(t *testing.T) {
	t.Parallel()

	l := trainedLSTM(t)
	preds, err := l.Predict(flatWindow(10, 14), 30)
	if err != nil {
		t.Fatal(err)
	}

	for i, p := range preds {
		if p.Confidence < 0 || p.Confidence > 1 {
			t.Errorf("day %d confidence %g outside [0, 1]", i+1, p.Confidence)
		}
		if p.Value < 0 {
			t.Errorf("day %d prediction %g is negative", i+1, p.Value)
		}
		if i > 0 && p.Confidence > preds[i-1].Confidence {
			t.Errorf("confidence rose from %g to %g at day %d; autoregressive rollout must not gain confidence",
				preds[i-1].Confidence, p.Confidence, i+1)
		}
	}
}

func TestLSTMWindowPadding(t *testing.T) {
	t.Parallel()

	l := trainedLSTM(t)

	// Short windows left-pad with zeros; long windows keep the tail.
	if _, err := l.Predict(flatWindow(10, 5), 3); err != nil {
		t.Errorf("short window: %v", err)
	}
	// A long window must behave exactly like its most recent 14 days.
	long := append(flatWindow(3, 20), flatWindow(10, 14)...)
	preds, err := l.Predict(long, 1)
	if err != nil {
		t.Fatalf("long window: %v", err)
	}
	tail, err := l.Predict(flatWindow(10, 14), 1)
	if err != nil {
		t.Fatal(err)
	}
	if preds[0] != tail[0] {
		t.Errorf("long window prediction %+v, want tail-only prediction %+v", preds[0], tail[0])
	}
}

func TestLSTMExportRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	l := trainedLSTM(t)
	data, err := l.ExportParams()
	if err != nil {
		t.Fatalf("ExportParams: %v", err)
	}

	restored := NewLSTM(testLSTMConfig())
	if err := restored.RestoreParams(data); err != nil {
		t.Fatalf("RestoreParams: %v", err)
	}
	if !restored.IsTrained() {
		t.Fatal("restored model must report trained")
	}

	window := flatWindow(10, 14)
	want, err := l.Predict(window, 7)
	if err != nil {
		t.Fatal(err)
	}
	got, err := restored.Predict(window, 7)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("day %d: restored prediction %+v, want %+v", i+1, got[i], want[i])
		}
	}

	if err := restored.RestoreParams([]byte(`{"hidden":0}`)); err == nil {
		t.Error("malformed artifact must fail to restore")
	}
}

func TestLSTMTrainCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLSTM(testLSTMConfig())
	if _, err := l.Train(ctx, constantSamples(120, 10, 14)); err == nil {
		t.Error("Train with cancelled context must fail")
	}
	if l.IsTrained() {
		t.Error("cancelled training must not mark the model trained")
	}
}
