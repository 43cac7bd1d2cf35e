// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package forecast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harborcast/harborcast/internal/features"
	"github.com/harborcast/harborcast/internal/models"
)

// fakeShortModel is a controllable ShortHorizonModel for pipeline tests.
type fakeShortModel struct {
	mu            sync.Mutex
	trained       bool
	version       int
	lastTrainedAt time.Time

	block      chan struct{} // non-nil blocks Train until closed
	trainErr   error
	prediction PointPrediction
	predictErr error
	metrics    *ShortModelMetrics
	restored   []byte
}

func (f *fakeShortModel) Name() string { return "fake-short" }

func (f *fakeShortModel) IsTrained() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trained
}

func (f *fakeShortModel) Version() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

func (f *fakeShortModel) LastTrainedAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastTrainedAt
}

func (f *fakeShortModel) Train(ctx context.Context, samples []features.TrainingSample) (*ShortModelMetrics, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.trainErr != nil {
		return nil, f.trainErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.trained = true
	f.version++
	f.lastTrainedAt = time.Now().UTC()
	if f.metrics == nil {
		f.metrics = &ShortModelMetrics{R2: 0.9, Samples: len(samples)}
	}
	m := *f.metrics
	return &m, nil
}

func (f *fakeShortModel) Predict(features.Vector) (PointPrediction, error) {
	if f.predictErr != nil {
		return PointPrediction{}, f.predictErr
	}
	if !f.IsTrained() {
		return PointPrediction{}, ErrModelNotTrained
	}
	return f.prediction, nil
}

func (f *fakeShortModel) FeatureImportance() ([]FeatureWeight, error) {
	return []FeatureWeight{{Name: "lag_1d", Weight: 1}}, nil
}

func (f *fakeShortModel) Metrics() *ShortModelMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

func (f *fakeShortModel) ExportParams() ([]byte, error) {
	return []byte(`{"fake":"short"}`), nil
}

func (f *fakeShortModel) RestoreParams(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = data
	f.trained = true
	f.version++
	return nil
}

// fakeLongModel is a controllable LongHorizonModel.
type fakeLongModel struct {
	mu            sync.Mutex
	trained       bool
	version       int
	lastTrainedAt time.Time

	trainErr   error
	value      float64
	confidence float64
	predictErr error
	metrics    *LongModelMetrics
	restored   []byte
}

func (f *fakeLongModel) Name() string { return "fake-long" }

func (f *fakeLongModel) IsTrained() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trained
}

func (f *fakeLongModel) Version() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

func (f *fakeLongModel) LastTrainedAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastTrainedAt
}

func (f *fakeLongModel) Train(ctx context.Context, samples []features.SequenceSample) (*LongModelMetrics, error) {
	if f.trainErr != nil {
		return nil, f.trainErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.trained = true
	f.version++
	f.lastTrainedAt = time.Now().UTC()
	if f.metrics == nil {
		f.metrics = &LongModelMetrics{TestMAPE: 12, Samples: len(samples)}
	}
	m := *f.metrics
	return &m, nil
}

func (f *fakeLongModel) Predict(window []float64, horizonDays int) ([]PointPrediction, error) {
	if f.predictErr != nil {
		return nil, f.predictErr
	}
	if !f.IsTrained() {
		return nil, ErrModelNotTrained
	}

	out := make([]PointPrediction, horizonDays)
	conf := f.confidence
	for i := range out {
		out[i] = PointPrediction{Value: f.value, Confidence: conf}
		conf *= 0.97
	}
	return out, nil
}

func (f *fakeLongModel) Metrics() *LongModelMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

func (f *fakeLongModel) ExportParams() ([]byte, error) {
	return []byte(`{"fake":"long"}`), nil
}

func (f *fakeLongModel) RestoreParams(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = data
	f.trained = true
	f.version++
	return nil
}

// fakeSource serves a fixed record set.
type fakeSource struct {
	mu      sync.Mutex
	records []models.BookingRecord
	err     error
	queries int
}

func (f *fakeSource) QueryBookings(_ context.Context, _ models.BookingFilter) ([]models.BookingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeSource) CountBookings(_ context.Context, _, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return len(f.records), nil
}

// countlessSource serves records but cannot count them.
type countlessSource struct {
	fakeSource
}

func (s *countlessSource) CountBookings(context.Context, string, string) (int, error) {
	return 0, errors.New("count unavailable")
}

// fakeCache is an in-memory Cache with hit accounting.
type fakeCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	hits   int
	clears int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if ok {
		f.hits++
	}
	return v, ok
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
}

func (f *fakeCache) Clear(_ context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = make(map[string][]byte)
	f.clears++
}

// bookingSeries builds n consecutive daily records for one slice.
func bookingSeries(n int, port, containerType string, start time.Time, quantity func(i int) int) []models.BookingRecord {
	records := make([]models.BookingRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, models.BookingRecord{
			Date:          start.AddDate(0, 0, i),
			OriginPort:    port,
			ContainerType: containerType,
			Quantity:      quantity(i),
		})
	}
	return records
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testBuilder(t *testing.T) *features.Builder {
	t.Helper()
	b, err := features.NewBuilder(features.DefaultConfig())
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}
