// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package features

import (
	"errors"
	"testing"
	"time"

	"github.com/harborcast/harborcast/internal/models"
)

func dailyRecords(n int, port, containerType string, start time.Time, quantity func(i int) int) []models.BookingRecord {
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

func TestNewBuilderValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"no lags", Config{RollingWindows: []int{7}, AggregateWindow: 30, SequenceLookback: 14}, true},
		{"zero lag", Config{LagDays: []int{0}, RollingWindows: []int{7}, AggregateWindow: 30, SequenceLookback: 14}, true},
		{"no rolling windows", Config{LagDays: []int{1}, AggregateWindow: 30, SequenceLookback: 14}, true},
		{"window of one", Config{LagDays: []int{1}, RollingWindows: []int{1}, AggregateWindow: 30, SequenceLookback: 14}, true},
		{"short lookback", Config{LagDays: []int{1}, RollingWindows: []int{7}, AggregateWindow: 30, SequenceLookback: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewBuilder(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewBuilder() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchemaIsPureFunctionOfConfig(t *testing.T) {
	t.Parallel()

	a, err := NewBuilder(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBuilder(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	if a.SchemaFingerprint() != b.SchemaFingerprint() {
		t.Error("identical configs must produce identical fingerprints")
	}
	if a.FeatureCount() != len(a.FeatureNames()) {
		t.Errorf("FeatureCount() = %d, len(FeatureNames()) = %d", a.FeatureCount(), len(a.FeatureNames()))
	}

	// Unordered lag lists normalize to the same schema.
	shuffled := DefaultConfig()
	shuffled.LagDays = []int{14, 1, 7, 2, 3}
	c, err := NewBuilder(shuffled)
	if err != nil {
		t.Fatal(err)
	}
	if a.SchemaFingerprint() != c.SchemaFingerprint() {
		t.Error("lag order must not change the fingerprint")
	}

	// A different config changes the fingerprint.
	changed := DefaultConfig()
	changed.LagDays = []int{1, 2}
	d, err := NewBuilder(changed)
	if err != nil {
		t.Fatal(err)
	}
	if a.SchemaFingerprint() == d.SchemaFingerprint() {
		t.Error("different configs must produce different fingerprints")
	}
}

func TestBuildVectorShape(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := dailyRecords(60, "SGSIN", "40HC", start, func(i int) int { return 10 + i%7 })
	target := start.AddDate(0, 0, 60)

	vec, err := b.Build(records, target, "SGSIN", "40HC")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(vec.Values) != b.FeatureCount() {
		t.Fatalf("vector width = %d, want %d", len(vec.Values), b.FeatureCount())
	}
	if vec.LowConfidence {
		t.Error("60 days of history should not degrade any default window")
	}
	for i, v := range vec.Values {
		if v != v { // NaN check
			t.Errorf("feature %q is NaN", b.FeatureNames()[i])
		}
	}
}

func TestBuildNeverLooksAhead(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	target := start.AddDate(0, 0, 30)

	base := dailyRecords(30, "SGSIN", "40HC", start, func(i int) int { return 20 })

	// Add records on and after the target day with wildly different values;
	// they must not influence the vector.
	polluted := append(append([]models.BookingRecord(nil), base...),
		dailyRecords(10, "SGSIN", "40HC", target, func(i int) int { return 9999 })...)

	clean, err := b.Build(base, target, "SGSIN", "40HC")
	if err != nil {
		t.Fatal(err)
	}
	dirty, err := b.Build(polluted, target, "SGSIN", "40HC")
	if err != nil {
		t.Fatal(err)
	}

	for i := range clean.Values {
		if clean.Values[i] != dirty.Values[i] {
			t.Errorf("feature %q leaked future data: %g != %g",
				b.FeatureNames()[i], clean.Values[i], dirty.Values[i])
		}
	}
}

func TestBuildLagValues(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Quantity = day index, so lag_1 at day 30 should be 29.
	records := dailyRecords(30, "SGSIN", "40HC", start, func(i int) int { return i })
	target := start.AddDate(0, 0, 30)

	vec, err := b.Build(records, target, "SGSIN", "40HC")
	if err != nil {
		t.Fatal(err)
	}

	names := b.FeatureNames()
	idx := func(name string) int {
		for i, n := range names {
			if n == name {
				return i
			}
		}
		t.Fatalf("feature %q not in schema", name)
		return -1
	}

	if got := vec.Values[idx("lag_1d")]; got != 29 {
		t.Errorf("lag_1d = %g, want 29", got)
	}
	if got := vec.Values[idx("lag_7d")]; got != 23 {
		t.Errorf("lag_7d = %g, want 23", got)
	}
}

func TestBuildDegradesShortHistory(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := dailyRecords(5, "SGSIN", "40HC", start, func(i int) int { return 10 })
	target := start.AddDate(0, 0, 5)

	vec, err := b.Build(records, target, "SGSIN", "40HC")
	if err != nil {
		t.Fatal(err)
	}

	if !vec.LowConfidence {
		t.Error("5 days of history must flag the vector low-confidence")
	}
	if len(vec.Values) != b.FeatureCount() {
		t.Errorf("degraded vector width = %d, want %d", len(vec.Values), b.FeatureCount())
	}
}

func TestBuildNoObservations(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := dailyRecords(10, "SGSIN", "40HC", start, func(i int) int { return 10 })

	_, err = b.Build(records, start.AddDate(0, 0, 20), "USLAX", "40HC")
	if !errors.Is(err, ErrNoObservations) {
		t.Errorf("Build for unknown port: err = %v, want ErrNoObservations", err)
	}
}

func TestTrainingSetChronologyAndTargets(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := dailyRecords(40, "SGSIN", "40HC", start, func(i int) int { return i })

	samples, err := b.TrainingSet(records, "SGSIN", "40HC")
	if err != nil {
		t.Fatalf("TrainingSet: %v", err)
	}

	// Days 1..39 are usable (day 0 has no prior context).
	if len(samples) != 39 {
		t.Fatalf("got %d samples, want 39", len(samples))
	}

	for i, s := range samples {
		if len(s.Vector.Values) != b.FeatureCount() {
			t.Fatalf("sample %d width = %d, want %d", i, len(s.Vector.Values), b.FeatureCount())
		}
		if want := float64(i + 1); s.Target != want {
			t.Errorf("sample %d target = %g, want %g", i, s.Target, want)
		}
		if i > 0 && s.Date.Before(samples[i-1].Date) {
			t.Errorf("samples out of chronological order at %d", i)
		}
	}
}

func TestTrainingSetMultipleSlices(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := append(
		dailyRecords(20, "SGSIN", "40HC", start, func(i int) int { return 10 }),
		dailyRecords(20, "NLRTM", "20GP", start, func(i int) int { return 5 })...)

	samples, err := b.TrainingSet(records, "", "")
	if err != nil {
		t.Fatalf("TrainingSet: %v", err)
	}
	if len(samples) != 38 { // 19 per slice
		t.Errorf("got %d samples, want 38", len(samples))
	}
}

func TestSequenceWindow(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := dailyRecords(30, "SGSIN", "40HC", start, func(i int) int { return i })
	target := start.AddDate(0, 0, 30)

	window, err := b.SequenceWindow(records, target, "SGSIN", "40HC")
	if err != nil {
		t.Fatalf("SequenceWindow: %v", err)
	}

	if len(window) != b.SequenceLookback() {
		t.Fatalf("window length = %d, want %d", len(window), b.SequenceLookback())
	}
	// Oldest first: window[0] is day 30-lookback, last entry is day 29.
	if got, want := window[len(window)-1], 29.0; got != want {
		t.Errorf("most recent entry = %g, want %g", got, want)
	}
	if got, want := window[0], float64(30-b.SequenceLookback()); got != want {
		t.Errorf("oldest entry = %g, want %g", got, want)
	}
}

func TestSequenceTrainingSetWindows(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := dailyRecords(30, "SGSIN", "40HC", start, func(i int) int { return i })

	samples, err := b.SequenceTrainingSet(records, "SGSIN", "40HC")
	if err != nil {
		t.Fatalf("SequenceTrainingSet: %v", err)
	}
	if len(samples) != 29 {
		t.Fatalf("got %d samples, want 29", len(samples))
	}

	for i, s := range samples {
		if len(s.Window) != b.SequenceLookback() {
			t.Fatalf("sample %d window length = %d, want %d", i, len(s.Window), b.SequenceLookback())
		}
		if want := float64(i + 1); s.Target != want {
			t.Errorf("sample %d target = %g, want %g", i, s.Target, want)
		}
	}

	// The final sample's window must end with the day before its target.
	last := samples[len(samples)-1]
	if got, want := last.Window[len(last.Window)-1], last.Target-1; got != want {
		t.Errorf("final window last entry = %g, want %g", got, want)
	}
}
