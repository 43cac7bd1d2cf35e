// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package features

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/harborcast/harborcast/internal/models"
)

// ErrNoObservations indicates the builder received no usable history for
// the requested slice.
var ErrNoObservations = errors.New("features: no observations before target date")

// day is the granularity of all series handled by the builder.
const day = 24 * time.Hour

// Vector is one fixed-schema feature vector. Values are ordered exactly as
// Builder.FeatureNames; LowConfidence marks vectors whose lag or rolling
// windows were degraded by short history.
type Vector struct {
	Values        []float64
	LowConfidence bool
}

// Builder derives feature vectors and sequence windows from booking history.
// A Builder is immutable after construction and safe for concurrent use.
type Builder struct {
	cfg         Config
	names       []string
	fingerprint string
}

// NewBuilder creates a Builder for the given configuration.
func NewBuilder(cfg Config) (*Builder, error) {
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	names := featureNames(cfg)
	return &Builder{
		cfg:         cfg,
		names:       names,
		fingerprint: fingerprintNames(names),
	}, nil
}

// FeatureNames returns the ordered feature names of this schema.
func (b *Builder) FeatureNames() []string {
	return append([]string(nil), b.names...)
}

// FeatureCount returns the fixed vector width.
func (b *Builder) FeatureCount() int {
	return len(b.names)
}

// SchemaFingerprint identifies the feature schema. Artifacts trained under a
// different fingerprint must not be used for inference.
func (b *Builder) SchemaFingerprint() string {
	return b.fingerprint
}

// SequenceLookback returns the configured sequence window length.
func (b *Builder) SequenceLookback() int {
	return b.cfg.SequenceLookback
}

// Build derives the feature vector for one (date, port, type) target from
// the given history. Only observations strictly before the target day are
// used; the builder never looks ahead.
func (b *Builder) Build(records []models.BookingRecord, target time.Time, port, containerType string) (Vector, error) {
	hist := newHistory(records, target, port, containerType)
	if !hist.hasData {
		return Vector{}, fmt.Errorf("%w: port=%q type=%q", ErrNoObservations, port, containerType)
	}
	return b.buildFromHistory(hist, target), nil
}

// TrainingSample pairs a feature vector with its observed target count.
type TrainingSample struct {
	Vector Vector
	Target float64
	Date   time.Time
	Port   string
	Type   string
}

// TrainingSet derives one sample per observed day per (port, type) slice.
// Empty port/containerType build over every slice present in the records;
// non-empty values restrict to that slice. Samples are in chronological
// order within each slice.
func (b *Builder) TrainingSet(records []models.BookingRecord, port, containerType string) ([]TrainingSample, error) {
	groups := groupSlices(records, port, containerType)
	if len(groups) == 0 {
		return nil, ErrNoObservations
	}

	var samples []TrainingSample
	for _, g := range groups {
		hist := newHistory(records, farFuture, g.port, g.containerType)
		if !hist.hasData {
			continue
		}

		// Start one day after first observation so every sample has at
		// least one prior day of context.
		for d := hist.firstDay.Add(day); !d.After(hist.lastDay); d = d.Add(day) {
			sliced := hist.truncated(d)
			samples = append(samples, TrainingSample{
				Vector: b.buildFromHistory(sliced, d),
				Target: hist.slice[dayKey(d)],
				Date:   d,
				Port:   g.port,
				Type:   g.containerType,
			})
		}
	}

	if len(samples) == 0 {
		return nil, ErrNoObservations
	}

	return samples, nil
}

// farFuture is a sentinel target that keeps the whole history visible.
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// buildFromHistory computes the vector for a target day against prepared
// history. hist must contain only days strictly before target.
func (b *Builder) buildFromHistory(hist history, target time.Time) Vector {
	values := make([]float64, 0, len(b.names))
	lowConfidence := false

	// Temporal block.
	t := target.UTC()
	values = append(values,
		float64(t.Weekday()),
		float64(t.Day()),
		float64(t.Month()),
		float64((int(t.Month())-1)/3+1),
		boolFeature(t.Weekday() == time.Saturday || t.Weekday() == time.Sunday),
		boolFeature(t.Day() == 1),
		boolFeature(t.AddDate(0, 0, 1).Day() == 1),
	)

	// Lag block. Lags that reach past the first observed day degrade to the
	// mean of whatever prior days exist.
	for _, lag := range b.cfg.LagDays {
		lagDay := target.Add(-time.Duration(lag) * day)
		if lagDay.Before(hist.firstDay) {
			values = append(values, mean(hist.sliceWindow(target, availableDays(hist, target))))
			lowConfidence = true
			continue
		}
		values = append(values, hist.slice[dayKey(lagDay)])
	}

	// Rolling block.
	for _, w := range b.cfg.RollingWindows {
		window := hist.sliceWindow(target, w)
		if len(window) < w {
			lowConfidence = true
		}
		values = append(values, mean(window), stddev(window))
	}

	// Cross-sectional block.
	portMean := mean(hist.portWindow(target, b.cfg.AggregateWindow))
	typeMean := mean(hist.typeWindow(target, b.cfg.AggregateWindow))
	sliceMean := mean(hist.sliceWindow(target, b.cfg.AggregateWindow))
	share := 0.0
	if portMean > 0 {
		share = sliceMean / portMean
	}
	values = append(values, portMean, typeMean, share)

	return Vector{Values: values, LowConfidence: lowConfidence}
}

// history holds zero-filled daily totals for one (port, type) slice plus
// the cross-sectional port and type totals, bounded to days strictly before
// the build target.
type history struct {
	slice    map[int64]float64 // (port, type) daily totals
	port     map[int64]float64 // port daily totals across all types
	typ      map[int64]float64 // type daily totals across all ports
	firstDay time.Time
	lastDay  time.Time
	hasData  bool
}

// newHistory aggregates records into daily totals for the given slice,
// discarding observations on or after the target day.
func newHistory(records []models.BookingRecord, target time.Time, port, containerType string) history {
	h := history{
		slice: make(map[int64]float64),
		port:  make(map[int64]float64),
		typ:   make(map[int64]float64),
	}
	targetDay := target.UTC().Truncate(day)

	for i := range records {
		r := &records[i]
		d := r.Day()
		if !d.Before(targetDay) {
			continue
		}

		q := float64(r.Quantity)
		if port == "" || r.OriginPort == port {
			h.port[dayKey(d)] += q
		}
		if containerType == "" || r.ContainerType == containerType {
			h.typ[dayKey(d)] += q
		}

		matchesPort := port == "" || r.OriginPort == port
		matchesType := containerType == "" || r.ContainerType == containerType
		if matchesPort && matchesType {
			h.slice[dayKey(d)] += q
			if !h.hasData || d.Before(h.firstDay) {
				h.firstDay = d
			}
			if !h.hasData || d.After(h.lastDay) {
				h.lastDay = d
			}
			h.hasData = true
		}
	}

	return h
}

// truncated returns a view of the history restricted to days strictly
// before the target. The maps are shared; window helpers respect bounds.
func (h history) truncated(target time.Time) history {
	out := h
	cut := target.UTC().Truncate(day).Add(-day)
	if cut.Before(h.firstDay) {
		out.hasData = false
		return out
	}
	if cut.Before(h.lastDay) {
		out.lastDay = cut
	}
	return out
}

// sliceWindow returns the slice totals for the n days before target
// (zero-filled), truncated at the first observed day.
func (h history) sliceWindow(target time.Time, n int) []float64 {
	return h.window(h.slice, target, n)
}

// portWindow returns port totals for the n days before target.
func (h history) portWindow(target time.Time, n int) []float64 {
	return h.window(h.port, target, n)
}

// typeWindow returns container-type totals for the n days before target.
func (h history) typeWindow(target time.Time, n int) []float64 {
	return h.window(h.typ, target, n)
}

func (h history) window(series map[int64]float64, target time.Time, n int) []float64 {
	if !h.hasData || n <= 0 {
		return nil
	}

	targetDay := target.UTC().Truncate(day)
	out := make([]float64, 0, n)
	for i := n; i >= 1; i-- {
		d := targetDay.Add(-time.Duration(i) * day)
		if d.Before(h.firstDay) || d.After(h.lastDay) {
			continue
		}
		out = append(out, series[dayKey(d)])
	}
	return out
}

// availableDays counts observed-span days strictly before target.
func availableDays(h history, target time.Time) int {
	if !h.hasData {
		return 0
	}
	targetDay := target.UTC().Truncate(day)
	end := h.lastDay
	if targetDay.Add(-day).Before(end) {
		end = targetDay.Add(-day)
	}
	if end.Before(h.firstDay) {
		return 0
	}
	return int(end.Sub(h.firstDay)/day) + 1
}

// sliceGroup identifies one (port, type) series present in the records.
type sliceGroup struct {
	port          string
	containerType string
}

// groupSlices lists the slices to train over. Explicit port/type filters
// collapse to a single group.
func groupSlices(records []models.BookingRecord, port, containerType string) []sliceGroup {
	if port != "" && containerType != "" {
		return []sliceGroup{{port: port, containerType: containerType}}
	}

	seen := make(map[sliceGroup]struct{})
	for i := range records {
		r := &records[i]
		if port != "" && r.OriginPort != port {
			continue
		}
		if containerType != "" && r.ContainerType != containerType {
			continue
		}
		g := sliceGroup{port: r.OriginPort, containerType: r.ContainerType}
		if port == "" && containerType != "" {
			g.containerType = containerType
		}
		if port != "" {
			g.port = port
		}
		seen[g] = struct{}{}
	}

	groups := make([]sliceGroup, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].port != groups[j].port {
			return groups[i].port < groups[j].port
		}
		return groups[i].containerType < groups[j].containerType
	})
	return groups
}

func dayKey(t time.Time) int64 {
	return t.UTC().Truncate(day).Unix()
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}
