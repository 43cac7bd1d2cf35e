// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package features

import (
	"fmt"
	"time"

	"github.com/harborcast/harborcast/internal/models"
)

// SequenceWindow returns the daily totals for the configured lookback ending
// the day before target, oldest first and zero-filled for missing days. This
// is the recurrent model's inference input.
func (b *Builder) SequenceWindow(records []models.BookingRecord, target time.Time, port, containerType string) ([]float64, error) {
	hist := newHistory(records, target, port, containerType)
	if !hist.hasData {
		return nil, fmt.Errorf("%w: port=%q type=%q", ErrNoObservations, port, containerType)
	}

	targetDay := target.UTC().Truncate(day)
	window := make([]float64, b.cfg.SequenceLookback)
	for i := 0; i < b.cfg.SequenceLookback; i++ {
		d := targetDay.Add(-time.Duration(b.cfg.SequenceLookback-i) * day)
		window[i] = hist.slice[dayKey(d)]
	}

	return window, nil
}

// SequenceSample pairs an input window with the next day's observed total.
type SequenceSample struct {
	Window []float64
	Target float64
}

// SequenceTrainingSet slides the lookback window across every (port, type)
// slice and pairs each window with the following day's total. Windows always
// have the configured length; days before the slice's first observation are
// zero-filled.
func (b *Builder) SequenceTrainingSet(records []models.BookingRecord, port, containerType string) ([]SequenceSample, error) {
	groups := groupSlices(records, port, containerType)
	if len(groups) == 0 {
		return nil, ErrNoObservations
	}

	lookback := b.cfg.SequenceLookback
	var samples []SequenceSample
	for _, g := range groups {
		hist := newHistory(records, farFuture, g.port, g.containerType)
		if !hist.hasData {
			continue
		}

		// Each target day needs at least one real observation behind it.
		for d := hist.firstDay.Add(day); !d.After(hist.lastDay); d = d.Add(day) {
			window := make([]float64, lookback)
			for i := 0; i < lookback; i++ {
				wd := d.Add(-time.Duration(lookback-i) * day)
				if wd.Before(hist.firstDay) {
					continue // zero-filled
				}
				window[i] = hist.slice[dayKey(wd)]
			}
			samples = append(samples, SequenceSample{
				Window: window,
				Target: hist.slice[dayKey(d)],
			})
		}
	}

	if len(samples) == 0 {
		return nil, ErrNoObservations
	}

	return samples, nil
}
