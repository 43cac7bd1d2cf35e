// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

// Package features derives fixed-schema numeric feature vectors from raw
// booking history. The feature layout is a pure function of configuration,
// never of input contents, so a model artifact trained under one
// configuration stays valid for inference under the same configuration.
package features

import (
	"fmt"
	"sort"
)

// Config controls the feature schema. Changing any field changes the schema
// fingerprint and invalidates previously trained artifacts.
type Config struct {
	// LagDays lists the lag offsets, in days, included as features.
	// Default: 1, 2, 3, 7, 14.
	LagDays []int `json:"lag_days"`

	// RollingWindows lists the rolling mean/std window lengths in days.
	// Default: 7, 14, 30.
	RollingWindows []int `json:"rolling_windows"`

	// AggregateWindow is the window, in days, for cross-sectional port and
	// type aggregates. Default: 30.
	AggregateWindow int `json:"aggregate_window"`

	// SequenceLookback is the input window length for the sequence model.
	// Default: 14.
	SequenceLookback int `json:"sequence_lookback"`
}

// DefaultConfig returns the default feature configuration.
func DefaultConfig() Config {
	return Config{
		LagDays:          []int{1, 2, 3, 7, 14},
		RollingWindows:   []int{7, 14, 30},
		AggregateWindow:  30,
		SequenceLookback: 14,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.LagDays) == 0 {
		return fmt.Errorf("feature config: at least one lag day required")
	}
	for _, d := range c.LagDays {
		if d < 1 {
			return fmt.Errorf("feature config: lag days must be >= 1, got %d", d)
		}
	}
	if len(c.RollingWindows) == 0 {
		return fmt.Errorf("feature config: at least one rolling window required")
	}
	for _, w := range c.RollingWindows {
		if w < 2 {
			return fmt.Errorf("feature config: rolling windows must be >= 2, got %d", w)
		}
	}
	if c.AggregateWindow < 1 {
		return fmt.Errorf("feature config: aggregate window must be >= 1, got %d", c.AggregateWindow)
	}
	if c.SequenceLookback < 2 {
		return fmt.Errorf("feature config: sequence lookback must be >= 2, got %d", c.SequenceLookback)
	}
	return nil
}

// normalized returns a copy with lag and window lists sorted ascending, so
// equivalent configurations produce identical schemas.
func (c Config) normalized() Config {
	out := Config{
		LagDays:          append([]int(nil), c.LagDays...),
		RollingWindows:   append([]int(nil), c.RollingWindows...),
		AggregateWindow:  c.AggregateWindow,
		SequenceLookback: c.SequenceLookback,
	}
	sort.Ints(out.LagDays)
	sort.Ints(out.RollingWindows)
	return out
}
