// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package features

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// featureNames builds the ordered feature name list for a configuration.
// The order here is the schema: temporal block, then lags, then rolling
// aggregates, then cross-sectional aggregates.
func featureNames(cfg Config) []string {
	names := []string{
		"day_of_week",
		"day_of_month",
		"month",
		"quarter",
		"is_weekend",
		"is_month_start",
		"is_month_end",
	}

	for _, d := range cfg.LagDays {
		names = append(names, fmt.Sprintf("lag_%dd", d))
	}

	for _, w := range cfg.RollingWindows {
		names = append(names, fmt.Sprintf("roll_mean_%dd", w))
		names = append(names, fmt.Sprintf("roll_std_%dd", w))
	}

	names = append(names,
		fmt.Sprintf("port_mean_%dd", cfg.AggregateWindow),
		fmt.Sprintf("type_mean_%dd", cfg.AggregateWindow),
		"share_of_port",
	)

	return names
}

// fingerprintNames hashes the ordered feature name list. Artifacts store the
// fingerprint; inference refuses to run against a different schema.
func fingerprintNames(names []string) string {
	sum := sha256.Sum256([]byte(strings.Join(names, "\n")))
	return fmt.Sprintf("%x", sum[:16])
}
