// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package cache

import (
	"crypto/sha256"
	"fmt"

	"github.com/goccy/go-json"
)

// Key builds a deterministic cache key from a namespace and any
// JSON-encodable parameter value. Struct fields encode in declaration
// order and map keys are sorted, so equal parameters always hash to the
// same key regardless of construction order.
func Key(namespace string, params any) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Unencodable parameters still need a usable key; fall back to the
		// value's print form.
		data = []byte(fmt.Sprintf("%+v", params))
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", namespace, sum[:16])
}
