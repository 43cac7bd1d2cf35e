// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// requestValidator is shared across handlers; validator.Validate is safe for
// concurrent use and caches struct metadata.
var requestValidator = validator.New()

// defaultHorizonDays applies when the forecast request omits ?days.
const defaultHorizonDays = 7

// ForecastRequest carries the parsed forecast query parameters. Horizon
// bounds are enforced by the forecast engine so out-of-range days map onto
// the dedicated INVALID_HORIZON code rather than a generic validation error.
type ForecastRequest struct {
	Days          int
	Port          string `validate:"omitempty,alphanum,max=10"`
	ContainerType string `validate:"omitempty,alphanum,max=10"`
}

// parseForecastRequest extracts and validates the forecast query. Port and
// container type codes are normalised to upper case to match stored records.
func parseForecastRequest(r *http.Request) (*ForecastRequest, error) {
	q := r.URL.Query()

	days := defaultHorizonDays
	if raw := q.Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("days must be an integer, got %q", raw)
		}
		days = parsed
	}

	req := &ForecastRequest{
		Days:          days,
		Port:          strings.ToUpper(strings.TrimSpace(q.Get("port"))),
		ContainerType: strings.ToUpper(strings.TrimSpace(q.Get("containerType"))),
	}
	if err := requestValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid forecast request: %w", err)
	}
	return req, nil
}
