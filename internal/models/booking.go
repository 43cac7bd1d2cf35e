// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

// Package models defines the shared domain types for Harborcast: booking
// history records consumed from storage and the prediction values produced
// by the forecasting engine.
package models

import (
	"fmt"
	"strings"
	"time"
)

// SortOrder controls the ordering of booking query results.
type SortOrder string

const (
	// OrderAscending returns oldest records first (training order).
	OrderAscending SortOrder = "asc"
	// OrderDescending returns newest records first (inference context).
	OrderDescending SortOrder = "desc"
)

// BookingRecord is one historical booking observation. Records are immutable
// once read; the store owns their lifecycle and the forecasting core only
// consumes bounded, time-ordered slices.
type BookingRecord struct {
	// ID is the storage row identifier (zero for not-yet-persisted rows).
	ID int64 `json:"id,omitempty"`

	// Date is the booking date, truncated to day granularity.
	Date time.Time `json:"date"`

	// OriginPort is the UN/LOCODE of the origin port (e.g. SGSIN).
	OriginPort string `json:"origin_port"`

	// DestinationPort is the UN/LOCODE of the destination port.
	DestinationPort string `json:"destination_port"`

	// ContainerType is the ISO size/type code (20GP, 40GP, 40HC).
	ContainerType string `json:"container_type"`

	// Quantity is the number of empty containers observed.
	Quantity int `json:"quantity"`

	// Customer is the booking party, when known.
	Customer string `json:"customer,omitempty"`

	// Status is the booking status, when known.
	Status string `json:"status,omitempty"`
}

// Validate checks the record for ingestion.
func (r *BookingRecord) Validate() error {
	if r.Date.IsZero() {
		return fmt.Errorf("booking record: date is required")
	}
	if strings.TrimSpace(r.OriginPort) == "" {
		return fmt.Errorf("booking record: origin port is required")
	}
	if strings.TrimSpace(r.ContainerType) == "" {
		return fmt.Errorf("booking record: container type is required")
	}
	if r.Quantity < 0 {
		return fmt.Errorf("booking record: quantity must be non-negative, got %d", r.Quantity)
	}
	return nil
}

// Day returns the record date truncated to UTC midnight.
func (r *BookingRecord) Day() time.Time {
	return r.Date.UTC().Truncate(24 * time.Hour)
}

// BookingFilter bounds a booking history query. A zero-value field means
// "no constraint" except Limit, which must always be set to keep reads
// bounded.
type BookingFilter struct {
	// OriginPort restricts results to one origin port when non-empty.
	OriginPort string `json:"origin_port,omitempty"`

	// ContainerType restricts results to one size/type code when non-empty.
	ContainerType string `json:"container_type,omitempty"`

	// Since is the inclusive lower date bound.
	Since time.Time `json:"since,omitempty"`

	// Until is the inclusive upper date bound.
	Until time.Time `json:"until,omitempty"`

	// Order selects chronological or reverse-chronological results.
	Order SortOrder `json:"order,omitempty"`

	// Limit caps the number of rows returned. Required.
	Limit int `json:"limit"`
}

// Validate checks that the filter keeps the read bounded.
func (f *BookingFilter) Validate() error {
	if f.Limit <= 0 {
		return fmt.Errorf("booking filter: limit must be positive, got %d", f.Limit)
	}
	switch f.Order {
	case "", OrderAscending, OrderDescending:
	default:
		return fmt.Errorf("booking filter: unknown sort order %q", f.Order)
	}
	return nil
}
