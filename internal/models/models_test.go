// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package models

import (
	"testing"
	"time"
)

func TestBookingRecordValidate(t *testing.T) {
	t.Parallel()

	valid := BookingRecord{
		Date:            time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		OriginPort:      "SGSIN",
		DestinationPort: "NLRTM",
		ContainerType:   "40HC",
		Quantity:        12,
	}

	tests := []struct {
		name    string
		mutate  func(*BookingRecord)
		wantErr bool
	}{
		{"valid", func(r *BookingRecord) {}, false},
		{"zero quantity is allowed", func(r *BookingRecord) { r.Quantity = 0 }, false},
		{"missing date", func(r *BookingRecord) { r.Date = time.Time{} }, true},
		{"missing origin", func(r *BookingRecord) { r.OriginPort = "  " }, true},
		{"missing container type", func(r *BookingRecord) { r.ContainerType = "" }, true},
		{"negative quantity", func(r *BookingRecord) { r.Quantity = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := valid
			tt.mutate(&rec)
			err := rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBookingRecordDay(t *testing.T) {
	t.Parallel()

	rec := BookingRecord{Date: time.Date(2026, 3, 1, 17, 45, 3, 0, time.FixedZone("UTC+8", 8*3600))}
	day := rec.Day()

	if day.Hour() != 0 || day.Minute() != 0 || day.Second() != 0 {
		t.Errorf("Day() = %v, want midnight", day)
	}
	if day.Location() != time.UTC {
		t.Errorf("Day() location = %v, want UTC", day.Location())
	}
}

func TestBookingFilterValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		filter  BookingFilter
		wantErr bool
	}{
		{"valid ascending", BookingFilter{Limit: 100, Order: OrderAscending}, false},
		{"valid descending", BookingFilter{Limit: 1, Order: OrderDescending}, false},
		{"default order", BookingFilter{Limit: 10}, false},
		{"zero limit", BookingFilter{Limit: 0}, true},
		{"negative limit", BookingFilter{Limit: -5}, true},
		{"bogus order", BookingFilter{Limit: 10, Order: "sideways"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.filter.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
