// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/harborcast/harborcast/internal/models"
)

// QueryBookings returns booking records matching the filter, ordered by
// booking date. The filter's Limit keeps the read bounded; callers choose
// ascending order for training and descending for inference context.
func (db *DB) QueryBookings(ctx context.Context, filter models.BookingFilter) ([]models.BookingRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		conditions []string
		args       []interface{}
	)

	if filter.OriginPort != "" {
		conditions = append(conditions, "origin_port = ?")
		args = append(args, filter.OriginPort)
	}
	if filter.ContainerType != "" {
		conditions = append(conditions, "container_type = ?")
		args = append(args, filter.ContainerType)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "booking_date >= ?")
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "booking_date <= ?")
		args = append(args, filter.Until)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	direction := "ASC"
	if filter.Order == models.OrderDescending {
		direction = "DESC"
	}

	query := fmt.Sprintf(`
	SELECT id, booking_date, origin_port, destination_port, container_type,
		quantity, customer, status
	FROM bookings
	%s
	ORDER BY booking_date %s, id %s
	LIMIT ?`, where, direction, direction)
	args = append(args, filter.Limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var records []models.BookingRecord
	for rows.Next() {
		var (
			r        models.BookingRecord
			destPort sql.NullString
			customer sql.NullString
			status   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Date, &r.OriginPort, &destPort,
			&r.ContainerType, &r.Quantity, &customer, &status); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		r.DestinationPort = destPort.String
		r.Customer = customer.String
		r.Status = status.String
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return records, nil
}

// InsertBookings bulk-inserts booking records inside one transaction.
// Returns the number of rows inserted. Callers must invalidate derived
// caches afterwards; the store does not do that itself.
func (db *DB) InsertBookings(ctx context.Context, records []models.BookingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	for i := range records {
		if err := records[i].Validate(); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO bookings (booking_date, origin_port, destination_port,
		container_type, quantity, customer, status)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range records {
		r := &records[i]
		if _, err := stmt.ExecContext(ctx, r.Day(), r.OriginPort,
			nullable(r.DestinationPort), r.ContainerType, r.Quantity,
			nullable(r.Customer), nullable(r.Status)); err != nil {
			return 0, fmt.Errorf("insert record %d: %w", i, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bookings: %w", err)
	}

	return inserted, nil
}

// CountBookings returns the number of rows matching the port/type filter.
// Empty filter values count everything.
func (db *DB) CountBookings(ctx context.Context, originPort, containerType string) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		conditions []string
		args       []interface{}
	)
	if originPort != "" {
		conditions = append(conditions, "origin_port = ?")
		args = append(args, originPort)
	}
	if containerType != "" {
		conditions = append(conditions, "container_type = ?")
		args = append(args, containerType)
	}

	query := "SELECT count(*) FROM bookings"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}

	return count, nil
}

// LatestBookingDate returns the most recent booking date, or the zero time
// when the store is empty.
func (db *DB) LatestBookingDate(ctx context.Context) (time.Time, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var latest sql.NullTime
	if err := db.conn.QueryRowContext(ctx, "SELECT max(booking_date) FROM bookings").Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("latest booking date: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time, nil
}

// nullable converts an empty string to a SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
