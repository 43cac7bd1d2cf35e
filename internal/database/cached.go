// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package database

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/harborcast/harborcast/internal/cache"
	"github.com/harborcast/harborcast/internal/logging"
	"github.com/harborcast/harborcast/internal/models"
)

// CachedDB decorates booking reads with the observation cache so repeated
// forecast requests over the same slice do not re-scan history. Writes go
// straight to the store; callers must Invalidate after ingesting.
type CachedDB struct {
	db    *DB
	cache *cache.Tiered
	ttl   time.Duration
}

// NewCachedDB wraps the store with a read cache.
func NewCachedDB(db *DB, tiered *cache.Tiered, ttl time.Duration) *CachedDB {
	return &CachedDB{db: db, cache: tiered, ttl: ttl}
}

// QueryBookings serves from the observation cache when possible.
func (c *CachedDB) QueryBookings(ctx context.Context, filter models.BookingFilter) ([]models.BookingRecord, error) {
	key := cache.Key("observations", filter)
	if data, ok := c.cache.Get(ctx, key); ok {
		var records []models.BookingRecord
		if err := json.Unmarshal(data, &records); err == nil {
			return records, nil
		}
		logging.Warn().Str("key", key).Msg("Dropping undecodable cached observations")
	}

	records, err := c.db.QueryBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(records); err == nil {
		c.cache.Set(ctx, key, data, c.ttl)
	}
	return records, nil
}

// CountBookings delegates to the store. Counts feed training pre-checks and
// are cheap enough to skip the cache.
func (c *CachedDB) CountBookings(ctx context.Context, originPort, containerType string) (int, error) {
	return c.db.CountBookings(ctx, originPort, containerType)
}

// InsertBookings writes to the store and drops the observation cache so
// subsequent reads see the new rows.
func (c *CachedDB) InsertBookings(ctx context.Context, records []models.BookingRecord) (int, error) {
	n, err := c.db.InsertBookings(ctx, records)
	if err == nil && n > 0 {
		c.cache.Clear(ctx)
	}
	return n, err
}

// Invalidate drops all cached observations.
func (c *CachedDB) Invalidate(ctx context.Context) {
	c.cache.Clear(ctx)
}
