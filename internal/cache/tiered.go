// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package cache

import (
	"context"
	"time"

	"github.com/harborcast/harborcast/internal/metrics"
)

// Tiered fronts the in-process LRU with the optional shared tier. Reads
// consult the shared tier first so every service instance sees the same
// entries; when it is disabled or down the local tier serves alone. Writes
// go through to both tiers.
type Tiered struct {
	namespace string
	local     *LRU
	shared    *SharedTier // nil when disabled
}

// NewTiered creates a tiered cache. namespace scopes shared-tier
// invalidation so co-hosted caches do not clear each other.
func NewTiered(namespace string, capacity int, shared *SharedTier) *Tiered {
	return &Tiered{
		namespace: namespace,
		local:     NewLRU(capacity),
		shared:    shared,
	}
}

// Get returns the cached value for key, shared tier first.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if t.shared != nil {
		if value, ok := t.shared.Get(ctx, key); ok {
			metrics.RecordCacheHit("shared")
			return value, true
		}
		metrics.RecordCacheMiss("shared")
	}

	if value, ok := t.local.Get(key); ok {
		metrics.RecordCacheHit("local")
		return value, true
	}
	metrics.RecordCacheMiss("local")
	return nil, false
}

// Set writes through to both tiers.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	t.local.Set(key, value, ttl)
	if t.shared != nil {
		t.shared.Set(ctx, key, value, ttl)
	}
	metrics.CacheEntries.Set(float64(t.local.Len()))
}

// Clear drops every entry in both tiers for this namespace.
func (t *Tiered) Clear(ctx context.Context) {
	t.local.Clear()
	if t.shared != nil {
		t.shared.Clear(ctx, t.namespace+":*")
	}
	metrics.CacheEntries.Set(0)
}
