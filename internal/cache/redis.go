// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/harborcast/harborcast/internal/config"
	"github.com/harborcast/harborcast/internal/logging"
	"github.com/harborcast/harborcast/internal/metrics"
)

// SharedTier is the optional Redis-backed cache tier shared across service
// instances. All calls go through a circuit breaker: when Redis is down the
// tier degrades to a miss and the in-process tier keeps serving. A shared
// tier outage is never an error for callers.
type SharedTier struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewSharedTier connects the shared tier. Returns nil when the tier is
// disabled in configuration. An unreachable server is logged, not fatal;
// the breaker opens and the tier serves misses until Redis recovers.
func NewSharedTier(cfg config.RedisConfig) *SharedTier {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "shared-cache",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SharedCacheBreakerState.Set(breakerStateValue(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Shared cache breaker state changed")
		},
	})

	// Readiness probe: informational only, the tier is usable either way.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logging.Warn().Err(err).Str("addr", cfg.Addr).Msg("Shared cache unreachable, degrading to in-process tier")
	} else {
		logging.Info().Str("addr", cfg.Addr).Msg("Shared cache connected")
	}

	metrics.SharedCacheBreakerState.Set(breakerStateValue(gobreaker.StateClosed))
	return &SharedTier{client: client, breaker: breaker}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// Get returns the cached value, degrading to a miss on any outage.
func (s *SharedTier) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := s.breaker.Execute(func() ([]byte, error) {
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil // miss, not a failure
		}
		return data, err
	})
	if err != nil || val == nil {
		return nil, false
	}
	return val, true
}

// Set stores the value with the given TTL. Failures are logged, never
// propagated.
func (s *SharedTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_, err := s.breaker.Execute(func() ([]byte, error) {
		return nil, s.client.Set(ctx, key, value, ttl).Err()
	})
	if err != nil {
		logging.Debug().Err(err).Str("key", key).Msg("Shared cache write failed")
	}
}

// Clear deletes every key matching the pattern, in scan batches.
func (s *SharedTier) Clear(ctx context.Context, pattern string) {
	_, err := s.breaker.Execute(func() ([]byte, error) {
		iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
		batch := make([]string, 0, 100)
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == 100 {
				if err := s.client.Del(ctx, batch...).Err(); err != nil {
					return nil, err
				}
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		if len(batch) > 0 {
			return nil, s.client.Del(ctx, batch...).Err()
		}
		return nil, nil
	})
	if err != nil {
		logging.Debug().Err(err).Str("pattern", pattern).Msg("Shared cache clear failed")
	}
}

// Close releases the Redis connection.
func (s *SharedTier) Close() error {
	return s.client.Close()
}
