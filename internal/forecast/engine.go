// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"

	"github.com/harborcast/harborcast/internal/cache"
	"github.com/harborcast/harborcast/internal/config"
	"github.com/harborcast/harborcast/internal/features"
	"github.com/harborcast/harborcast/internal/logging"
	"github.com/harborcast/harborcast/internal/models"
)

// Horizon bounds for forecast requests, in days.
const (
	MinHorizonDays = 1
	MaxHorizonDays = 30
)

// Cache is the response cache surface the engine needs. Satisfied by
// *cache.Tiered; nil disables caching.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Clear(ctx context.Context)
}

// Engine serves blended forecasts. It validates requests, loads bounded
// history, runs both models and combines their outputs per day.
type Engine struct {
	builder     *features.Builder
	short       ShortHorizonModel
	long        LongHorizonModel
	combiner    *Combiner
	coordinator *Coordinator
	source      BookingSource
	cache       Cache
	cfg         config.ForecastConfig
	cacheTTL    time.Duration

	now func() time.Time // injectable for tests
}

// NewEngine wires the forecasting pipeline. cache may be nil.
func NewEngine(builder *features.Builder, short ShortHorizonModel, long LongHorizonModel,
	coordinator *Coordinator, source BookingSource, cache Cache,
	cfg config.ForecastConfig, cacheTTL time.Duration) *Engine {
	e := &Engine{
		builder:     builder,
		short:       short,
		long:        long,
		combiner:    NewCombiner(cfg),
		coordinator: coordinator,
		source:      source,
		cache:       cache,
		cfg:         cfg,
		cacheTTL:    cacheTTL,
		now:         time.Now,
	}
	// Forecasts cached while a run is in flight were computed against the
	// old parameters; drop them the moment the new ones commit.
	coordinator.SetOnTrained(func() { e.InvalidateCache(context.Background()) })
	return e
}

// Train delegates to the coordinator and drops cached forecasts at trigger
// time; the completion callback drops them again once the run commits.
func (e *Engine) Train() error {
	if err := e.coordinator.Train(); err != nil {
		return err
	}
	e.InvalidateCache(context.Background())
	return nil
}

// Status returns the coordinator's lifecycle snapshot.
func (e *Engine) Status() TrainingStatus {
	return e.coordinator.Status()
}

// InvalidateCache drops all cached forecast responses.
func (e *Engine) InvalidateCache(ctx context.Context) {
	if e.cache != nil {
		e.cache.Clear(ctx)
	}
}

// cacheKey includes the generation day so a response computed yesterday is
// never served for today's horizon.
func cacheKey(req Request, day time.Time) string {
	return cache.Key("forecast", struct {
		Port string `json:"port"`
		Type string `json:"container_type"`
		Days int    `json:"days"`
		Day  string `json:"day"`
	}{req.Port, req.ContainerType, req.HorizonDays, day.Format("2006-01-02")})
}

// Forecast produces blended per-day predictions for the requested horizon.
// Results are cached per (port, type, horizon, generation day).
func (e *Engine) Forecast(ctx context.Context, req Request) (*models.ForecastResponse, error) {
	if req.HorizonDays < MinHorizonDays || req.HorizonDays > MaxHorizonDays {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, req.HorizonDays)
	}
	if !e.coordinator.Trained() {
		return nil, ErrModelNotTrained
	}

	today := e.now().UTC().Truncate(24 * time.Hour)
	key := cacheKey(req, today)
	if e.cache != nil {
		if data, ok := e.cache.Get(ctx, key); ok {
			var resp models.ForecastResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				return &resp, nil
			}
			logging.Warn().Str("key", key).Msg("Dropping undecodable cached forecast")
		}
	}

	records, err := e.source.QueryBookings(ctx, models.BookingFilter{
		OriginPort:    req.Port,
		ContainerType: req.ContainerType,
		Order:         models.OrderDescending,
		Limit:         e.cfg.HistoryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: port=%q type=%q", ErrNoHistoricalData, req.Port, req.ContainerType)
	}

	historicalMean := dailyMean(records)
	resp, err := e.blend(ctx, req, records, today, historicalMean)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			e.cache.Set(ctx, key, data, e.cacheTTL)
		}
	}
	return resp, nil
}

// blend runs both models across the horizon and combines per day. The tree
// model re-derives features each day with earlier blended predictions fed
// back as synthetic observations, so its lags stay meaningful beyond day 1.
func (e *Engine) blend(ctx context.Context, req Request, records []models.BookingRecord,
	today time.Time, historicalMean float64) (*models.ForecastResponse, error) {

	// One sequence rollout covers the whole horizon.
	var longPreds []PointPrediction
	if window, err := e.builder.SequenceWindow(records, today.AddDate(0, 0, 1), req.Port, req.ContainerType); err == nil {
		longPreds, err = e.long.Predict(window, req.HorizonDays)
		if err != nil {
			logging.Warn().Err(err).Msg("Sequence model unavailable, tree model serves the horizon")
			longPreds = nil
		}
	}

	working := append([]models.BookingRecord(nil), records...)
	predictions := make([]models.PredictionResult, 0, req.HorizonDays)
	var breakdown models.RiskBreakdown
	confSum := 0.0

	for day := 1; day <= req.HorizonDays; day++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		date := today.AddDate(0, 0, day)

		var short *PointPrediction
		if vec, err := e.builder.Build(working, date, req.Port, req.ContainerType); err == nil {
			if p, err := e.short.Predict(vec); err == nil {
				short = &p
			} else {
				logging.Warn().Err(err).Int("day", day).Msg("Tree model prediction failed")
			}
		}

		var long *PointPrediction
		if day <= len(longPreds) {
			long = &longPreds[day-1]
		}

		result, err := e.combiner.Combine(date, day, req.Port, req.ContainerType, short, long, historicalMean)
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", day, err)
		}

		predictions = append(predictions, result)
		confSum += result.Confidence
		switch result.RiskLevel {
		case models.RiskHigh:
			breakdown.High++
		case models.RiskMedium:
			breakdown.Medium++
		default:
			breakdown.Low++
		}

		// Feed the blended value back so later days' lags see it.
		working = append(working, models.BookingRecord{
			Date:          date,
			OriginPort:    req.Port,
			ContainerType: req.ContainerType,
			Quantity:      int(math.Round(result.PredictedCount)),
		})
	}

	trend := e.combiner.ClassifyTrend(predictions)
	for i := range predictions {
		predictions[i].Trend = trend
	}

	return &models.ForecastResponse{
		Predictions:       predictions,
		AverageConfidence: confSum / float64(len(predictions)),
		RiskBreakdown:     breakdown,
		TrainingDataSize:  e.coordinator.Status().TrainingDataSize,
		Filters: models.ForecastFilters{
			Port:          req.Port,
			ContainerType: req.ContainerType,
			HorizonDays:   req.HorizonDays,
		},
		GeneratedAt: e.now().UTC(),
	}, nil
}

// dailyMean is the mean daily total across the observed days in the
// records. It is the port-relative baseline for risk classification.
func dailyMean(records []models.BookingRecord) float64 {
	totals := make(map[int64]float64)
	for i := range records {
		totals[records[i].Day().Unix()] += float64(records[i].Quantity)
	}
	if len(totals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range totals {
		sum += v
	}
	return sum / float64(len(totals))
}
