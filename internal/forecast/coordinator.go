// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/harborcast/harborcast/internal/artifact"
	"github.com/harborcast/harborcast/internal/config"
	"github.com/harborcast/harborcast/internal/features"
	"github.com/harborcast/harborcast/internal/logging"
	"github.com/harborcast/harborcast/internal/metrics"
	"github.com/harborcast/harborcast/internal/models"
)

// maxTrainingRows bounds how much history one training run reads.
const maxTrainingRows = 100000

// trainingTimeout bounds one full training run.
const trainingTimeout = 10 * time.Minute

// BookingSource supplies booking history for training and inference.
// Satisfied by *database.DB and *database.CachedDB.
type BookingSource interface {
	QueryBookings(ctx context.Context, filter models.BookingFilter) ([]models.BookingRecord, error)
	CountBookings(ctx context.Context, originPort, containerType string) (int, error)
}

// Coordinator owns the training lifecycle for both models: mutual
// exclusion, background execution, artifact persistence and status
// reporting. A failed run never discards previously trained parameters;
// the models keep serving their last committed state.
type Coordinator struct {
	builder *features.Builder
	short   ShortHorizonModel
	long    LongHorizonModel
	store   ArtifactStore // nil disables persistence
	source  BookingSource
	cfg     config.TrainingConfig

	mu            sync.Mutex
	state         TrainingState
	lastErr       string
	lastTrainedAt time.Time
	dataSize      int
	shortMetrics  *ShortModelMetrics
	longMetrics   *LongModelMetrics
	onTrained     func()
}

// SetOnTrained registers a callback invoked after a run commits new model
// parameters. Used to drop caches computed against the previous parameters.
func (c *Coordinator) SetOnTrained(fn func()) {
	c.mu.Lock()
	c.onTrained = fn
	c.mu.Unlock()
}

// NewCoordinator creates a coordinator. store may be nil for memory-only
// deployments.
func NewCoordinator(builder *features.Builder, short ShortHorizonModel, long LongHorizonModel,
	source BookingSource, store ArtifactStore, cfg config.TrainingConfig) *Coordinator {
	return &Coordinator{
		builder: builder,
		short:   short,
		long:    long,
		source:  source,
		store:   store,
		cfg:     cfg,
		state:   StateIdle,
	}
}

// Train starts a background training run. The trigger is refused
// synchronously with ErrTrainingInProgress if a run is already active, with
// ErrNoHistoricalData on an empty store, and with ErrInsufficientData below
// the minimum sample threshold; otherwise it returns immediately and the
// run's outcome becomes visible through Status.
func (c *Coordinator) Train() error {
	c.mu.Lock()
	if c.state == StateTraining {
		c.mu.Unlock()
		return ErrTrainingInProgress
	}
	c.mu.Unlock()

	if err := c.checkSampleFloor(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state == StateTraining {
		c.mu.Unlock()
		return ErrTrainingInProgress
	}
	c.state = StateTraining
	c.lastErr = ""
	c.mu.Unlock()

	go c.run()
	return nil
}

// checkSampleFloor refuses a trigger that cannot possibly train either
// model. One model's minimum is enough: a partial run still serves. A
// failing count query does not block the trigger; the run itself will
// surface a broken store.
func (c *Coordinator) checkSampleFloor() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := c.source.CountBookings(ctx, "", "")
	if err != nil {
		logging.Warn().Err(err).Msg("Booking count unavailable, skipping training pre-check")
		return nil
	}
	if count == 0 {
		return ErrNoHistoricalData
	}

	floor := c.cfg.MinShortSamples
	if c.cfg.MinLongSamples < floor {
		floor = c.cfg.MinLongSamples
	}
	if count < floor {
		return fmt.Errorf("%w: %d records, need at least %d", ErrInsufficientData, count, floor)
	}
	return nil
}

// run executes one training pass. The request context is deliberately not
// inherited: training outlives the HTTP request that started it.
func (c *Coordinator) run() {
	ctx, cancel := context.WithTimeout(context.Background(), trainingTimeout)
	defer cancel()

	start := time.Now()
	records, err := c.source.QueryBookings(ctx, models.BookingFilter{
		Order: models.OrderAscending,
		Limit: maxTrainingRows,
	})
	if err != nil {
		c.finish(0, nil, nil, fmt.Errorf("load training data: %w", err))
		metrics.RecordTrainingRun("failed", time.Since(start))
		return
	}
	if len(records) == 0 {
		c.finish(0, nil, nil, ErrNoHistoricalData)
		metrics.RecordTrainingRun("failed", time.Since(start))
		return
	}

	var (
		shortMetrics *ShortModelMetrics
		longMetrics  *LongModelMetrics
		shortErr     error
		longErr      error
	)

	samples, err := c.builder.TrainingSet(records, "", "")
	if err != nil {
		shortErr = fmt.Errorf("build feature samples: %w", err)
	} else {
		shortMetrics, shortErr = c.short.Train(ctx, samples)
	}

	// The sequence model trains on its own goroutine so a slow epoch loop
	// does not delay the tree model's artifact commit.
	longDone := make(chan struct{})
	go func() {
		defer close(longDone)
		seqSamples, err := c.builder.SequenceTrainingSet(records, "", "")
		if err != nil {
			longErr = fmt.Errorf("build sequence samples: %w", err)
			return
		}
		longMetrics, longErr = c.long.Train(ctx, seqSamples)
	}()

	if shortErr == nil {
		c.persist(artifact.KindShortHorizon, c.short.ExportParams, shortMetrics, len(samples))
	}
	<-longDone
	if longErr == nil {
		c.persist(artifact.KindLongHorizon, c.long.ExportParams, longMetrics, longMetrics.Samples)
	}

	result := "trained"
	switch {
	case shortErr != nil && longErr != nil:
		result = "failed"
		c.finish(len(records), nil, nil, fmt.Errorf("all models failed: %v; %v", shortErr, longErr))
	case shortErr != nil:
		result = "partial"
		c.finish(len(records), nil, longMetrics, fmt.Errorf("partial failure, tree model: %w", shortErr))
	case longErr != nil:
		result = "partial"
		c.finish(len(records), shortMetrics, nil, fmt.Errorf("partial failure, sequence model: %w", longErr))
	default:
		c.finish(len(records), shortMetrics, longMetrics, nil)
	}
	metrics.RecordTrainingRun(result, time.Since(start))

	logging.Info().
		Int("records", len(records)).
		Dur("elapsed", time.Since(start)).
		Bool("short_ok", shortErr == nil).
		Bool("long_ok", longErr == nil).
		Msg("Training run finished")
}

// finish commits the run outcome. A run counts as trained when at least one
// model committed new parameters; the onTrained callback fires only then,
// after the state is released, so callbacks may call Status.
func (c *Coordinator) finish(dataSize int, short *ShortModelMetrics, long *LongModelMetrics, err error) {
	c.mu.Lock()

	c.dataSize = dataSize
	if short != nil {
		c.shortMetrics = short
	}
	if long != nil {
		c.longMetrics = long
	}

	if short == nil && long == nil {
		c.state = StateFailed
		if err != nil {
			c.lastErr = err.Error()
		}
		c.mu.Unlock()
		logging.Error().Err(err).Msg("Training run failed")
		return
	}

	c.state = StateTrained
	c.lastTrainedAt = time.Now().UTC()
	if err != nil {
		// Partial failure: usable, but surfaced to operators.
		c.lastErr = err.Error()
	}
	fn := c.onTrained
	c.mu.Unlock()

	if err != nil {
		logging.Warn().Err(err).Msg("Training run partially failed")
	}
	if fn != nil {
		fn()
	}
}

// persist writes one model's parameters to the artifact store. Persistence
// failures are logged, never fatal: the in-memory model already committed.
func (c *Coordinator) persist(kind string, export func() ([]byte, error), metrics any, samples int) {
	if c.store == nil {
		return
	}

	params, err := export()
	if err != nil {
		logging.Error().Err(err).Str("kind", kind).Msg("Artifact export failed")
		return
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		logging.Error().Err(err).Str("kind", kind).Msg("Artifact metrics marshal failed")
		metricsJSON = nil
	}

	a := &artifact.Artifact{
		Kind:              kind,
		TrainedAt:         time.Now().UTC(),
		SchemaFingerprint: c.builder.SchemaFingerprint(),
		TrainingSamples:   samples,
		Params:            params,
		Metrics:           metricsJSON,
	}
	if err := c.store.Save(a); err != nil {
		logging.Error().Err(err).Str("kind", kind).Msg("Artifact save failed")
	}
}

// Restore loads the latest persisted artifacts into the models. Artifacts
// trained under a different feature schema are skipped with a warning.
// Called once at startup, before the server accepts traffic.
func (c *Coordinator) Restore() error {
	if c.store == nil {
		return nil
	}

	restoredAt := time.Time{}
	restored := 0

	load := func(kind string, restore func([]byte) error) error {
		a, err := c.store.LoadLatest(kind)
		if errors.Is(err, artifact.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if a.SchemaFingerprint != c.builder.SchemaFingerprint() {
			logging.Warn().
				Str("kind", kind).
				Str("artifact_schema", a.SchemaFingerprint).
				Str("current_schema", c.builder.SchemaFingerprint()).
				Msg("Skipping artifact trained under a different feature schema")
			return nil
		}
		if err := restore(a.Params); err != nil {
			return fmt.Errorf("restore %s artifact v%d: %w", kind, a.Version, err)
		}
		restored++
		if a.TrainedAt.After(restoredAt) {
			restoredAt = a.TrainedAt
		}
		if a.TrainingSamples > 0 {
			c.mu.Lock()
			if a.TrainingSamples > c.dataSize {
				c.dataSize = a.TrainingSamples
			}
			c.mu.Unlock()
		}
		logging.Info().Str("kind", kind).Int("version", a.Version).Msg("Model restored from artifact")
		return nil
	}

	if err := load(artifact.KindShortHorizon, c.short.RestoreParams); err != nil {
		return err
	}
	if err := load(artifact.KindLongHorizon, c.long.RestoreParams); err != nil {
		return err
	}

	if restored > 0 {
		c.mu.Lock()
		c.state = StateTrained
		c.lastTrainedAt = restoredAt
		c.shortMetrics = c.short.Metrics()
		c.longMetrics = c.long.Metrics()
		c.mu.Unlock()
	}
	return nil
}

// Status returns a snapshot of the training lifecycle.
func (c *Coordinator) Status() TrainingStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := TrainingStatus{
		State:            c.state,
		TrainingDataSize: c.dataSize,
		LastError:        c.lastErr,
		ShortModel:       c.shortMetrics,
		LongModel:        c.longMetrics,
	}
	if !c.lastTrainedAt.IsZero() {
		at := c.lastTrainedAt
		s.LastTrainedAt = &at
	}
	s.RecommendedAction = c.recommendLocked()
	return s
}

// recommendLocked derives the operator guidance from the current state.
func (c *Coordinator) recommendLocked() RecommendedAction {
	switch {
	case c.state == StateTraining:
		return ActionTrainingInProgress
	case !c.short.IsTrained() && !c.long.IsTrained():
		return ActionTrainRequired
	case !c.lastTrainedAt.IsZero() && c.cfg.RetrainAfter > 0 &&
		time.Since(c.lastTrainedAt) > c.cfg.RetrainAfter:
		return ActionRetrainRecommended
	case c.shortMetrics != nil && c.shortMetrics.R2 < c.cfg.MinR2:
		return ActionRetrainForAccuracy
	default:
		return ActionReadyForPredictions
	}
}

// Trained reports whether at least one model can serve predictions.
func (c *Coordinator) Trained() bool {
	return c.short.IsTrained() || c.long.IsTrained()
}
