// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package algorithms

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/goccy/go-json"

	"github.com/harborcast/harborcast/internal/features"
	"github.com/harborcast/harborcast/internal/forecast"
)

// LSTMConfig contains configuration for the recurrent sequence model.
type LSTMConfig struct {
	// HiddenSize is the hidden state width.
	HiddenSize int

	// Epochs is the number of passes over the training windows.
	Epochs int

	// LearningRate is the SGD step size.
	LearningRate float64

	// Lookback is the expected input window length in days.
	Lookback int

	// ValidationSplit is the held-out fraction used for the MAPE metric.
	ValidationSplit float64

	// MinSamples is the minimum window count required to train.
	MinSamples int

	// ClipValue bounds each gradient component, keeping backpropagation
	// through long windows stable.
	ClipValue float64

	// Seed drives weight initialization and epoch shuffles.
	Seed int64
}

// DefaultLSTMConfig returns default sequence model configuration.
func DefaultLSTMConfig() LSTMConfig {
	return LSTMConfig{
		HiddenSize:      16,
		Epochs:          60,
		LearningRate:    0.01,
		Lookback:        14,
		ValidationSplit: 0.2,
		MinSamples:      100,
		ClipValue:       5.0,
		Seed:            1,
	}
}

// lstmWeights holds one gate's parameters: an input weight, a recurrent
// weight row per hidden unit, and a bias.
type lstmWeights struct {
	Wx []float64   `json:"wx"` // hidden x 1 input weights
	Wh [][]float64 `json:"wh"` // hidden x hidden recurrent weights
	B  []float64   `json:"b"`  // hidden biases
}

// lstmParams is the full serialized parameter set.
type lstmParams struct {
	Hidden    int                        `json:"hidden"`
	Lookback  int                        `json:"lookback"`
	Input     lstmWeights                `json:"input_gate"`
	Forget    lstmWeights                `json:"forget_gate"`
	Output    lstmWeights                `json:"output_gate"`
	Cell      lstmWeights                `json:"cell_gate"`
	Wy        []float64                  `json:"wy"`
	By        float64                    `json:"by"`
	Scale     float64                    `json:"scale"`
	TrainedAt time.Time                  `json:"trained_at"`
	Metrics   *forecast.LongModelMetrics `json:"metrics,omitempty"`
}

// LSTM implements a single-layer long short-term memory network over daily
// totals, trained with full backpropagation through time and stochastic
// gradient descent. Inputs are scaled into [0, 1] by the training maximum;
// multi-day forecasts roll predictions back into the window.
type LSTM struct {
	BaseAlgorithm
	config LSTMConfig

	params  lstmParams
	metrics *forecast.LongModelMetrics
}

// NewLSTM creates a sequence model with the given configuration.
func NewLSTM(cfg LSTMConfig) *LSTM {
	def := DefaultLSTMConfig()
	if cfg.HiddenSize <= 0 {
		cfg.HiddenSize = def.HiddenSize
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.Lookback < 2 {
		cfg.Lookback = def.Lookback
	}
	if cfg.ValidationSplit <= 0 || cfg.ValidationSplit >= 1 {
		cfg.ValidationSplit = def.ValidationSplit
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.ClipValue <= 0 {
		cfg.ClipValue = def.ClipValue
	}

	return &LSTM{
		BaseAlgorithm: NewBaseAlgorithm("lstm"),
		config:        cfg,
	}
}

// Compile-time interface compliance check.
var _ forecast.LongHorizonModel = (*LSTM)(nil)

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func newGate(h int, rng *rand.Rand) lstmWeights {
	scale := 0.2
	g := lstmWeights{
		Wx: make([]float64, h),
		Wh: make([][]float64, h),
		B:  make([]float64, h),
	}
	for j := 0; j < h; j++ {
		g.Wx[j] = (rng.Float64()*2 - 1) * scale
		g.Wh[j] = make([]float64, h)
		for k := 0; k < h; k++ {
			g.Wh[j][k] = (rng.Float64()*2 - 1) * scale
		}
	}
	return g
}

// stepCache holds one timestep's activations for backpropagation.
type stepCache struct {
	x                float64
	i, f, o, g, c, h []float64
	hPrev, cPrev     []float64
}

// forward runs the network over a normalized window and returns the output
// plus per-step caches when wantCache is set.
func (p *lstmParams) forward(window []float64, wantCache bool) (float64, []stepCache) {
	h := make([]float64, p.Hidden)
	c := make([]float64, p.Hidden)
	var caches []stepCache
	if wantCache {
		caches = make([]stepCache, 0, len(window))
	}

	for _, x := range window {
		hPrev := h
		cPrev := c
		iGate := make([]float64, p.Hidden)
		fGate := make([]float64, p.Hidden)
		oGate := make([]float64, p.Hidden)
		gGate := make([]float64, p.Hidden)
		c = make([]float64, p.Hidden)
		h = make([]float64, p.Hidden)

		for j := 0; j < p.Hidden; j++ {
			var zi, zf, zo, zg float64
			zi = p.Input.Wx[j]*x + p.Input.B[j]
			zf = p.Forget.Wx[j]*x + p.Forget.B[j]
			zo = p.Output.Wx[j]*x + p.Output.B[j]
			zg = p.Cell.Wx[j]*x + p.Cell.B[j]
			for k := 0; k < p.Hidden; k++ {
				zi += p.Input.Wh[j][k] * hPrev[k]
				zf += p.Forget.Wh[j][k] * hPrev[k]
				zo += p.Output.Wh[j][k] * hPrev[k]
				zg += p.Cell.Wh[j][k] * hPrev[k]
			}
			iGate[j] = sigmoid(zi)
			fGate[j] = sigmoid(zf)
			oGate[j] = sigmoid(zo)
			gGate[j] = math.Tanh(zg)
			c[j] = fGate[j]*cPrev[j] + iGate[j]*gGate[j]
			h[j] = oGate[j] * math.Tanh(c[j])
		}

		if wantCache {
			caches = append(caches, stepCache{
				x: x, i: iGate, f: fGate, o: oGate, g: gGate,
				c: c, h: h, hPrev: hPrev, cPrev: cPrev,
			})
		}
	}

	y := p.By
	for j := 0; j < p.Hidden; j++ {
		y += p.Wy[j] * h[j]
	}
	return y, caches
}

// gateGrads accumulates one gate's gradients across timesteps.
type gateGrads struct {
	wx []float64
	wh [][]float64
	b  []float64
}

func newGateGrads(h int) gateGrads {
	g := gateGrads{
		wx: make([]float64, h),
		wh: make([][]float64, h),
		b:  make([]float64, h),
	}
	for j := range g.wh {
		g.wh[j] = make([]float64, h)
	}
	return g
}

// Train fits the network on sliding-window samples.
func (l *LSTM) Train(ctx context.Context, samples []features.SequenceSample) (*forecast.LongModelMetrics, error) {
	n := len(samples)
	if n < l.config.MinSamples {
		return nil, fmt.Errorf("%w: have %d windows, need %d", forecast.ErrInsufficientData, n, l.config.MinSamples)
	}

	start := time.Now()
	rng := rand.New(rand.NewSource(l.config.Seed))
	hidden := l.config.HiddenSize

	// Scale by the training maximum so activations stay in range.
	scale := 0.0
	for _, s := range samples {
		if s.Target > scale {
			scale = s.Target
		}
		for _, v := range s.Window {
			if v > scale {
				scale = v
			}
		}
	}
	if scale == 0 {
		scale = 1
	}

	perm := rng.Perm(n)
	valN := int(float64(n) * l.config.ValidationSplit)
	if valN < 1 {
		valN = 1
	}
	trainIdx := perm[:n-valN]
	valIdx := perm[n-valN:]

	params := lstmParams{
		Hidden:   hidden,
		Lookback: l.config.Lookback,
		Input:    newGate(hidden, rng),
		Forget:   newGate(hidden, rng),
		Output:   newGate(hidden, rng),
		Cell:     newGate(hidden, rng),
		Wy:       make([]float64, hidden),
		Scale:    scale,
	}
	for j := 0; j < hidden; j++ {
		params.Wy[j] = (rng.Float64()*2 - 1) * 0.2
	}
	// Forget bias starts positive so early training keeps cell memory.
	for j := 0; j < hidden; j++ {
		params.Forget.B[j] = 1
	}

	var epochLoss float64
	for epoch := 0; epoch < l.config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training cancelled at epoch %d: %w", epoch, err)
		}

		rng.Shuffle(len(trainIdx), func(a, b int) {
			trainIdx[a], trainIdx[b] = trainIdx[b], trainIdx[a]
		})

		epochLoss = 0
		for _, idx := range trainIdx {
			s := samples[idx]
			window := normalize(s.Window, scale)
			target := s.Target / scale

			y, caches := params.forward(window, true)
			err := y - target
			epochLoss += err * err

			l.backprop(&params, caches, err)
		}
		epochLoss /= float64(len(trainIdx))
	}

	// Held-out MAPE in original units.
	var mape float64
	for _, idx := range valIdx {
		s := samples[idx]
		y, _ := params.forward(normalize(s.Window, scale), false)
		pred := y * scale
		if pred < 0 {
			pred = 0
		}
		denom := math.Abs(s.Target)
		if denom < 1 {
			denom = 1
		}
		mape += math.Abs(pred-s.Target) / denom
	}
	mape = mape / float64(len(valIdx)) * 100

	metrics := &forecast.LongModelMetrics{
		Loss:            epochLoss,
		Epochs:          l.config.Epochs,
		TestMAPE:        mape,
		Samples:         n,
		TrainingSeconds: time.Since(start).Seconds(),
	}

	now := time.Now().UTC()
	params.TrainedAt = now
	params.Metrics = metrics

	l.acquireTrainLock()
	defer l.releaseTrainLock()
	l.params = params
	l.metrics = metrics
	l.markTrained(now)

	return metrics, nil
}

// backprop runs one SGD step of backpropagation through time for a single
// window. caches must cover every timestep, oldest first.
func (l *LSTM) backprop(p *lstmParams, caches []stepCache, outErr float64) {
	hidden := p.Hidden
	lr := l.config.LearningRate
	clip := l.config.ClipValue

	gradI := newGateGrads(hidden)
	gradF := newGateGrads(hidden)
	gradO := newGateGrads(hidden)
	gradC := newGateGrads(hidden)
	dWy := make([]float64, hidden)

	last := caches[len(caches)-1]
	dh := make([]float64, hidden)
	for j := 0; j < hidden; j++ {
		dWy[j] = outErr * last.h[j]
		dh[j] = outErr * p.Wy[j]
	}
	dBy := outErr

	dcNext := make([]float64, hidden)
	for t := len(caches) - 1; t >= 0; t-- {
		c := caches[t]
		dhPrev := make([]float64, hidden)
		dcPrev := make([]float64, hidden)

		for j := 0; j < hidden; j++ {
			tanhC := math.Tanh(c.c[j])
			do := dh[j] * tanhC
			dc := dcNext[j] + dh[j]*c.o[j]*(1-tanhC*tanhC)

			di := dc * c.g[j]
			dg := dc * c.i[j]
			df := dc * c.cPrev[j]
			dcPrev[j] = dc * c.f[j]

			// Pre-activation gradients.
			dai := di * c.i[j] * (1 - c.i[j])
			daf := df * c.f[j] * (1 - c.f[j])
			dao := do * c.o[j] * (1 - c.o[j])
			dag := dg * (1 - c.g[j]*c.g[j])

			gradI.wx[j] += dai * c.x
			gradF.wx[j] += daf * c.x
			gradO.wx[j] += dao * c.x
			gradC.wx[j] += dag * c.x
			gradI.b[j] += dai
			gradF.b[j] += daf
			gradO.b[j] += dao
			gradC.b[j] += dag

			for k := 0; k < hidden; k++ {
				gradI.wh[j][k] += dai * c.hPrev[k]
				gradF.wh[j][k] += daf * c.hPrev[k]
				gradO.wh[j][k] += dao * c.hPrev[k]
				gradC.wh[j][k] += dag * c.hPrev[k]

				dhPrev[k] += dai*p.Input.Wh[j][k] +
					daf*p.Forget.Wh[j][k] +
					dao*p.Output.Wh[j][k] +
					dag*p.Cell.Wh[j][k]
			}
		}

		dh = dhPrev
		dcNext = dcPrev
	}

	step := func(w *float64, g float64) {
		*w -= lr * clampFloat(g, -clip, clip)
	}
	for j := 0; j < hidden; j++ {
		step(&p.Wy[j], dWy[j])
		step(&p.Input.Wx[j], gradI.wx[j])
		step(&p.Forget.Wx[j], gradF.wx[j])
		step(&p.Output.Wx[j], gradO.wx[j])
		step(&p.Cell.Wx[j], gradC.wx[j])
		step(&p.Input.B[j], gradI.b[j])
		step(&p.Forget.B[j], gradF.b[j])
		step(&p.Output.B[j], gradO.b[j])
		step(&p.Cell.B[j], gradC.b[j])
		for k := 0; k < hidden; k++ {
			step(&p.Input.Wh[j][k], gradI.wh[j][k])
			step(&p.Forget.Wh[j][k], gradF.wh[j][k])
			step(&p.Output.Wh[j][k], gradO.wh[j][k])
			step(&p.Cell.Wh[j][k], gradC.wh[j][k])
		}
	}
	step(&p.By, dBy)
}

// Confidence schedule for autoregressive rollout. Each extra day feeds a
// prediction back as input, so confidence decays with the offset.
const (
	rolloutDecay = 0.97
	minLongConf  = 0.20
	maxLongConf  = 0.90
	fallbackConf = 0.50
)

// Predict rolls the network forward horizonDays steps. The window is daily
// totals oldest first; shorter windows are left-padded with zeros, longer
// ones use the most recent lookback days.
func (l *LSTM) Predict(window []float64, horizonDays int) ([]forecast.PointPrediction, error) {
	if horizonDays < 1 {
		return nil, fmt.Errorf("lstm: horizon must be >= 1, got %d", horizonDays)
	}

	l.acquirePredictLock()
	defer l.releasePredictLock()

	if !l.trained {
		return nil, forecast.ErrModelNotTrained
	}

	lookback := l.params.Lookback
	w := make([]float64, lookback)
	if len(window) >= lookback {
		copy(w, window[len(window)-lookback:])
	} else {
		copy(w[lookback-len(window):], window)
	}

	baseConf := fallbackConf
	if l.metrics != nil {
		baseConf = clampFloat(1-l.metrics.TestMAPE/100, minLongConf, maxLongConf)
	}

	out := make([]forecast.PointPrediction, 0, horizonDays)
	conf := baseConf
	for day := 1; day <= horizonDays; day++ {
		y, _ := l.params.forward(normalize(w, l.params.Scale), false)
		pred := y * l.params.Scale
		if pred < 0 {
			pred = 0
		}

		out = append(out, forecast.PointPrediction{
			Value:      pred,
			Confidence: clampFloat(conf, minLongConf, maxLongConf),
		})

		copy(w, w[1:])
		w[lookback-1] = pred
		conf *= rolloutDecay
	}

	return out, nil
}

// Metrics returns the last training run's metrics, nil if untrained.
func (l *LSTM) Metrics() *forecast.LongModelMetrics {
	l.acquirePredictLock()
	defer l.releasePredictLock()
	if l.metrics == nil {
		return nil
	}
	m := *l.metrics
	return &m
}

// ExportParams serializes the trained network.
func (l *LSTM) ExportParams() ([]byte, error) {
	l.acquirePredictLock()
	defer l.releasePredictLock()

	if !l.trained {
		return nil, forecast.ErrModelNotTrained
	}
	return json.Marshal(l.params)
}

// RestoreParams loads previously exported parameters.
func (l *LSTM) RestoreParams(data []byte) error {
	var p lstmParams
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("lstm: decode params: %w", err)
	}
	if p.Hidden <= 0 || p.Lookback < 2 || len(p.Wy) != p.Hidden {
		return fmt.Errorf("lstm: malformed artifact")
	}
	if p.Scale <= 0 {
		p.Scale = 1
	}

	l.acquireTrainLock()
	defer l.releaseTrainLock()
	l.params = p
	l.metrics = p.Metrics
	l.markTrained(p.TrainedAt)
	return nil
}

func normalize(window []float64, scale float64) []float64 {
	out := make([]float64, len(window))
	for i, v := range window {
		out[i] = v / scale
	}
	return out
}
