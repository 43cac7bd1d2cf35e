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
	"sort"
	"time"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/stat"

	"github.com/harborcast/harborcast/internal/features"
	"github.com/harborcast/harborcast/internal/forecast"
)

// GBTreeConfig contains configuration for the gradient-boosted tree model.
type GBTreeConfig struct {
	// Estimators is the number of boosting rounds.
	Estimators int

	// MaxDepth bounds each regression tree.
	MaxDepth int

	// LearningRate is the shrinkage applied to each tree's contribution.
	LearningRate float64

	// Subsample is the fraction of training rows sampled per round.
	Subsample float64

	// MinSamplesLeaf is the minimum row count per leaf.
	MinSamplesLeaf int

	// ValidationSplit is the held-out fraction used for metrics.
	ValidationSplit float64

	// MinSamples is the minimum sample count required to train.
	MinSamples int

	// Seed drives the subsampling and split shuffles, fixed for
	// reproducible training runs.
	Seed int64
}

// DefaultGBTreeConfig returns default tree model configuration.
func DefaultGBTreeConfig() GBTreeConfig {
	return GBTreeConfig{
		Estimators:      80,
		MaxDepth:        4,
		LearningRate:    0.05,
		Subsample:       0.8,
		MinSamplesLeaf:  5,
		ValidationSplit: 0.2,
		MinSamples:      50,
		Seed:            1,
	}
}

// treeNode is one node of a fitted regression tree. Leaf when Left is nil.
type treeNode struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Value     float64   `json:"v"`
	Left      *treeNode `json:"l,omitempty"`
	Right     *treeNode `json:"r,omitempty"`
}

func (n *treeNode) predict(x []float64) float64 {
	for n.Left != nil {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// GBTree implements gradient boosting over depth-limited regression trees
// with least-squares loss. Each round fits a tree to the current residuals
// on a subsample of the training rows; predictions are the shrunken sum of
// all trees on top of the base value.
type GBTree struct {
	BaseAlgorithm
	config GBTreeConfig

	base         float64
	trees        []*treeNode
	gains        []float64
	featureCount int
	featureNames []string
	metrics      *forecast.ShortModelMetrics
}

// NewGBTree creates a tree model for the given feature schema.
func NewGBTree(cfg GBTreeConfig, featureNames []string) *GBTree {
	def := DefaultGBTreeConfig()
	if cfg.Estimators <= 0 {
		cfg.Estimators = def.Estimators
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.LearningRate <= 0 || cfg.LearningRate > 1 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.Subsample <= 0 || cfg.Subsample > 1 {
		cfg.Subsample = def.Subsample
	}
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = def.MinSamplesLeaf
	}
	if cfg.ValidationSplit <= 0 || cfg.ValidationSplit >= 1 {
		cfg.ValidationSplit = def.ValidationSplit
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}

	return &GBTree{
		BaseAlgorithm: NewBaseAlgorithm("gbtree"),
		config:        cfg,
		featureCount:  len(featureNames),
		featureNames:  append([]string(nil), featureNames...),
	}
}

// Compile-time interface compliance check.
var _ forecast.ShortHorizonModel = (*GBTree)(nil)

// Train fits the booster on the given samples. The previous parameters keep
// serving predictions until the new ones commit.
func (g *GBTree) Train(ctx context.Context, samples []features.TrainingSample) (*forecast.ShortModelMetrics, error) {
	n := len(samples)
	if n < g.config.MinSamples {
		return nil, fmt.Errorf("%w: have %d samples, need %d", forecast.ErrInsufficientData, n, g.config.MinSamples)
	}

	width := g.featureCount
	xs := make([][]float64, n)
	ys := make([]float64, n)
	for i, s := range samples {
		if len(s.Vector.Values) != width {
			return nil, fmt.Errorf("%w: sample width %d, schema width %d",
				forecast.ErrSchemaMismatch, len(s.Vector.Values), width)
		}
		xs[i] = s.Vector.Values
		ys[i] = s.Target
	}

	start := time.Now()
	rng := rand.New(rand.NewSource(g.config.Seed))

	// Shuffled train/validation split.
	perm := rng.Perm(n)
	valN := int(float64(n) * g.config.ValidationSplit)
	if valN < 1 {
		valN = 1
	}
	trainIdx := perm[:n-valN]
	valIdx := perm[n-valN:]

	trainY := make([]float64, len(trainIdx))
	for i, idx := range trainIdx {
		trainY[i] = ys[idx]
	}
	base := stat.Mean(trainY, nil)

	pred := make([]float64, len(trainIdx))
	resid := make([]float64, len(trainIdx))
	for i := range trainIdx {
		pred[i] = base
		resid[i] = trainY[i] - base
	}

	trees := make([]*treeNode, 0, g.config.Estimators)
	gains := make([]float64, width)
	sampleSize := int(float64(len(trainIdx)) * g.config.Subsample)
	if sampleSize < 2*g.config.MinSamplesLeaf {
		sampleSize = len(trainIdx)
	}

	for round := 0; round < g.config.Estimators; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training cancelled at round %d: %w", round, err)
		}

		// Row subsample without replacement.
		order := rng.Perm(len(trainIdx))[:sampleSize]
		rows := make([]int, sampleSize)
		rowRes := make([]float64, sampleSize)
		for i, j := range order {
			rows[i] = trainIdx[j]
			rowRes[i] = resid[j]
		}

		tree := g.buildNode(xs, rows, rowRes, g.config.MaxDepth, gains)
		trees = append(trees, tree)

		for i, idx := range trainIdx {
			pred[i] += g.config.LearningRate * tree.predict(xs[idx])
			resid[i] = trainY[i] - pred[i]
		}
	}

	// Validation metrics on the held-out split.
	valPred := make([]float64, len(valIdx))
	valY := make([]float64, len(valIdx))
	var mae, mse float64
	for i, idx := range valIdx {
		p := base
		for _, tree := range trees {
			p += g.config.LearningRate * tree.predict(xs[idx])
		}
		valPred[i] = p
		valY[i] = ys[idx]
		mae += math.Abs(p - ys[idx])
		mse += (p - ys[idx]) * (p - ys[idx])
	}
	mae /= float64(len(valIdx))
	mse /= float64(len(valIdx))

	metrics := &forecast.ShortModelMetrics{
		R2:              stat.RSquaredFrom(valPred, valY, nil),
		MAE:             mae,
		RMSE:            math.Sqrt(mse),
		Samples:         n,
		TrainingSeconds: time.Since(start).Seconds(),
	}

	g.acquireTrainLock()
	defer g.releaseTrainLock()
	g.base = base
	g.trees = trees
	g.gains = gains
	g.metrics = metrics
	g.markTrained(time.Now().UTC())
	metrics.TopFeatures = g.topFeaturesLocked(15)

	return metrics, nil
}

// buildNode recursively fits a least-squares regression tree on the rows,
// accumulating split gains into gains.
func (g *GBTree) buildNode(xs [][]float64, rows []int, res []float64, depth int, gains []float64) *treeNode {
	node := &treeNode{Value: stat.Mean(res, nil)}
	if depth <= 0 || len(rows) < 2*g.config.MinSamplesLeaf {
		return node
	}

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	// Parent SSE via sums: SSE = sum(y^2) - sum(y)^2 / n.
	var sum, sumSq float64
	for _, r := range res {
		sum += r
		sumSq += r * r
	}
	parentSSE := sumSq - sum*sum/float64(len(res))

	order := make([]int, len(rows))
	for f := 0; f < g.featureCount; f++ {
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool {
			return xs[rows[order[a]]][f] < xs[rows[order[b]]][f]
		})

		var leftSum, leftSq float64
		leftN := 0
		for k := 0; k < len(order)-1; k++ {
			r := res[order[k]]
			leftSum += r
			leftSq += r * r
			leftN++

			cur := xs[rows[order[k]]][f]
			next := xs[rows[order[k+1]]][f]
			if cur == next {
				continue
			}
			if leftN < g.config.MinSamplesLeaf || len(order)-leftN < g.config.MinSamplesLeaf {
				continue
			}

			rightSum := sum - leftSum
			rightSq := sumSq - leftSq
			rightN := len(order) - leftN
			sse := (leftSq - leftSum*leftSum/float64(leftN)) +
				(rightSq - rightSum*rightSum/float64(rightN))
			if gain := parentSSE - sse; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}

	if bestFeature < 0 || bestGain <= 1e-12 {
		return node
	}
	gains[bestFeature] += bestGain

	var leftRows, rightRows []int
	var leftRes, rightRes []float64
	for i, row := range rows {
		if xs[row][bestFeature] <= bestThreshold {
			leftRows = append(leftRows, row)
			leftRes = append(leftRes, res[i])
		} else {
			rightRows = append(rightRows, row)
			rightRes = append(rightRes, res[i])
		}
	}

	node.Feature = bestFeature
	node.Threshold = bestThreshold
	node.Left = g.buildNode(xs, leftRows, leftRes, depth-1, gains)
	node.Right = g.buildNode(xs, rightRows, rightRes, depth-1, gains)
	return node
}

// stagedTail bounds how many trailing staged predictions feed the
// confidence spread estimate.
const stagedTail = 20

// Predict estimates the count for one feature vector. The value is clamped
// non-negative; confidence reflects how much the boosting sequence was
// still moving over its final rounds.
func (g *GBTree) Predict(vec features.Vector) (forecast.PointPrediction, error) {
	g.acquirePredictLock()
	defer g.releasePredictLock()

	if !g.trained {
		return forecast.PointPrediction{}, forecast.ErrModelNotTrained
	}
	if len(vec.Values) != g.featureCount {
		return forecast.PointPrediction{}, fmt.Errorf("%w: vector width %d, model width %d",
			forecast.ErrSchemaMismatch, len(vec.Values), g.featureCount)
	}

	staged := make([]float64, 0, stagedTail)
	p := g.base
	tailStart := len(g.trees) - stagedTail
	for i, tree := range g.trees {
		p += g.config.LearningRate * tree.predict(vec.Values)
		if i >= tailStart {
			staged = append(staged, p)
		}
	}

	value := p
	if value < 0 {
		value = 0
	}

	spread := 0.0
	if len(staged) >= 2 {
		spread = stat.StdDev(staged, nil)
	}
	confidence := clampFloat(1-spread/(math.Abs(p)+1), 0.30, 0.95)
	if vec.LowConfidence {
		confidence = clampFloat(confidence*0.8, 0.30, 0.95)
	}

	return forecast.PointPrediction{Value: value, Confidence: confidence}, nil
}

// FeatureImportance returns normalized split gains, highest first. The
// weights sum to 1; with no informative splits it falls back to uniform.
func (g *GBTree) FeatureImportance() ([]forecast.FeatureWeight, error) {
	g.acquirePredictLock()
	defer g.releasePredictLock()

	if !g.trained {
		return nil, forecast.ErrModelNotTrained
	}
	return g.topFeaturesLocked(g.featureCount), nil
}

func (g *GBTree) topFeaturesLocked(limit int) []forecast.FeatureWeight {
	total := 0.0
	for _, gain := range g.gains {
		total += gain
	}

	out := make([]forecast.FeatureWeight, g.featureCount)
	for i := range out {
		w := 1 / float64(g.featureCount)
		if total > 0 {
			w = g.gains[i] / total
		}
		out[i] = forecast.FeatureWeight{Name: g.featureNames[i], Weight: w}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Weight > out[b].Weight })

	if limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Metrics returns the last training run's metrics, nil if untrained.
func (g *GBTree) Metrics() *forecast.ShortModelMetrics {
	g.acquirePredictLock()
	defer g.releasePredictLock()
	if g.metrics == nil {
		return nil
	}
	m := *g.metrics
	return &m
}

// gbtreeParams is the serialized parameter set.
type gbtreeParams struct {
	Base         float64                     `json:"base"`
	Trees        []*treeNode                 `json:"trees"`
	Gains        []float64                   `json:"gains"`
	FeatureCount int                         `json:"feature_count"`
	FeatureNames []string                    `json:"feature_names"`
	TrainedAt    time.Time                   `json:"trained_at"`
	Metrics      *forecast.ShortModelMetrics `json:"metrics,omitempty"`
}

// ExportParams serializes the trained booster.
func (g *GBTree) ExportParams() ([]byte, error) {
	g.acquirePredictLock()
	defer g.releasePredictLock()

	if !g.trained {
		return nil, forecast.ErrModelNotTrained
	}
	return json.Marshal(gbtreeParams{
		Base:         g.base,
		Trees:        g.trees,
		Gains:        g.gains,
		FeatureCount: g.featureCount,
		FeatureNames: g.featureNames,
		TrainedAt:    g.lastTrainedAt,
		Metrics:      g.metrics,
	})
}

// RestoreParams loads previously exported parameters. The restored booster
// must match this model's feature schema width.
func (g *GBTree) RestoreParams(data []byte) error {
	var p gbtreeParams
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("gbtree: decode params: %w", err)
	}
	if p.FeatureCount != g.featureCount {
		return fmt.Errorf("%w: artifact width %d, schema width %d",
			forecast.ErrSchemaMismatch, p.FeatureCount, g.featureCount)
	}
	if len(p.Trees) == 0 {
		return fmt.Errorf("gbtree: artifact has no trees")
	}

	g.acquireTrainLock()
	defer g.releaseTrainLock()
	g.base = p.Base
	g.trees = p.Trees
	g.gains = p.Gains
	if g.gains == nil {
		g.gains = make([]float64, g.featureCount)
	}
	g.metrics = p.Metrics
	g.markTrained(p.TrainedAt)
	return nil
}
