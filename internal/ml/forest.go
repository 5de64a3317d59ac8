package ml

import (
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// RandomForestRegressor averages CART regression trees grown on bootstrap
// samples. Tree i draws from its own source seeded with RandomState+i, so a
// fit is reproducible regardless of Parallelism.
type RandomForestRegressor struct {
	NEstimators     int
	MaxDepth        int // 0 means unlimited
	MaxFeatures     int // 0 means all features
	MinSamplesSplit int // 0 means 2
	MinSamplesLeaf  int // 0 means 1
	Bootstrap       bool
	RandomState     int64
	Parallelism     int // 0 means GOMAXPROCS
}

// ForestModel is a fitted random forest
type ForestModel struct {
	Trees       []*RegressionTree
	Importances []float64 // impurity-based, sums to 1 unless no tree split
	NumFeatures int
}

// ForestSummary describes a fitted forest for logging and artifacts
type ForestSummary struct {
	NumTrees    int       `json:"numTrees"`
	NumFeatures int       `json:"numFeatures"`
	MaxDepth    int       `json:"maxDepth"`
	MeanDepth   float64   `json:"meanDepth"`
	MeanLeaves  float64   `json:"meanLeaves"`
	Importances []float64 `json:"featureImportances"`
}

// Params returns the hyperparameters as loggable values
func (rf RandomForestRegressor) Params() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.NEstimators,
		"max_depth":         rf.MaxDepth,
		"max_features":      rf.MaxFeatures,
		"min_samples_split": rf.minSamplesSplit(),
		"min_samples_leaf":  rf.minSamplesLeaf(),
		"bootstrap":         rf.Bootstrap,
		"random_state":      rf.RandomState,
	}
}

func (rf RandomForestRegressor) minSamplesSplit() int {
	if rf.MinSamplesSplit < 2 {
		return 2
	}
	return rf.MinSamplesSplit
}

func (rf RandomForestRegressor) minSamplesLeaf() int {
	if rf.MinSamplesLeaf < 1 {
		return 1
	}
	return rf.MinSamplesLeaf
}

// Fit grows NEstimators trees concurrently on the rows of X with targets y
func (rf RandomForestRegressor) Fit(X *mat.Dense, y []float64) (*ForestModel, error) {
	if rf.NEstimators <= 0 || rf.MaxDepth < 0 || rf.MaxFeatures < 0 {
		return nil, fmt.Errorf("%w: n_estimators=%d max_depth=%d max_features=%d",
			ErrInvalidParam, rf.NEstimators, rf.MaxDepth, rf.MaxFeatures)
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, ErrEmptyInput
	}
	if len(y) != n {
		return nil, fmt.Errorf("%w: %d rows, %d targets", ErrDimensionMismatch, n, len(y))
	}

	params := treeParams{
		maxDepth:        rf.MaxDepth,
		maxFeatures:     rf.MaxFeatures,
		minSamplesSplit: rf.minSamplesSplit(),
		minSamplesLeaf:  rf.minSamplesLeaf(),
	}

	workers := rf.Parallelism
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*RegressionTree, rf.NEstimators)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range trees {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(rf.RandomState + int64(i)))
			rows := make([]int, n)
			for r := range rows {
				if rf.Bootstrap {
					rows[r] = rng.Intn(n)
				} else {
					rows[r] = r
				}
			}
			trees[i] = growTree(X, y, rows, params, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	imp := make([]float64, p)
	for _, t := range trees {
		for j, v := range normalizedImportance(t.importance) {
			imp[j] += v
		}
	}
	return &ForestModel{
		Trees:       trees,
		Importances: normalizedImportance(imp),
		NumFeatures: p,
	}, nil
}

// Predict returns the mean tree prediction for every row of X
func (m *ForestModel) Predict(X mat.Matrix) ([]float64, error) {
	if m == nil || len(m.Trees) == 0 {
		return nil, ErrNotFitted
	}
	n, p := X.Dims()
	if p != m.NumFeatures {
		return nil, fmt.Errorf("%w: model has %d features, input has %d columns", ErrDimensionMismatch, m.NumFeatures, p)
	}
	out := make([]float64, n)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		var sum float64
		for _, t := range m.Trees {
			sum += t.PredictRow(row)
		}
		out[i] = sum / float64(len(m.Trees))
	}
	return out, nil
}

// Summary reports tree shape statistics and the feature importances
func (m *ForestModel) Summary() ForestSummary {
	s := ForestSummary{
		NumTrees:    len(m.Trees),
		NumFeatures: m.NumFeatures,
		Importances: m.Importances,
	}
	if len(m.Trees) == 0 {
		return s
	}
	var depth, leaves float64
	for _, t := range m.Trees {
		depth += float64(t.Depth())
		leaves += float64(t.Leaves())
		if t.Depth() > s.MaxDepth {
			s.MaxDepth = t.Depth()
		}
	}
	s.MeanDepth = depth / float64(len(m.Trees))
	s.MeanLeaves = leaves / float64(len(m.Trees))
	return s
}
