package ml

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func noisyLinearData(n int, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a := rng.NormFloat64()
		x.Set(i, 0, a)
		x.Set(i, 1, rng.NormFloat64())
		if a+0.3*rng.NormFloat64() > 0 {
			y[i] = 1
		}
	}
	return x, y
}

func TestParamGridBuild(t *testing.T) {
	grid := ParamGrid{RegParams: []float64{0.01, 0.5}, ElasticNetParams: []float64{0, 1}, MaxIter: 20}.Build()
	require.Len(t, grid, 4)
	assert.Equal(t, LogisticRegression{RegParam: 0.01, ElasticNetParam: 0, MaxIter: 20}, grid[0])
	assert.Equal(t, LogisticRegression{RegParam: 0.01, ElasticNetParam: 1, MaxIter: 20}, grid[1])
	assert.Equal(t, LogisticRegression{RegParam: 0.5, ElasticNetParam: 1, MaxIter: 20}, grid[3])

	assert.Len(t, ParamGrid{}.Build(), 1)
}

func TestAssignFoldsBalanced(t *testing.T) {
	folds := assignFolds(23, 5, 7)
	counts := make([]int, 5)
	for _, f := range folds {
		counts[f]++
	}
	for _, c := range counts {
		assert.True(t, c == 4 || c == 5)
	}
	assert.Equal(t, folds, assignFolds(23, 5, 7))
}

func TestCrossValidatorFit(t *testing.T) {
	x, y := noisyLinearData(60, 1)
	cv := CrossValidator{
		Estimators:  ParamGrid{RegParams: []float64{0.01, 100}, ElasticNetParams: []float64{0, 1}}.Build(),
		NumFolds:    5,
		Seed:        42,
		Evaluator:   NewBinaryEvaluator(""),
		Parallelism: 4,
	}

	model, err := cv.Fit(x, y)
	require.NoError(t, err)
	require.NotNil(t, model.Best)
	assert.Len(t, model.AvgMetrics, 4)
	assert.Equal(t, "areaUnderROC", model.Metric)
	assert.Equal(t, 5, model.NumFolds)
	assert.Greater(t, model.BestMetric(), 0.8)
	assert.InDelta(t, 0.5, model.AvgMetrics[3], 1e-9) // L1 strong enough to zero every coefficient
	assert.NotEqual(t, 3, model.BestIndex)
	assert.Equal(t, cv.Estimators[model.BestIndex], model.BestParams)

	for _, v := range model.AvgMetrics {
		if !math.IsNaN(v) {
			assert.LessOrEqual(t, v, model.BestMetric())
		}
	}

	again, err := cv.Fit(x, y)
	require.NoError(t, err)
	assert.Equal(t, model.AvgMetrics, again.AvgMetrics)
}

func TestCrossValidatorErrors(t *testing.T) {
	x, y := noisyLinearData(4, 1)

	_, err := CrossValidator{NumFolds: 2}.Fit(x, y)
	assert.ErrorIs(t, err, ErrNoCandidates)

	est := []LogisticRegression{{}}
	_, err = CrossValidator{Estimators: est, NumFolds: 5}.Fit(x, y)
	assert.ErrorIs(t, err, ErrTooFewRows)

	_, err = CrossValidator{Estimators: est, NumFolds: 1}.Fit(x, y)
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = CrossValidator{Estimators: est, NumFolds: 2}.Fit(x, y[:2])
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBinaryEvaluatorUnknownMetric(t *testing.T) {
	_, err := BinaryEvaluator{Metric: "logLoss", Threshold: 0.5}.Evaluate([]float64{0, 1}, []float64{0.2, 0.8})
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestNanMean(t *testing.T) {
	assert.Equal(t, 2.0, nanMean([]float64{1, math.NaN(), 3}))
	assert.True(t, math.IsNaN(nanMean([]float64{math.NaN()})))
}
