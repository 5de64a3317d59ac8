package ml

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func stepData() (*mat.Dense, []float64) {
	x := mat.NewDense(10, 2, nil)
	y := make([]float64, 10)
	for i := 0; i < 10; i++ {
		x.Set(i, 0, float64(i))
		x.Set(i, 1, 7) // constant, never splittable
		if i >= 5 {
			y[i] = 10
		}
	}
	return x, y
}

func TestRegressionTreeStep(t *testing.T) {
	x, y := stepData()
	rows := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	tree := growTree(x, y, rows, treeParams{maxDepth: 1, minSamplesSplit: 2, minSamplesLeaf: 1}, rand.New(rand.NewSource(1)))

	assert.Equal(t, 1, tree.Depth())
	assert.Equal(t, 2, tree.Leaves())
	assert.Equal(t, 4.5, tree.nodes[0].threshold)
	assert.Equal(t, 0.0, tree.PredictRow([]float64{2, 7}))
	assert.Equal(t, 10.0, tree.PredictRow([]float64{8, 7}))
	assert.Equal(t, []float64{1, 0}, normalizedImportance(tree.importance))
}

func TestRegressionTreeAdjacentValues(t *testing.T) {
	// the midpoint of lo and hi rounds to hi
	lo := math.Nextafter(1, 2)
	hi := math.Nextafter(lo, 2)
	require.Equal(t, hi, lo+(hi-lo)/2)
	assert.Equal(t, lo, splitThreshold(lo, hi))
	assert.Equal(t, 1.5, splitThreshold(1, 2))

	x := mat.NewDense(4, 1, []float64{lo, lo, hi, hi})
	y := []float64{0, 0, 10, 10}
	tree := growTree(x, y, []int{0, 1, 2, 3}, treeParams{maxDepth: 1, minSamplesSplit: 2, minSamplesLeaf: 1}, rand.New(rand.NewSource(1)))

	assert.Equal(t, 2, tree.Leaves())
	assert.Equal(t, 0.0, tree.PredictRow([]float64{lo}))
	assert.Equal(t, 10.0, tree.PredictRow([]float64{hi}))
	for _, nd := range tree.nodes {
		if nd.left < 0 {
			assert.False(t, math.IsNaN(nd.value))
		}
	}
}

func TestRegressionTreeMinSamplesLeaf(t *testing.T) {
	x, y := stepData()
	y[9] = 100
	rows := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	tree := growTree(x, y, rows, treeParams{minSamplesSplit: 2, minSamplesLeaf: 3}, rand.New(rand.NewSource(1)))

	for _, nd := range tree.nodes {
		if nd.left < 0 {
			assert.GreaterOrEqual(t, nd.samples, 3)
		}
	}
}

func TestRandomForestFitWithoutBootstrapMemorizes(t *testing.T) {
	x, y := stepData()
	model, err := RandomForestRegressor{NEstimators: 3, RandomState: 20}.Fit(x, y)
	require.NoError(t, err)

	pred, err := model.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, y, pred)
	assert.InDeltaSlice(t, []float64{1, 0}, model.Importances, 1e-12)
}

func TestRandomForestDeterministicAcrossParallelism(t *testing.T) {
	x, y := noisyLinearData(80, 3)
	for i := range y {
		y[i] = 3*x.At(i, 0) - x.At(i, 1)
	}

	base := RandomForestRegressor{NEstimators: 25, MaxDepth: 4, MaxFeatures: 1, Bootstrap: true, RandomState: 20}
	serial := base
	serial.Parallelism = 1
	parallel := base
	parallel.Parallelism = 8

	a, err := serial.Fit(x, y)
	require.NoError(t, err)
	b, err := parallel.Fit(x, y)
	require.NoError(t, err)

	pa, err := a.Predict(x)
	require.NoError(t, err)
	pb, err := b.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
	assert.Equal(t, a.Importances, b.Importances)

	var total float64
	for _, v := range a.Importances {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Greater(t, a.Importances[0], a.Importances[1])

	m, err := EvaluateRegression(y, pa)
	require.NoError(t, err)
	assert.Greater(t, m.R2, 0.7)

	s := a.Summary()
	assert.Equal(t, 25, s.NumTrees)
	assert.LessOrEqual(t, s.MaxDepth, 4)
	assert.Greater(t, s.MeanLeaves, 1.0)
}

func TestRandomForestErrors(t *testing.T) {
	x, y := stepData()

	_, err := RandomForestRegressor{}.Fit(x, y)
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = RandomForestRegressor{NEstimators: 1}.Fit(x, y[:2])
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	var unfitted *ForestModel
	_, err = unfitted.Predict(x)
	assert.ErrorIs(t, err, ErrNotFitted)

	model, err := RandomForestRegressor{NEstimators: 1}.Fit(x, y)
	require.NoError(t, err)
	_, err = model.Predict(mat.NewDense(1, 3, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestRandomForestParams(t *testing.T) {
	p := RandomForestRegressor{NEstimators: 1000, MaxDepth: 5}.Params()
	assert.Equal(t, 1000, p["n_estimators"])
	assert.Equal(t, 2, p["min_samples_split"])
	assert.Equal(t, 1, p["min_samples_leaf"])
}
