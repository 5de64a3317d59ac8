package ml

import (
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/yourusername/pitwall/internal/metrics"
)

// DefaultMetric is the cross-validation metric used when none is configured
const DefaultMetric = "areaUnderROC"

// BinaryEvaluator scores a classifier by one named metric of BinaryMetrics.
// Larger values are better.
type BinaryEvaluator struct {
	Metric    string
	Threshold float64
}

// NewBinaryEvaluator returns an evaluator for metric with a 0.5 threshold
func NewBinaryEvaluator(metric string) BinaryEvaluator {
	if metric == "" {
		metric = DefaultMetric
	}
	return BinaryEvaluator{Metric: metric, Threshold: 0.5}
}

// Evaluate returns the configured metric for probs against labels
func (e BinaryEvaluator) Evaluate(labels, probs []float64) (float64, error) {
	m, err := EvaluateBinary(labels, probs, e.Threshold)
	if err != nil {
		return 0, err
	}
	v, ok := m.Map()[e.metric()]
	if !ok {
		return 0, fmt.Errorf("%w: unknown metric %q", ErrInvalidParam, e.Metric)
	}
	return v, nil
}

func (e BinaryEvaluator) metric() string {
	if e.Metric == "" {
		return DefaultMetric
	}
	return e.Metric
}

// ParamGrid is the cartesian product of logistic regression hyperparameters
type ParamGrid struct {
	RegParams        []float64
	ElasticNetParams []float64
	MaxIter          int
}

// Build expands the grid in row-major order: every ElasticNetParam for the
// first RegParam, then the next. An empty axis contributes a single zero.
func (g ParamGrid) Build() []LogisticRegression {
	regs := g.RegParams
	if len(regs) == 0 {
		regs = []float64{0}
	}
	nets := g.ElasticNetParams
	if len(nets) == 0 {
		nets = []float64{0}
	}
	out := make([]LogisticRegression, 0, len(regs)*len(nets))
	for _, r := range regs {
		for _, e := range nets {
			out = append(out, LogisticRegression{RegParam: r, ElasticNetParam: e, MaxIter: g.MaxIter})
		}
	}
	return out
}

// CrossValidator selects among candidate estimators by k-fold cross-validation
type CrossValidator struct {
	Estimators  []LogisticRegression
	NumFolds    int
	Seed        int64
	Evaluator   BinaryEvaluator
	Parallelism int
}

// CrossValidatorModel holds the winning model refitted on every row
type CrossValidatorModel struct {
	Best       *LogisticModel
	BestParams LogisticRegression
	BestIndex  int
	AvgMetrics []float64
	Metric     string
	NumFolds   int
}

// BestMetric returns the average cross-validated metric of the winning candidate
func (m *CrossValidatorModel) BestMetric() float64 {
	return m.AvgMetrics[m.BestIndex]
}

// Fit scores every candidate on every fold and refits the best one on all rows.
// Folds whose metric is undefined (a validation fold with one class) are left
// out of the candidate's average.
func (cv CrossValidator) Fit(X *mat.Dense, y []float64) (*CrossValidatorModel, error) {
	if len(cv.Estimators) == 0 {
		return nil, ErrNoCandidates
	}
	if cv.NumFolds < 2 {
		return nil, fmt.Errorf("%w: numFolds=%d", ErrInvalidParam, cv.NumFolds)
	}
	n, _ := X.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrDimensionMismatch, n, len(y))
	}
	if n < cv.NumFolds {
		return nil, fmt.Errorf("%w: %d rows, %d folds", ErrTooFewRows, n, cv.NumFolds)
	}

	folds := assignFolds(n, cv.NumFolds, cv.Seed)
	splits := make([]foldSplit, cv.NumFolds)
	for k := range splits {
		splits[k] = makeSplit(X, y, folds, k)
	}

	scores := make([][]float64, len(cv.Estimators))
	for i := range scores {
		scores[i] = make([]float64, cv.NumFolds)
	}

	workers := cv.Parallelism
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, est := range cv.Estimators {
		for k := range splits {
			i, k, est := i, k, est
			g.Go(func() error {
				s := splits[k]
				model, err := est.Fit(s.trainX, s.trainY)
				if err != nil {
					return fmt.Errorf("candidate %d fold %d: %w", i, k, err)
				}
				probs, err := model.PredictProba(s.validX)
				if err != nil {
					return err
				}
				v, err := cv.Evaluator.Evaluate(s.validY, probs)
				if err != nil {
					return err
				}
				scores[i][k] = v
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	metrics.RecordCrossValidationFolds(len(cv.Estimators) * cv.NumFolds)

	avg := make([]float64, len(cv.Estimators))
	best := -1
	for i, row := range scores {
		avg[i] = nanMean(row)
		if math.IsNaN(avg[i]) {
			continue
		}
		if best < 0 || avg[i] > avg[best] {
			best = i
		}
	}
	if best < 0 {
		best = 0
	}

	model, err := cv.Estimators[best].Fit(X, y)
	if err != nil {
		return nil, fmt.Errorf("refit best candidate: %w", err)
	}
	return &CrossValidatorModel{
		Best:       model,
		BestParams: cv.Estimators[best],
		BestIndex:  best,
		AvgMetrics: avg,
		Metric:     cv.Evaluator.metric(),
		NumFolds:   cv.NumFolds,
	}, nil
}

type foldSplit struct {
	trainX, validX *mat.Dense
	trainY, validY []float64
}

// assignFolds shuffles row indices with seed and deals them round-robin, so
// every fold gets floor(n/k) or ceil(n/k) rows.
func assignFolds(n, k int, seed int64) []int {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	folds := make([]int, n)
	for pos, row := range perm {
		folds[row] = pos % k
	}
	return folds
}

func makeSplit(X *mat.Dense, y []float64, folds []int, k int) foldSplit {
	var train, valid []int
	for row, f := range folds {
		if f == k {
			valid = append(valid, row)
		} else {
			train = append(train, row)
		}
	}
	return foldSplit{
		trainX: takeRows(X, train),
		trainY: takeValues(y, train),
		validX: takeRows(X, valid),
		validY: takeValues(y, valid),
	}
}

func takeRows(X *mat.Dense, rows []int) *mat.Dense {
	_, p := X.Dims()
	out := mat.NewDense(len(rows), p, nil)
	for i, r := range rows {
		out.SetRow(i, X.RawRowView(r))
	}
	return out
}

func takeValues(v []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = v[r]
	}
	return out
}

func nanMean(v []float64) float64 {
	var sum float64
	var n int
	for _, x := range v {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
