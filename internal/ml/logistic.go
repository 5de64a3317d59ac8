package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

const (
	defaultMaxIter = 100
	defaultTol     = 1e-6
)

// LogisticRegression is a binary classifier fitted by minimizing mean log-loss
// plus an elastic-net penalty. Features are scaled to unit variance during
// fitting; coefficients are reported on the original scale. The intercept is
// not penalized.
type LogisticRegression struct {
	RegParam        float64 // overall penalty strength, >= 0
	ElasticNetParam float64 // L1 share of the penalty in [0, 1]
	MaxIter         int     // 0 means 100
	Tol             float64 // 0 means 1e-6
}

// LogisticModel is a fitted logistic regression
type LogisticModel struct {
	Coefficients     []float64 `json:"coefficients"`
	Intercept        float64   `json:"intercept"`
	Threshold        float64   `json:"threshold"`
	ObjectiveHistory []float64 `json:"objectiveHistory"`
	RegParam         float64   `json:"regParam"`
	ElasticNetParam  float64   `json:"elasticNetParam"`
}

// Params returns the hyperparameters as loggable values
func (lr LogisticRegression) Params() map[string]float64 {
	return map[string]float64{
		"regParam":        lr.RegParam,
		"elasticNetParam": lr.ElasticNetParam,
		"maxIter":         float64(lr.maxIter()),
		"tol":             lr.tol(),
	}
}

func (lr LogisticRegression) maxIter() int {
	if lr.MaxIter <= 0 {
		return defaultMaxIter
	}
	return lr.MaxIter
}

func (lr LogisticRegression) tol() float64 {
	if lr.Tol <= 0 {
		return defaultTol
	}
	return lr.Tol
}

// Fit trains the classifier on the rows of X with 0/1 labels y
func (lr LogisticRegression) Fit(X mat.Matrix, y []float64) (*LogisticModel, error) {
	if lr.RegParam < 0 || lr.ElasticNetParam < 0 || lr.ElasticNetParam > 1 {
		return nil, fmt.Errorf("%w: regParam=%g elasticNetParam=%g", ErrInvalidParam, lr.RegParam, lr.ElasticNetParam)
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, ErrEmptyInput
	}
	if len(y) != n {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrDimensionMismatch, n, len(y))
	}
	positives := 0.0
	for _, v := range y {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("%w: got %g", ErrNotBinary, v)
		}
		positives += v
	}

	scale := make([]float64, p)
	xs := mat.NewDense(n, p, nil)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		if sd := stat.StdDev(col, nil); n > 1 && sd > 0 && !math.IsNaN(sd) {
			scale[j] = 1 / sd
		}
		for i, v := range col {
			xs.Set(i, j, v*scale[j])
		}
	}

	obj := &logLoss{x: xs, y: y, l2: lr.RegParam * (1 - lr.ElasticNetParam)}
	w := make([]float64, p+1)
	if positives > 0 && positives < float64(n) {
		w[p] = math.Log(positives / (float64(n) - positives))
	}

	var history []float64
	var err error
	if l1 := lr.RegParam * lr.ElasticNetParam; l1 > 0 {
		w, history = obj.proximal(w, l1, lr.maxIter(), lr.tol())
	} else {
		w, history, err = obj.lbfgs(w, lr.maxIter(), lr.tol())
		if err != nil {
			return nil, err
		}
	}

	coef := make([]float64, p)
	for j := range coef {
		coef[j] = w[j] * scale[j]
	}
	return &LogisticModel{
		Coefficients:     coef,
		Intercept:        w[p],
		Threshold:        0.5,
		ObjectiveHistory: history,
		RegParam:         lr.RegParam,
		ElasticNetParam:  lr.ElasticNetParam,
	}, nil
}

// PredictProba returns P(y=1) for every row of X
func (m *LogisticModel) PredictProba(X mat.Matrix) ([]float64, error) {
	if m == nil || m.Coefficients == nil {
		return nil, ErrNotFitted
	}
	n, p := X.Dims()
	if p != len(m.Coefficients) {
		return nil, fmt.Errorf("%w: model has %d coefficients, input has %d columns", ErrDimensionMismatch, len(m.Coefficients), p)
	}
	var z mat.VecDense
	z.MulVec(X, mat.NewVecDense(p, m.Coefficients))
	out := make([]float64, n)
	for i := range out {
		out[i] = sigmoid(z.AtVec(i) + m.Intercept)
	}
	return out, nil
}

// Predict returns 0/1 labels using the model threshold
func (m *LogisticModel) Predict(X mat.Matrix) ([]float64, error) {
	probs, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return Threshold(probs, m.Threshold), nil
}

// Threshold maps probabilities to 0/1 labels; p > t is positive
func Threshold(probs []float64, t float64) []float64 {
	out := make([]float64, len(probs))
	for i, p := range probs {
		if p > t {
			out[i] = 1
		}
	}
	return out
}

// logLoss is mean binary cross-entropy with an L2 term over the weights.
// The parameter vector holds the weights followed by the intercept.
type logLoss struct {
	x  *mat.Dense
	y  []float64
	l2 float64
}

func (o *logLoss) margins(w []float64) *mat.VecDense {
	_, p := o.x.Dims()
	var z mat.VecDense
	z.MulVec(o.x, mat.NewVecDense(p, w[:p]))
	z.AddVec(&z, constVec(z.Len(), w[p]))
	return &z
}

func (o *logLoss) value(w []float64) float64 {
	z := o.margins(w)
	n := z.Len()
	var loss float64
	for i := 0; i < n; i++ {
		zi := z.AtVec(i)
		loss += softplus(zi) - o.y[i]*zi
	}
	_, p := o.x.Dims()
	return loss/float64(n) + 0.5*o.l2*floats.Dot(w[:p], w[:p])
}

func (o *logLoss) gradient(grad, w []float64) {
	z := o.margins(w)
	n, p := o.x.Dims()
	resid := mat.NewVecDense(n, nil)
	var sum float64
	for i := 0; i < n; i++ {
		r := sigmoid(z.AtVec(i)) - o.y[i]
		resid.SetVec(i, r)
		sum += r
	}
	g := mat.NewVecDense(p, grad[:p])
	g.MulVec(o.x.T(), resid)
	inv := 1 / float64(n)
	for j := 0; j < p; j++ {
		grad[j] = grad[j]*inv + o.l2*w[j]
	}
	grad[p] = sum * inv
}

func (o *logLoss) lbfgs(init []float64, maxIter int, tol float64) ([]float64, []float64, error) {
	rec := &historyRecorder{}
	problem := optimize.Problem{
		Func: o.value,
		Grad: o.gradient,
	}
	settings := &optimize.Settings{
		MajorIterations:   maxIter,
		GradientThreshold: tol,
		Recorder:          rec,
	}
	res, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if res == nil || floats.HasNaN(res.X) {
		if err == nil {
			err = fmt.Errorf("optimizer produced no solution")
		}
		return nil, nil, fmt.Errorf("fit logistic regression: %w", err)
	}
	// A stalled line search still leaves the best point found.
	return res.X, rec.history, nil
}

// proximal runs proximal gradient descent with soft thresholding for the L1 term
func (o *logLoss) proximal(w []float64, l1 float64, maxIter int, tol float64) ([]float64, []float64) {
	n, p := o.x.Dims()
	var sq float64
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			v := o.x.At(i, j)
			sq += v * v
		}
	}
	lipschitz := 0.25*(sq/float64(n)+1) + o.l2
	step := 1 / lipschitz

	full := func(w []float64) float64 {
		return o.value(w) + l1*floats.Norm(w[:p], 1)
	}

	history := []float64{full(w)}
	grad := make([]float64, p+1)
	for it := 0; it < maxIter; it++ {
		o.gradient(grad, w)
		for j := range w {
			w[j] -= step * grad[j]
		}
		for j := 0; j < p; j++ {
			w[j] = softThreshold(w[j], step*l1)
		}
		f := full(w)
		prev := history[len(history)-1]
		history = append(history, f)
		if math.Abs(prev-f) <= tol*math.Max(1, math.Abs(f)) {
			break
		}
	}
	return w, history
}

type historyRecorder struct {
	history []float64
}

func (r *historyRecorder) Init() error { return nil }

func (r *historyRecorder) Record(loc *optimize.Location, op optimize.Operation, _ *optimize.Stats) error {
	if op == optimize.MajorIteration {
		r.history = append(r.history, loc.F)
	}
	return nil
}

func constVec(n int, v float64) *mat.VecDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = v
	}
	return mat.NewVecDense(n, data)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus is log(1 + e^z) without overflow
func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}
