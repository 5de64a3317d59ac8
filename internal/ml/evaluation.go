package ml

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// CurvePoint is one point of a ROC or precision-recall curve
type CurvePoint struct {
	X float64
	Y float64
}

// BinaryMetrics summarizes a binary classifier on labelled data. Weighted
// metrics average the per-class value weighted by class frequency.
type BinaryMetrics struct {
	Accuracy                  float64
	WeightedPrecision         float64
	WeightedRecall            float64
	WeightedFMeasure          float64
	WeightedFalsePositiveRate float64
	WeightedTruePositiveRate  float64
	AreaUnderROC              float64
	AreaUnderPR               float64
	ROC                       []CurvePoint // (false positive rate, true positive rate)
	PR                        []CurvePoint // (recall, precision)
}

// Map returns the scalar metrics keyed by their logged names
func (m *BinaryMetrics) Map() map[string]float64 {
	return map[string]float64{
		"accuracy":          m.Accuracy,
		"precision":         m.WeightedPrecision,
		"recall":            m.WeightedRecall,
		"fMeasure":          m.WeightedFMeasure,
		"falsePositiveRate": m.WeightedFalsePositiveRate,
		"truePositiveRate":  m.WeightedTruePositiveRate,
		"areaUnderROC":      m.AreaUnderROC,
		"areaUnderPR":       m.AreaUnderPR,
	}
}

// EvaluateBinary scores probabilities against 0/1 labels; a probability above
// threshold predicts the positive class.
func EvaluateBinary(labels, probs []float64, threshold float64) (*BinaryMetrics, error) {
	if len(labels) == 0 {
		return nil, ErrEmptyInput
	}
	if len(labels) != len(probs) {
		return nil, fmt.Errorf("%w: %d labels, %d scores", ErrDimensionMismatch, len(labels), len(probs))
	}
	for _, v := range labels {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("%w: got %g", ErrNotBinary, v)
		}
	}

	m := &BinaryMetrics{}
	m.classification(labels, Threshold(probs, threshold))
	m.ROC, m.AreaUnderROC = rocCurve(labels, probs)
	m.PR, m.AreaUnderPR = prCurve(labels, probs)
	return m, nil
}

// confusion holds counts indexed [actual][predicted]
type confusion [2][2]float64

func (m *BinaryMetrics) classification(labels, predicted []float64) {
	var c confusion
	for i, a := range labels {
		c[int(a)][int(predicted[i])]++
	}
	n := float64(len(labels))
	m.Accuracy = (c[0][0] + c[1][1]) / n

	for class := 0; class < 2; class++ {
		other := 1 - class
		actual := c[class][0] + c[class][1]
		if actual == 0 {
			continue
		}
		weight := actual / n
		tp := c[class][class]
		fp := c[other][class]
		fn := c[class][other]
		tn := c[other][other]

		precision := ratio(tp, tp+fp)
		recall := ratio(tp, tp+fn)
		fpr := ratio(fp, fp+tn)
		f := 0.0
		if precision+recall > 0 {
			f = 2 * precision * recall / (precision + recall)
		}

		m.WeightedPrecision += weight * precision
		m.WeightedRecall += weight * recall
		m.WeightedFMeasure += weight * f
		m.WeightedFalsePositiveRate += weight * fpr
	}
	m.WeightedTruePositiveRate = m.WeightedRecall
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// rocCurve returns the curve from (0,0) to (1,1) over every distinct score and
// its trapezoidal area. The area is NaN when either class is absent.
func rocCurve(labels, probs []float64) ([]CurvePoint, float64) {
	y := append([]float64(nil), probs...)
	classes := make([]bool, len(labels))
	for i, l := range labels {
		classes[i] = l == 1
	}
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	if len(tpr) == 0 || math.IsNaN(tpr[len(tpr)-1]) || math.IsNaN(fpr[len(fpr)-1]) {
		return nil, math.NaN()
	}

	points := make([]CurvePoint, len(tpr))
	for i := range tpr {
		points[i] = CurvePoint{X: fpr[i], Y: tpr[i]}
	}
	return points, integrate.Trapezoidal(fpr, tpr)
}

// prCurve returns (recall, precision) points for every distinct score, highest
// first, starting at recall 0 with the precision of the first threshold.
func prCurve(labels, probs []float64) ([]CurvePoint, float64) {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })

	var positives float64
	for _, l := range labels {
		positives += l
	}
	if positives == 0 {
		return nil, math.NaN()
	}

	var points []CurvePoint
	var tp, fp float64
	for k := 0; k < len(idx); k++ {
		if labels[idx[k]] == 1 {
			tp++
		} else {
			fp++
		}
		if k+1 < len(idx) && probs[idx[k+1]] == probs[idx[k]] {
			continue
		}
		points = append(points, CurvePoint{X: tp / positives, Y: tp / (tp + fp)})
	}
	points = append([]CurvePoint{{X: 0, Y: points[0].Y}}, points...)

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	return points, integrate.Trapezoidal(xs, ys)
}

// RegressionMetrics summarizes a regressor on held-out data
type RegressionMetrics struct {
	MSE  float64
	RMSE float64
	MAE  float64
	R2   float64
}

// Map returns the metrics keyed by their logged names
func (m *RegressionMetrics) Map() map[string]float64 {
	return map[string]float64{
		"mse":  m.MSE,
		"rmse": m.RMSE,
		"mae":  m.MAE,
		"r2":   m.R2,
	}
}

// EvaluateRegression compares predictions with actual values
func EvaluateRegression(actual, predicted []float64) (*RegressionMetrics, error) {
	if len(actual) == 0 {
		return nil, ErrEmptyInput
	}
	if len(actual) != len(predicted) {
		return nil, fmt.Errorf("%w: %d actual, %d predicted", ErrDimensionMismatch, len(actual), len(predicted))
	}
	var se, ae float64
	for i, a := range actual {
		d := predicted[i] - a
		se += d * d
		ae += math.Abs(d)
	}
	n := float64(len(actual))
	mse := se / n
	return &RegressionMetrics{
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  ae / n,
		R2:   stat.RSquaredFrom(predicted, actual, nil),
	}, nil
}

// Residuals returns actual minus predicted
func Residuals(actual, predicted []float64) []float64 {
	out := make([]float64, len(actual))
	for i := range actual {
		out[i] = actual[i] - predicted[i]
	}
	return out
}
