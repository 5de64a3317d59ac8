package ml

import (
	"fmt"
	"math"
	"sort"

	"github.com/yourusername/pitwall/internal/feature"
)

// Importance pairs a feature name with its weight in a fitted model
type Importance struct {
	Feature string
	Value   float64
}

// RankImportances pairs names with values, largest magnitude first. Ties keep
// input order.
func RankImportances(names []string, values []float64) ([]Importance, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("%w: %d names, %d values", ErrDimensionMismatch, len(names), len(values))
	}
	out := make([]Importance, len(names))
	for i := range names {
		out[i] = Importance{Feature: names[i], Value: values[i]}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return math.Abs(out[a].Value) > math.Abs(out[b].Value)
	})
	return out, nil
}

// ImportanceFrame renders ranked importances as a two-column frame
func ImportanceFrame(ranked []Importance, valueName string) *feature.Frame {
	names := make([]string, len(ranked))
	values := make([]float64, len(ranked))
	for i, imp := range ranked {
		names[i] = imp.Feature
		values[i] = imp.Value
	}
	return feature.MustFrame(
		feature.TextColumn("feature", names, nil),
		feature.NumericColumn(valueName, values, nil),
	)
}

// CurveFrame renders curve points with the given axis names
func CurveFrame(points []CurvePoint, xName, yName string) *feature.Frame {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	return feature.MustFrame(
		feature.NumericColumn(xName, xs, nil),
		feature.NumericColumn(yName, ys, nil),
	)
}

// ResidualFrame renders actual values, predictions and their residuals
func ResidualFrame(actual, predicted []float64) *feature.Frame {
	return feature.MustFrame(
		feature.NumericColumn("actual", append([]float64(nil), actual...), nil),
		feature.NumericColumn("predicted", append([]float64(nil), predicted...), nil),
		feature.NumericColumn("residual", Residuals(actual, predicted), nil),
	)
}
