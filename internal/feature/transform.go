package feature

import (
	"math"
	"strings"
)

// FillMissing returns a frame where missing values of the named numeric columns
// are set to value. Present values, including NaN, are left untouched.
func FillMissing(f *Frame, value float64, cols ...string) (*Frame, error) {
	return mapNumeric(f, "fill", cols, func(c *Column) {
		for i, ok := range c.Valid {
			if !ok {
				c.Nums[i] = value
				c.Valid[i] = true
			}
		}
	})
}

// ReplaceValue returns a frame where present values equal to from are replaced
// by to in the named numeric columns.
func ReplaceValue(f *Frame, from, to float64, cols ...string) (*Frame, error) {
	return mapNumeric(f, "replace", cols, func(c *Column) {
		for i, ok := range c.Valid {
			if ok && c.Nums[i] == from {
				c.Nums[i] = to
			}
		}
	})
}

// Round returns a frame with the named numeric columns rounded half away from zero
func Round(f *Frame, cols ...string) (*Frame, error) {
	return mapNumeric(f, "round", cols, func(c *Column) {
		for i, ok := range c.Valid {
			if ok {
				c.Nums[i] = math.Round(c.Nums[i])
			}
		}
	})
}

func mapNumeric(f *Frame, op string, names []string, fn func(c *Column)) (*Frame, error) {
	cols := f.Columns()
	for _, name := range names {
		i, ok := f.index[name]
		if !ok {
			return nil, &ColumnError{Op: op, Column: name, Err: ErrColumnNotFound}
		}
		if !cols[i].IsNumeric() {
			return nil, &ColumnError{Op: op, Column: name, Err: ErrNonNumericColumn}
		}
		c := cols[i].Clone()
		fn(c)
		cols[i] = c
	}
	return NewFrame(cols...)
}

// FilterRange keeps rows whose value in col lies in [lo, hi]. Rows with a
// missing value are dropped.
func FilterRange(f *Frame, col string, lo, hi float64) (*Frame, error) {
	c, err := f.Numeric(col)
	if err != nil {
		return nil, err
	}
	return f.Filter(func(r int) bool {
		return c.Valid[r] && c.Nums[r] >= lo && c.Nums[r] <= hi
	}), nil
}

// WithNumeric returns a frame with a numeric column added or replaced
func WithNumeric(f *Frame, name string, values []float64, valid []bool) (*Frame, error) {
	return f.With(NumericColumn(name, values, valid))
}

// Flag returns a frame with a 0/1 column out set from pred applied to the
// present values of src. Missing source values produce 0.
func Flag(f *Frame, out, src string, pred func(v float64) bool) (*Frame, error) {
	c, err := f.Numeric(src)
	if err != nil {
		return nil, err
	}
	values := make([]float64, f.Nrow())
	for i := range values {
		if c.Valid[i] && pred(c.Nums[i]) {
			values[i] = 1
		}
	}
	return WithNumeric(f, out, values, nil)
}

// Concat returns a frame with a text column out joining the named columns with
// sep. A row is missing in out only when every source is missing.
func Concat(f *Frame, out, sep string, cols ...string) (*Frame, error) {
	sources := make([]*Column, len(cols))
	for i, name := range cols {
		c, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		sources[i] = c
	}
	values := make([]string, f.Nrow())
	valid := make([]bool, f.Nrow())
	parts := make([]string, 0, len(sources))
	for r := range values {
		parts = parts[:0]
		for _, c := range sources {
			if c.Valid[r] {
				parts = append(parts, c.Format(r))
				valid[r] = true
			}
		}
		values[r] = strings.Join(parts, sep)
	}
	return f.With(TextColumn(out, values, valid))
}

// NumericColumns lists the numeric columns of f, in order, skipping exclude
func NumericColumns(f *Frame, exclude ...string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, n := range exclude {
		skip[n] = struct{}{}
	}
	var names []string
	for _, c := range f.cols {
		if _, ok := skip[c.Name]; ok || !c.IsNumeric() {
			continue
		}
		names = append(names, c.Name)
	}
	return names
}
