// Package feature provides the in-memory column frame used by the pipelines
// and the transformations applied to it before model fitting.
package feature

import (
	"fmt"
	"strconv"
)

// Kind identifies the value type held by a column
type Kind int

const (
	// KindNumeric columns hold float64 values
	KindNumeric Kind = iota
	// KindText columns hold string values
	KindText
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Column is a named, typed vector of values with a validity mask.
// Valid[i] == false marks row i as missing.
type Column struct {
	Name  string
	Kind  Kind
	Nums  []float64
	Texts []string
	Valid []bool
}

// NumericColumn builds a numeric column. A nil valid mask marks every row present.
func NumericColumn(name string, values []float64, valid []bool) *Column {
	if valid == nil {
		valid = allValid(len(values))
	}
	return &Column{Name: name, Kind: KindNumeric, Nums: values, Valid: valid}
}

// TextColumn builds a text column. A nil valid mask marks every row present.
func TextColumn(name string, values []string, valid []bool) *Column {
	if valid == nil {
		valid = allValid(len(values))
	}
	return &Column{Name: name, Kind: KindText, Texts: values, Valid: valid}
}

// Len returns the number of rows in the column
func (c *Column) Len() int {
	return len(c.Valid)
}

// IsNumeric reports whether the column holds numbers
func (c *Column) IsNumeric() bool {
	return c.Kind == KindNumeric
}

// Clone returns a deep copy of the column
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	out.Valid = append([]bool(nil), c.Valid...)
	if c.Nums != nil {
		out.Nums = append([]float64(nil), c.Nums...)
	}
	if c.Texts != nil {
		out.Texts = append([]string(nil), c.Texts...)
	}
	return out
}

// Format renders row i as a string; missing values render as "".
func (c *Column) Format(i int) string {
	if !c.Valid[i] {
		return ""
	}
	if c.Kind == KindText {
		return c.Texts[i]
	}
	return strconv.FormatFloat(c.Nums[i], 'f', -1, 64)
}

// take returns a new column holding the given rows, in order
func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, Valid: make([]bool, len(rows))}
	if c.Kind == KindNumeric {
		out.Nums = make([]float64, len(rows))
	} else {
		out.Texts = make([]string, len(rows))
	}
	for i, r := range rows {
		if r < 0 {
			continue
		}
		out.Valid[i] = c.Valid[r]
		if c.Kind == KindNumeric {
			out.Nums[i] = c.Nums[r]
		} else {
			out.Texts[i] = c.Texts[r]
		}
	}
	return out
}

// Frame is an immutable-by-convention table of equally long columns.
// Operations return new frames and never modify their receiver.
type Frame struct {
	cols  []*Column
	index map[string]int
	nrow  int
}

// NewFrame assembles columns into a frame. Column names must be unique and all
// columns must have the same length.
func NewFrame(cols ...*Column) (*Frame, error) {
	f := &Frame{
		cols:  make([]*Column, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := f.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if err := c.check(); err != nil {
			return nil, err
		}
		if i == 0 {
			f.nrow = c.Len()
		} else if c.Len() != f.nrow {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), f.nrow)
		}
		f.index[c.Name] = len(f.cols)
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// MustFrame is NewFrame that panics on error. Intended for tests and literals.
func MustFrame(cols ...*Column) *Frame {
	f, err := NewFrame(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

func (c *Column) check() error {
	switch c.Kind {
	case KindNumeric:
		if len(c.Nums) != len(c.Valid) {
			return fmt.Errorf("column %q: %d values but %d validity flags", c.Name, len(c.Nums), len(c.Valid))
		}
	case KindText:
		if len(c.Texts) != len(c.Valid) {
			return fmt.Errorf("column %q: %d values but %d validity flags", c.Name, len(c.Texts), len(c.Valid))
		}
	default:
		return fmt.Errorf("column %q has unknown kind %d", c.Name, c.Kind)
	}
	return nil
}

// Nrow returns the number of rows
func (f *Frame) Nrow() int {
	return f.nrow
}

// Ncol returns the number of columns
func (f *Frame) Ncol() int {
	return len(f.cols)
}

// Names returns the column names in order
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the frame contains the named column
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column. The returned column is shared with the
// frame and must not be modified.
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, &ColumnError{Op: "lookup", Column: name, Err: ErrColumnNotFound}
	}
	return f.cols[i], nil
}

// Numeric returns the named column after checking that it is numeric
func (f *Frame) Numeric(name string) (*Column, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if !c.IsNumeric() {
		return nil, &ColumnError{Op: "lookup", Column: name, Err: ErrNonNumericColumn}
	}
	return c, nil
}

// Columns returns the frame's columns in order
func (f *Frame) Columns() []*Column {
	return append([]*Column(nil), f.cols...)
}

// Clone returns a deep copy of the frame
func (f *Frame) Clone() *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.Clone()
	}
	return MustFrame(cols...)
}

// With returns a frame with col added, or replacing the column of the same name
// in place.
func (f *Frame) With(col *Column) (*Frame, error) {
	cols := f.Columns()
	if i, ok := f.index[col.Name]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return NewFrame(cols...)
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	cols := make([]*Column, 0, len(f.cols))
	for _, c := range f.cols {
		if _, ok := drop[c.Name]; !ok {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return &Frame{index: map[string]int{}}
	}
	return MustFrame(cols...)
}

// Select returns a frame with only the named columns, in the given order
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return NewFrame(cols...)
}

// Take returns a frame holding the given rows in order
func (f *Frame) Take(rows []int) *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.take(rows)
	}
	out := MustFrame(cols...)
	out.nrow = len(rows)
	return out
}

// Filter returns the rows for which keep returns true
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	rows := make([]int, 0, f.nrow)
	for i := 0; i < f.nrow; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return f.Take(rows)
}

// Head returns at most n leading rows
func (f *Frame) Head(n int) *Frame {
	if n > f.nrow {
		n = f.nrow
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return f.Take(rows)
}

// Records renders the frame as string rows, header first
func (f *Frame) Records() [][]string {
	out := make([][]string, 0, f.nrow+1)
	out = append(out, f.Names())
	for r := 0; r < f.nrow; r++ {
		row := make([]string, len(f.cols))
		for i, c := range f.cols {
			row[i] = c.Format(r)
		}
		out = append(out, row)
	}
	return out
}

func allValid(n int) []bool {
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}
