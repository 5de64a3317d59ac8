package feature

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// Assembler packs numeric columns into a row-major design matrix, one row per
// frame row and one column per input column.
type Assembler struct {
	InputCols []string
}

// Assemble builds the design matrix. Missing values are an error; fill them
// before assembling.
func (a Assembler) Assemble(f *Frame) (*mat.Dense, error) {
	if len(a.InputCols) == 0 {
		return nil, ErrNoFeatures
	}
	if f.Nrow() == 0 {
		return nil, ErrEmptyFrame
	}

	cols := make([]*Column, len(a.InputCols))
	for j, name := range a.InputCols {
		c, err := f.Numeric(name)
		if err != nil {
			return nil, &ColumnError{Op: "assemble", Column: name, Err: unwrapColumnErr(err)}
		}
		cols[j] = c
	}

	data := make([]float64, f.Nrow()*len(cols))
	for r := 0; r < f.Nrow(); r++ {
		for j, c := range cols {
			if !c.Valid[r] {
				return nil, missingAt("assemble", c.Name, r)
			}
			data[r*len(cols)+j] = c.Nums[r]
		}
	}
	return mat.NewDense(f.Nrow(), len(cols), data), nil
}

// Vector returns the values of a numeric column with no missing entries
func Vector(f *Frame, name string) ([]float64, error) {
	c, err := f.Numeric(name)
	if err != nil {
		return nil, err
	}
	for r, ok := range c.Valid {
		if !ok {
			return nil, missingAt("vector", name, r)
		}
	}
	return append([]float64(nil), c.Nums...), nil
}

func unwrapColumnErr(err error) error {
	var ce *ColumnError
	if errors.As(err, &ce) {
		return ce.Err
	}
	return err
}
