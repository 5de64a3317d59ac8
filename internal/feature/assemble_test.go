package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble(t *testing.T) {
	f := MustFrame(
		NumericColumn("race_count", []float64{0, 0.5, 1}, nil),
		NumericColumn("lag1_avg", []float64{0.2, 0.4, 0.6}, nil),
		NumericColumn("champion", []float64{0, 0, 1}, nil))

	x, err := Assembler{InputCols: []string{"race_count", "lag1_avg"}}.Assemble(f)
	require.NoError(t, err)

	r, c := x.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 0.5, x.At(1, 0))
	assert.Equal(t, 0.6, x.At(2, 1))

	y, err := Vector(f, "champion")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1}, y)
}

func TestAssembleRejectsMissingValues(t *testing.T) {
	f := MustFrame(NumericColumn("lag1_avg", []float64{0.2, 0}, []bool{true, false}))

	_, err := Assembler{InputCols: []string{"lag1_avg"}}.Assemble(f)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingValue)

	filled, err := FillMissing(f, 0, "lag1_avg")
	require.NoError(t, err)
	_, err = Assembler{InputCols: []string{"lag1_avg"}}.Assemble(filled)
	assert.NoError(t, err)
}

func TestAssembleColumnErrors(t *testing.T) {
	f := MustFrame(TextColumn("name", []string{"a"}, nil))

	_, err := Assembler{InputCols: []string{"name"}}.Assemble(f)
	assert.ErrorIs(t, err, ErrNonNumericColumn)

	_, err = Assembler{InputCols: []string{"race_count"}}.Assemble(f)
	assert.ErrorIs(t, err, ErrColumnNotFound)

	_, err = Assembler{}.Assemble(f)
	assert.ErrorIs(t, err, ErrNoFeatures)
}
