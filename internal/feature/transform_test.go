package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func driverFrame() *Frame {
	return MustFrame(
		NumericColumn("driverId", []float64{1, 2, 3, 4}, nil),
		NumericColumn("raceYear", []float64{2009, 2010, 2012, 2019}, nil),
		NumericColumn("finishPositionRM1", []float64{3, 999, 999, 7}, []bool{true, true, true, false}),
		NumericColumn("driverRacePoints", []float64{15, 0, 18, 25}, nil),
		TextColumn("code", []string{"HAM", "ALO", "", "VET"}, []bool{true, true, false, true}),
	)
}

func TestNewFrameRejectsBadShapes(t *testing.T) {
	_, err := NewFrame(
		NumericColumn("a", []float64{1, 2}, nil),
		NumericColumn("b", []float64{1}, nil))
	assert.Error(t, err)

	_, err = NewFrame(
		NumericColumn("a", []float64{1}, nil),
		NumericColumn("a", []float64{2}, nil))
	assert.Error(t, err)

	_, err = NewFrame(&Column{Name: "a", Kind: KindNumeric, Nums: []float64{1}, Valid: []bool{true, true}})
	assert.Error(t, err)
}

func TestFrameSelectDrop(t *testing.T) {
	f := driverFrame()

	sel, err := f.Select("raceYear", "driverId")
	require.NoError(t, err)
	assert.Equal(t, []string{"raceYear", "driverId"}, sel.Names())

	_, err = f.Select("resultId")
	assert.ErrorIs(t, err, ErrColumnNotFound)

	dropped := f.Drop("code", "_c0")
	assert.Equal(t, []string{"driverId", "raceYear", "finishPositionRM1", "driverRacePoints"}, dropped.Names())
	assert.True(t, f.Has("code"), "drop does not modify the receiver")
}

func TestFillMissing(t *testing.T) {
	f := driverFrame()

	filled, err := FillMissing(f, 0, "finishPositionRM1")
	require.NoError(t, err)

	c, err := filled.Numeric("finishPositionRM1")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true, true}, c.Valid)
	assert.Equal(t, 0.0, c.Nums[3])

	orig, _ := f.Numeric("finishPositionRM1")
	assert.False(t, orig.Valid[3], "input untouched")

	_, err = FillMissing(f, 0, "code")
	assert.ErrorIs(t, err, ErrNonNumericColumn)
	_, err = FillMissing(f, 0, "lag1_avg")
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestReplaceValue(t *testing.T) {
	out, err := ReplaceValue(driverFrame(), 999, 20, "finishPositionRM1")
	require.NoError(t, err)

	c, err := out.Numeric("finishPositionRM1")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 20, 20, 7}, c.Nums)
	assert.False(t, c.Valid[3])
}

func TestRound(t *testing.T) {
	f := MustFrame(NumericColumn("predictions", []float64{17.5, 2.49, -0.5, 18.01}, nil))
	out, err := Round(f, "predictions")
	require.NoError(t, err)

	c, _ := out.Numeric("predictions")
	assert.Equal(t, []float64{18, 2, -1, 18}, c.Nums)
}

func TestFilterRange(t *testing.T) {
	train, err := FilterRange(driverFrame(), "raceYear", 0, 2010)
	require.NoError(t, err)
	assert.Equal(t, 2, train.Nrow())

	test, err := FilterRange(driverFrame(), "raceYear", 2011, 2017)
	require.NoError(t, err)
	ids, _ := test.Numeric("driverId")
	assert.Equal(t, []float64{3}, ids.Nums)
}

func TestFlag(t *testing.T) {
	f := MustFrame(NumericColumn("predictions", []float64{14, 15, 19, 20, 0}, []bool{true, true, true, true, false}))

	out, err := Flag(f, "drivSecPosPred", "predictions", func(v float64) bool { return v >= 15 && v <= 19 })
	require.NoError(t, err)

	c, _ := out.Numeric("drivSecPosPred")
	assert.Equal(t, []float64{0, 1, 1, 0, 0}, c.Nums)
}

func TestConcat(t *testing.T) {
	f := MustFrame(
		TextColumn("forename", []string{"Lewis", "Fernando", ""}, []bool{true, true, false}),
		TextColumn("surname", []string{"Hamilton", "Alonso", ""}, []bool{true, true, false}))

	out, err := Concat(f, "driverName", "", "forename", "surname")
	require.NoError(t, err)

	c, err := out.Column("driverName")
	require.NoError(t, err)
	assert.Equal(t, []string{"LewisHamilton", "FernandoAlonso", ""}, c.Texts)
	assert.Equal(t, []bool{true, true, false}, c.Valid)
}

func TestNumericColumns(t *testing.T) {
	names := NumericColumns(driverFrame(), "driverRacePoints")
	assert.Equal(t, []string{"driverId", "raceYear", "finishPositionRM1"}, names)
}

func TestRecords(t *testing.T) {
	f := MustFrame(
		NumericColumn("year", []float64{2010, 2011}, nil),
		NumericColumn("avgpoints_c", []float64{0.5, 0}, []bool{true, false}))

	assert.Equal(t, [][]string{
		{"year", "avgpoints_c"},
		{"2010", "0.5"},
		{"2011", ""},
	}, f.Records())
}
