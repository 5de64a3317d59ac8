package datasource

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/yourusername/pitwall/internal/feature"
)

// MissingTokens are the cell values decoded as missing
var MissingTokens = []string{"", "NA", "NaN", "null", "<nil>"}

// DecodeCSV reads a headed CSV table, inferring column types. Integer and
// float columns become numeric; everything else is text. Cells matching
// MissingTokens are missing.
func DecodeCSV(r io.Reader) (*feature.Frame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(MissingTokens),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("decode csv: %w", df.Err)
	}
	return fromDataFrame(df)
}

func fromDataFrame(df dataframe.DataFrame) (*feature.Frame, error) {
	names := df.Names()
	cols := make([]*feature.Column, len(names))
	for i, name := range names {
		s := df.Col(name)
		if s.Err != nil {
			return nil, fmt.Errorf("decode csv: column %q: %w", name, s.Err)
		}
		missing := s.IsNaN()
		valid := make([]bool, len(missing))
		for j, na := range missing {
			valid[j] = !na
		}

		switch s.Type() {
		case series.Int, series.Float:
			cols[i] = feature.NumericColumn(name, s.Float(), valid)
		default:
			cols[i] = promoteNumeric(feature.TextColumn(name, s.Records(), valid))
		}
	}
	return feature.NewFrame(cols...)
}

// promoteNumeric converts a text column whose present values all parse as
// numbers. Type detection sees missing tokens such as "NA" as text, so a
// numeric column with gaps arrives here as text.
func promoteNumeric(c *feature.Column) *feature.Column {
	nums := make([]float64, c.Len())
	present := 0
	for i, ok := range c.Valid {
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(c.Texts[i], 64)
		if err != nil || math.IsNaN(v) {
			return c
		}
		nums[i] = v
		present++
	}
	if present == 0 {
		return c
	}
	return feature.NumericColumn(c.Name, nums, c.Valid)
}

// EncodeCSV writes the frame as a headed CSV table. Missing values are written
// as empty cells. NaN is written as "NaN", which DecodeCSV reads back as
// missing: gota has no float state that is NaN but not NA.
func EncodeCSV(w io.Writer, f *feature.Frame) error {
	if f.Nrow() == 0 {
		return fmt.Errorf("encode csv: %w", feature.ErrEmptyFrame)
	}
	df := dataframe.LoadRecords(f.Records(),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		return fmt.Errorf("encode csv: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	return nil
}
