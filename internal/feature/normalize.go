package feature

import (
	"fmt"
	"io"
	"math"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/yourusername/pitwall/internal/metrics"
)

// MissingPolicy decides how missing feature values are treated during normalization
type MissingPolicy string

const (
	// MissingSkip excludes missing values from min/max and leaves them missing
	MissingSkip MissingPolicy = "skip"
	// MissingFail aborts normalization on the first missing value
	MissingFail MissingPolicy = "fail"
)

// ParseMissingPolicy converts a configuration string into a MissingPolicy.
// The empty string selects MissingSkip.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch MissingPolicy(s) {
	case "", MissingSkip:
		return MissingSkip, nil
	case MissingFail:
		return MissingFail, nil
	default:
		return "", fmt.Errorf("unknown missing policy %q (want skip or fail)", s)
	}
}

// NormalizerConfig configures partitioned min-max normalization
type NormalizerConfig struct {
	PartitionKey  string
	Features      []string
	MissingPolicy MissingPolicy
	// Workers bounds the number of partitions processed concurrently.
	// Zero uses GOMAXPROCS.
	Workers int
}

// NormalizeReport summarizes one normalization pass
type NormalizeReport struct {
	Rows       int
	Partitions int
	// Degenerate counts, per feature, the partitions where min == max
	Degenerate map[string]int
	// Missing counts, per feature, the values left missing
	Missing map[string]int
}

// Normalizer rescales feature columns to [0,1] independently within each
// partition of a frame. It holds no state between calls.
type Normalizer struct {
	cfg    NormalizerConfig
	logger *logrus.Entry
}

// NewNormalizer validates cfg and returns a Normalizer
func NewNormalizer(cfg NormalizerConfig, logger *logrus.Logger) (*Normalizer, error) {
	if cfg.PartitionKey == "" {
		return nil, fmt.Errorf("partition key is required")
	}
	if len(cfg.Features) == 0 {
		return nil, ErrNoFeatures
	}
	policy, err := ParseMissingPolicy(string(cfg.MissingPolicy))
	if err != nil {
		return nil, err
	}
	cfg.MissingPolicy = policy
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &Normalizer{
		cfg:    cfg,
		logger: logger.WithField("component", "normalizer"),
	}, nil
}

// Config returns the normalizer configuration with defaults applied
func (n *Normalizer) Config() NormalizerConfig {
	return n.cfg
}

// Normalize returns a new frame with every configured feature min-max scaled
// within its partition. The input frame is not modified.
func (n *Normalizer) Normalize(f *Frame) (*Frame, *NormalizeReport, error) {
	start := time.Now()

	out, report, err := normalize(f, n.cfg)
	if err != nil {
		n.logger.WithError(err).WithField("partition_key", n.cfg.PartitionKey).Error("Normalization failed")
		return nil, nil, err
	}

	elapsed := time.Since(start)
	metrics.RecordNormalization(report.Rows, report.Partitions, elapsed.Seconds())
	for feature, count := range report.Degenerate {
		if count > 0 {
			metrics.RecordDegeneratePartitions(feature, count)
			n.logger.WithFields(logrus.Fields{
				"feature":    feature,
				"partitions": count,
			}).Debug("Degenerate partitions mapped to zero")
		}
	}

	n.logger.WithFields(logrus.Fields{
		"partition_key": n.cfg.PartitionKey,
		"features":      len(n.cfg.Features),
		"rows":          report.Rows,
		"partitions":    report.Partitions,
		"duration_ms":   elapsed.Milliseconds(),
	}).Info("Normalized features")

	return out, report, nil
}

// MinMaxByPartition is the configuration-free form of Normalizer.Normalize.
// Missing values are skipped.
func MinMaxByPartition(f *Frame, partitionKey string, features ...string) (*Frame, error) {
	out, _, err := normalize(f, NormalizerConfig{
		PartitionKey:  partitionKey,
		Features:      features,
		MissingPolicy: MissingSkip,
		Workers:       runtime.GOMAXPROCS(0),
	})
	return out, err
}

type partitionStats struct {
	degenerate []bool
	missing    []int
}

func normalize(f *Frame, cfg NormalizerConfig) (*Frame, *NormalizeReport, error) {
	if f == nil || f.Nrow() == 0 {
		return nil, nil, ErrEmptyFrame
	}
	if len(cfg.Features) == 0 {
		return nil, nil, ErrNoFeatures
	}

	keyCol, err := f.Column(cfg.PartitionKey)
	if err != nil {
		return nil, nil, &ColumnError{Op: "normalize", Column: cfg.PartitionKey, Err: ErrColumnNotFound}
	}

	sources := make([]*Column, len(cfg.Features))
	outputs := make([]*Column, len(cfg.Features))
	for i, name := range cfg.Features {
		c, err := f.Column(name)
		if err != nil {
			return nil, nil, &ColumnError{Op: "normalize", Column: name, Err: ErrColumnNotFound}
		}
		if !c.IsNumeric() {
			return nil, nil, &ColumnError{Op: "normalize", Column: name, Err: ErrNonNumericColumn}
		}
		sources[i] = c
		outputs[i] = c.Clone()
	}

	groups, err := partitionRows(keyCol)
	if err != nil {
		return nil, nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	// Partitions own disjoint row sets, so goroutines write disjoint indices
	// of the output slices.
	stats := make([]partitionStats, len(groups))
	var g errgroup.Group
	g.SetLimit(workers)
	for p := range groups {
		p := p
		g.Go(func() error {
			st := partitionStats{
				degenerate: make([]bool, len(sources)),
				missing:    make([]int, len(sources)),
			}
			for j := range sources {
				degenerate, missing, err := scalePartition(sources[j], outputs[j], groups[p], cfg.MissingPolicy)
				if err != nil {
					return err
				}
				st.degenerate[j] = degenerate
				st.missing[j] = missing
			}
			stats[p] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	report := &NormalizeReport{
		Rows:       f.Nrow(),
		Partitions: len(groups),
		Degenerate: make(map[string]int, len(sources)),
		Missing:    make(map[string]int, len(sources)),
	}
	for _, st := range stats {
		for j, name := range cfg.Features {
			if st.degenerate[j] {
				report.Degenerate[name]++
			}
			report.Missing[name] += st.missing[j]
		}
	}

	cols := f.Columns()
	for _, c := range outputs {
		cols[f.index[c.Name]] = c
	}
	out, err := NewFrame(cols...)
	if err != nil {
		return nil, nil, err
	}
	return out, report, nil
}

// partitionRows groups row indices by partition key, in order of first appearance
func partitionRows(key *Column) ([][]int, error) {
	index := make(map[string]int)
	var groups [][]int
	for r := 0; r < key.Len(); r++ {
		if !key.Valid[r] {
			return nil, &ColumnError{Op: "partition", Column: key.Name, Err: fmt.Errorf("row %d: %w", r, ErrMissingPartitionKey)}
		}
		k := key.Format(r)
		g, ok := index[k]
		if !ok {
			g = len(groups)
			index[k] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], r)
	}
	return groups, nil
}

// scalePartition writes the scaled values of src's rows into dst
func scalePartition(src, dst *Column, rows []int, policy MissingPolicy) (bool, int, error) {
	missing := 0
	values := make([]float64, 0, len(rows))
	for _, r := range rows {
		if !src.Valid[r] {
			if policy == MissingFail {
				return false, 0, missingAt("normalize", src.Name, r)
			}
			missing++
			continue
		}
		values = append(values, src.Nums[r])
	}
	if len(values) == 0 {
		return false, missing, nil
	}

	lo, hi := bounds(values)
	degenerate := lo == hi
	for _, r := range rows {
		if !src.Valid[r] {
			continue
		}
		if degenerate {
			dst.Nums[r] = 0
			continue
		}
		dst.Nums[r] = (src.Nums[r] - lo) / (hi - lo)
	}
	return degenerate, missing, nil
}

// bounds returns min and max, or NaN for both when any value is NaN
func bounds(values []float64) (float64, float64) {
	if floats.HasNaN(values) {
		return math.NaN(), math.NaN()
	}
	return floats.Min(values), floats.Max(values)
}
