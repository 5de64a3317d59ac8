package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/yourusername/pitwall/internal/config"
	"github.com/yourusername/pitwall/internal/datasource"
	"github.com/yourusername/pitwall/internal/feature"
	"github.com/yourusername/pitwall/internal/logger"
	"github.com/yourusername/pitwall/internal/metrics"
	"github.com/yourusername/pitwall/internal/ml"
)

// DriverPipelineName identifies the driver race points pipeline
const DriverPipelineName = "driver"

const (
	predictionColumn      = "predictions"
	secondPlacePredColumn = "drivSecPosPred"
	secondPlaceColumn     = "drivSecPos"
)

// DriverResultsPipeline regresses the points a driver scores in a race with a
// random forest trained on earlier seasons, then enriches the held-out
// predictions with driver, constructor and race details.
type DriverResultsPipeline struct {
	deps Dependencies
	cfg  config.DriverConfig
	log  *logger.PipelineLogger
}

// NewDriverResultsPipeline creates the pipeline
func NewDriverResultsPipeline(deps Dependencies, cfg config.DriverConfig) (*DriverResultsPipeline, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.TestMinYear > cfg.TestMaxYear {
		return nil, fmt.Errorf("test years %d..%d are empty", cfg.TestMinYear, cfg.TestMaxYear)
	}
	return &DriverResultsPipeline{
		deps: deps,
		cfg:  cfg,
		log:  logger.NewPipelineLogger(deps.logger(), DriverPipelineName),
	}, nil
}

// Name returns the pipeline name
func (p *DriverResultsPipeline) Name() string { return DriverPipelineName }

// lookups are the reference tables joined onto the predictions
type lookups struct {
	drivers      *feature.Frame
	constructors *feature.Frame
	races        *feature.Frame
}

// Run executes the pipeline end to end under one tracked run
func (p *DriverResultsPipeline) Run(ctx context.Context) (*PipelineReport, error) {
	s, err := startRun(ctx, p.deps.Tracker, p.cfg.Experiment, p.Name(), p.log)
	if err != nil {
		return nil, err
	}

	raw, err := s.load(ctx, p.deps.Loader, "driver_features", p.cfg.FeaturesURI)
	if err != nil {
		return nil, s.fail(ctx, "load", err)
	}
	uris := map[string]string{
		"drivers":      p.cfg.DriversURI,
		"constructors": p.cfg.ConstructorsURI,
		"races":        p.cfg.RacesURI,
	}
	frames, err := datasource.LoadAll(ctx, p.deps.Loader, uris)
	if err != nil {
		return nil, s.fail(ctx, "load", err)
	}
	for name, f := range frames {
		p.log.LogDatasetLoaded(name, uris[name], f.Nrow(), f.Ncol())
	}
	ref := lookups{
		drivers:      frames["drivers"],
		constructors: frames["constructors"],
		races:        frames["races"],
	}

	train, test, err := p.split(raw)
	if err != nil {
		return nil, s.fail(ctx, "prepare", err)
	}
	p.log.LogSplit(train.Nrow(), test.Nrow())

	features := feature.NumericColumns(train, p.cfg.Label)
	Xtrain, err := feature.Assembler{InputCols: features}.Assemble(train)
	if err != nil {
		return nil, s.fail(ctx, "assemble", err)
	}
	ytrain, err := feature.Vector(train, p.cfg.Label)
	if err != nil {
		return nil, s.fail(ctx, "assemble", err)
	}
	Xtest, err := feature.Assembler{InputCols: features}.Assemble(test)
	if err != nil {
		return nil, s.fail(ctx, "assemble", err)
	}
	ytest, err := feature.Vector(test, p.cfg.Label)
	if err != nil {
		return nil, s.fail(ctx, "assemble", err)
	}

	rf := ml.RandomForestRegressor{
		NEstimators:     p.cfg.NEstimators,
		MaxDepth:        p.cfg.MaxDepth,
		MaxFeatures:     p.cfg.MaxFeatures,
		MinSamplesSplit: p.cfg.MinSamplesSplit,
		MinSamplesLeaf:  p.cfg.MinSamplesLeaf,
		Bootstrap:       true,
		RandomState:     p.cfg.RandomState,
	}
	if err := s.run.LogParams(ctx, rf.Params()); err != nil {
		return nil, s.fail(ctx, "log params", err)
	}
	if err := s.run.LogParams(ctx, map[string]interface{}{
		"features":     len(features),
		"trainMaxYear": p.cfg.TrainMaxYear,
		"testYears":    fmt.Sprintf("%d-%d", p.cfg.TestMinYear, p.cfg.TestMaxYear),
	}); err != nil {
		return nil, s.fail(ctx, "log params", err)
	}

	fitStart := time.Now()
	model, err := rf.Fit(Xtrain, ytrain)
	if err != nil {
		metrics.RecordTraining("random_forest", "failure", time.Since(fitStart).Seconds())
		return nil, s.fail(ctx, "fit", err)
	}
	fitSeconds := time.Since(fitStart).Seconds()
	metrics.RecordTraining("random_forest", "success", fitSeconds)

	predicted, err := model.Predict(Xtest)
	if err != nil {
		return nil, s.fail(ctx, "predict", err)
	}
	reg, err := ml.EvaluateRegression(ytest, predicted)
	if err != nil {
		return nil, s.fail(ctx, "evaluate", err)
	}
	p.log.LogModelTraining("random_forest", fitSeconds, reg.Map(), rf.Params())
	if err := s.logMetrics(ctx, reg.Map()); err != nil {
		return nil, s.fail(ctx, "log metrics", err)
	}

	if err := p.logArtifacts(ctx, s, features, model, ytest, predicted); err != nil {
		return nil, s.fail(ctx, "log artifacts", err)
	}

	out, err := p.enrich(test, predicted, ref)
	if err != nil {
		return nil, s.fail(ctx, "enrich", err)
	}
	placing, err := secondPlaceMetrics(out)
	if err != nil {
		return nil, s.fail(ctx, "evaluate", err)
	}
	if err := s.logMetrics(ctx, placing); err != nil {
		return nil, s.fail(ctx, "log metrics", err)
	}

	if err := p.deps.Sink.Overwrite(ctx, p.cfg.OutputTable, out); err != nil {
		return nil, s.fail(ctx, "write predictions", err)
	}
	p.log.LogPredictionsWritten(p.cfg.OutputTable, out.Nrow())

	s.report.Rows = out.Nrow()
	s.report.Table = p.cfg.OutputTable
	return s.finish(ctx)
}

// split cleans the raw features and divides them by season into a training
// set and a held-out test window
func (p *DriverResultsPipeline) split(raw *feature.Frame) (*feature.Frame, *feature.Frame, error) {
	f := raw.Drop("_c0")

	sentinels := presentColumns(f, p.cfg.SentinelColumns)
	if len(sentinels) > 0 {
		var err error
		f, err = feature.ReplaceValue(f, p.cfg.SentinelValue, p.cfg.SentinelReplacement, sentinels...)
		if err != nil {
			return nil, nil, err
		}
	}

	f = f.Drop(p.cfg.DropColumns...)
	if fill := presentColumns(f, p.cfg.FillColumns); len(fill) > 0 {
		var err error
		if f, err = feature.FillMissing(f, 0, fill...); err != nil {
			return nil, nil, err
		}
	}

	train, err := feature.FilterRange(f, p.cfg.YearColumn, math.Inf(-1), float64(p.cfg.TrainMaxYear))
	if err != nil {
		return nil, nil, err
	}
	test, err := feature.FilterRange(f, p.cfg.YearColumn, float64(p.cfg.TestMinYear), float64(p.cfg.TestMaxYear))
	if err != nil {
		return nil, nil, err
	}
	if train.Nrow() == 0 || test.Nrow() == 0 {
		return nil, nil, fmt.Errorf("%w: %d training rows, %d test rows", ErrEmptySplit, train.Nrow(), test.Nrow())
	}
	return train, test, nil
}

func (p *DriverResultsPipeline) logArtifacts(ctx context.Context, s *runState, features []string, model *ml.ForestModel, actual, predicted []float64) error {
	ranked, err := ml.RankImportances(features, model.Importances)
	if err != nil {
		return err
	}
	if err := s.logFrame(ctx, "feature-importance.csv", ml.ImportanceFrame(ranked, "importance")); err != nil {
		return err
	}
	if err := s.logFrame(ctx, "residuals.csv", ml.ResidualFrame(actual, predicted)); err != nil {
		return err
	}
	return s.logJSON(ctx, "model-summary.json", model.Summary())
}

// enrich lays out the output rows: the test features, the rounded prediction,
// the label, the joined reference details and the second place flags
func (p *DriverResultsPipeline) enrich(test *feature.Frame, predicted []float64, ref lookups) (*feature.Frame, error) {
	label, err := test.Column(p.cfg.Label)
	if err != nil {
		return nil, err
	}
	out, err := feature.WithNumeric(test.Drop(p.cfg.Label), predictionColumn, predicted, nil)
	if err != nil {
		return nil, err
	}
	if out, err = feature.Round(out, predictionColumn); err != nil {
		return nil, err
	}
	if out, err = out.With(label.Clone()); err != nil {
		return nil, err
	}

	drivers, err := feature.Concat(ref.drivers, "driverName", "", "forename", "surname")
	if err != nil {
		return nil, fmt.Errorf("drivers: %w", err)
	}
	joins := []struct {
		right *feature.Frame
		on    string
		pick  []feature.Alias
	}{
		{drivers, "driverId", []feature.Alias{{Source: "driverName"}, {Source: "nationality", As: "driverNat"}}},
		{ref.constructors, "constructorId", []feature.Alias{{Source: "name", As: "constructorName"}, {Source: "nationality", As: "constructorNat"}}},
		{ref.races, "raceId", []feature.Alias{{Source: "name", As: "raceName"}, {Source: "round", As: "raceRound"}, {Source: "date", As: "raceDate"}}},
	}
	for _, j := range joins {
		if out, err = feature.LeftJoin(out, j.right, j.on, j.pick...); err != nil {
			return nil, fmt.Errorf("join on %s: %w", j.on, err)
		}
	}

	low, high, points := p.cfg.SecondPlaceLow, p.cfg.SecondPlaceHigh, p.cfg.SecondPlacePoints
	if out, err = feature.Flag(out, secondPlacePredColumn, predictionColumn, func(v float64) bool {
		return v >= low && v <= high
	}); err != nil {
		return nil, err
	}
	return feature.Flag(out, secondPlaceColumn, p.cfg.Label, func(v float64) bool { return v == points })
}

// secondPlaceMetrics scores the second place flags: accuracy over every row,
// and the hit rate over the rows that actually finished second. The hit rate
// is NaN when no row finished second.
func secondPlaceMetrics(f *feature.Frame) (map[string]float64, error) {
	pred, err := f.Numeric(secondPlacePredColumn)
	if err != nil {
		return nil, err
	}
	actual, err := f.Numeric(secondPlaceColumn)
	if err != nil {
		return nil, err
	}

	var agree, positives, hits float64
	for i := range actual.Nums {
		if pred.Nums[i] == actual.Nums[i] {
			agree++
		}
		if actual.Nums[i] == 1 {
			positives++
			if pred.Nums[i] == 1 {
				hits++
			}
		}
	}

	out := map[string]float64{
		"secondPlaceAccuracy": math.NaN(),
		"secondPlaceHitRate":  math.NaN(),
	}
	if n := len(actual.Nums); n > 0 {
		out["secondPlaceAccuracy"] = agree / float64(n)
	}
	if positives > 0 {
		out["secondPlaceHitRate"] = hits / positives
	}
	return out, nil
}

func presentColumns(f *feature.Frame, names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if f.Has(n) {
			out = append(out, n)
		}
	}
	return out
}
