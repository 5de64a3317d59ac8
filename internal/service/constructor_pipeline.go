package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/pitwall/internal/config"
	"github.com/yourusername/pitwall/internal/feature"
	"github.com/yourusername/pitwall/internal/logger"
	"github.com/yourusername/pitwall/internal/metrics"
	"github.com/yourusername/pitwall/internal/ml"
)

// ConstructorPipelineName identifies the constructor championship pipeline
const ConstructorPipelineName = "constructor"

// ConstructorChampionshipPipeline predicts whether a constructor wins the
// season: features are min-max scaled per season, a cross-validated logistic
// regression is fitted on every row, and the scored rows are written out.
type ConstructorChampionshipPipeline struct {
	deps Dependencies
	cfg  config.ConstructorConfig
	norm config.NormalizationConfig
	log  *logger.PipelineLogger
}

// NewConstructorChampionshipPipeline creates the pipeline
func NewConstructorChampionshipPipeline(deps Dependencies, cfg config.ConstructorConfig, norm config.NormalizationConfig) (*ConstructorChampionshipPipeline, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &ConstructorChampionshipPipeline{
		deps: deps,
		cfg:  cfg,
		norm: norm,
		log:  logger.NewPipelineLogger(deps.logger(), ConstructorPipelineName),
	}, nil
}

// Name returns the pipeline name
func (p *ConstructorChampionshipPipeline) Name() string { return ConstructorPipelineName }

// Run executes the pipeline end to end under one tracked run
func (p *ConstructorChampionshipPipeline) Run(ctx context.Context) (*PipelineReport, error) {
	s, err := startRun(ctx, p.deps.Tracker, p.cfg.Experiment, p.Name(), p.log)
	if err != nil {
		return nil, err
	}

	raw, err := s.load(ctx, p.deps.Loader, "constructor_features", p.cfg.FeaturesURI)
	if err != nil {
		return nil, s.fail(ctx, "load", err)
	}

	prepared, err := p.prepare(raw)
	if err != nil {
		return nil, s.fail(ctx, "prepare", err)
	}

	X, err := feature.Assembler{InputCols: p.cfg.InputColumns}.Assemble(prepared)
	if err != nil {
		return nil, s.fail(ctx, "assemble", err)
	}
	y, err := feature.Vector(prepared, p.cfg.Label)
	if err != nil {
		return nil, s.fail(ctx, "assemble", err)
	}

	cv := ml.CrossValidator{
		Estimators: ml.ParamGrid{
			RegParams:        p.cfg.RegParams,
			ElasticNetParams: p.cfg.ElasticNetParams,
			MaxIter:          p.cfg.MaxIter,
		}.Build(),
		NumFolds:  p.cfg.NumFolds,
		Seed:      p.cfg.Seed,
		Evaluator: ml.NewBinaryEvaluator(ml.DefaultMetric),
	}
	if err := s.run.LogParams(ctx, map[string]interface{}{
		"numFolds":         cv.NumFolds,
		"seed":             cv.Seed,
		"candidates":       len(cv.Estimators),
		"inputColumns":     p.cfg.InputColumns,
		"label":            p.cfg.Label,
		"partitionKey":     p.norm.PartitionKey,
		"normalizeColumns": p.cfg.NormalizeColumns,
	}); err != nil {
		return nil, s.fail(ctx, "log params", err)
	}

	fitStart := time.Now()
	cvModel, err := cv.Fit(X, y)
	if err != nil {
		metrics.RecordTraining("logistic_regression", "failure", time.Since(fitStart).Seconds())
		return nil, s.fail(ctx, "cross-validate", err)
	}
	fitSeconds := time.Since(fitStart).Seconds()
	metrics.RecordTraining("logistic_regression", "success", fitSeconds)
	p.log.LogCrossValidation(cvModel.Metric, cvModel.NumFolds, cvModel.AvgMetrics, cvModel.BestIndex)

	probs, err := cvModel.Best.PredictProba(X)
	if err != nil {
		return nil, s.fail(ctx, "predict", err)
	}
	summary, err := ml.EvaluateBinary(y, probs, cvModel.Best.Threshold)
	if err != nil {
		return nil, s.fail(ctx, "evaluate", err)
	}

	results := summary.Map()
	results["avgCVAreaUnderROC"] = cvModel.BestMetric()
	p.log.LogModelTraining("logistic_regression", fitSeconds, results, toInterfaceMap(cvModel.BestParams.Params()))

	if err := s.run.LogParams(ctx, toInterfaceMap(cvModel.BestParams.Params())); err != nil {
		return nil, s.fail(ctx, "log params", err)
	}
	if err := s.logMetrics(ctx, results); err != nil {
		return nil, s.fail(ctx, "log metrics", err)
	}
	if err := p.logArtifacts(ctx, s, cvModel.Best, summary); err != nil {
		return nil, s.fail(ctx, "log artifacts", err)
	}

	out, err := p.output(prepared, ml.Threshold(probs, cvModel.Best.Threshold))
	if err != nil {
		return nil, s.fail(ctx, "output", err)
	}
	if err := p.deps.Sink.Overwrite(ctx, p.cfg.OutputTable, out); err != nil {
		return nil, s.fail(ctx, "write predictions", err)
	}
	p.log.LogPredictionsWritten(p.cfg.OutputTable, out.Nrow())

	s.report.Rows = out.Nrow()
	s.report.Table = p.cfg.OutputTable
	return s.finish(ctx)
}

// prepare scales the configured columns per partition and fills gaps in the
// model inputs with zero
func (p *ConstructorChampionshipPipeline) prepare(raw *feature.Frame) (*feature.Frame, error) {
	policy, err := feature.ParseMissingPolicy(p.norm.MissingPolicy)
	if err != nil {
		return nil, err
	}
	normalizer, err := feature.NewNormalizer(feature.NormalizerConfig{
		PartitionKey:  p.norm.PartitionKey,
		Features:      p.cfg.NormalizeColumns,
		MissingPolicy: policy,
		Workers:       p.norm.Workers,
	}, p.deps.logger())
	if err != nil {
		return nil, err
	}

	scaled, report, err := normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}
	p.log.LogNormalization(p.norm.PartitionKey, len(p.cfg.NormalizeColumns), report.Rows, report.Partitions, report.Degenerate)

	return feature.FillMissing(scaled, 0, p.cfg.FillColumns...)
}

func (p *ConstructorChampionshipPipeline) logArtifacts(ctx context.Context, s *runState, model *ml.LogisticModel, summary *ml.BinaryMetrics) error {
	ranked, err := ml.RankImportances(p.cfg.InputColumns, model.Coefficients)
	if err != nil {
		return err
	}
	if err := s.logFrame(ctx, "feature-importance.csv", ml.ImportanceFrame(ranked, "importance")); err != nil {
		return err
	}
	if len(summary.ROC) > 0 {
		if err := s.logFrame(ctx, "roc-curve.csv", ml.CurveFrame(summary.ROC, "FPR", "TPR")); err != nil {
			return err
		}
	}
	if len(summary.PR) > 0 {
		if err := s.logFrame(ctx, "precision-recall.csv", ml.CurveFrame(summary.PR, "recall", "precision")); err != nil {
			return err
		}
	}
	return s.logJSON(ctx, "model.json", model)
}

// output selects the configured columns, the label and the predicted class
func (p *ConstructorChampionshipPipeline) output(f *feature.Frame, predicted []float64) (*feature.Frame, error) {
	cols := p.cfg.OutputColumns
	if len(cols) == 0 {
		cols = f.Names()
	}
	selected := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		if c != p.cfg.Label {
			selected = append(selected, c)
		}
	}
	selected = append(selected, p.cfg.Label)

	out, err := f.Select(selected...)
	if err != nil {
		return nil, fmt.Errorf("select output columns: %w", err)
	}
	return feature.WithNumeric(out, "prediction", predicted, nil)
}

func toInterfaceMap(m map[string]float64) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
