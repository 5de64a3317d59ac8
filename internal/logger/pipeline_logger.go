package logger

import (
	"github.com/sirupsen/logrus"
)

// PipelineLogger provides dedicated logging for feature preparation and model training.
type PipelineLogger struct {
	*logrus.Entry
}

// NewPipelineLogger creates a new pipeline logger for the named pipeline.
func NewPipelineLogger(baseLogger *logrus.Logger, pipeline string) *PipelineLogger {
	return &PipelineLogger{
		Entry: baseLogger.WithFields(logrus.Fields{
			"component": "pipeline",
			"pipeline":  pipeline,
		}),
	}
}

// LogDatasetLoaded logs a dataset read.
func (pl *PipelineLogger) LogDatasetLoaded(name, uri string, rows, columns int) {
	pl.WithFields(logrus.Fields{
		"dataset": name,
		"uri":     uri,
		"rows":    rows,
		"columns": columns,
	}).Info("Dataset loaded")
}

// LogNormalization logs a partitioned normalization pass.
func (pl *PipelineLogger) LogNormalization(partitionKey string, features, rows, partitions int, degenerate map[string]int) {
	pl.WithFields(logrus.Fields{
		"partition_key": partitionKey,
		"features":      features,
		"rows":          rows,
		"partitions":    partitions,
		"degenerate":    degenerate,
	}).Info("Features normalized")
}

// LogSplit logs a train/test split.
func (pl *PipelineLogger) LogSplit(trainRows, testRows int) {
	pl.WithFields(logrus.Fields{
		"train_rows": trainRows,
		"test_rows":  testRows,
	}).Info("Dataset split")
}

// LogModelTraining logs model training events.
func (pl *PipelineLogger) LogModelTraining(modelType string, trainingDuration float64, metrics map[string]float64, hyperparameters map[string]interface{}) {
	pl.WithFields(logrus.Fields{
		"model_type":        modelType,
		"training_duration": trainingDuration,
		"metrics":           metrics,
		"hyperparameters":   hyperparameters,
	}).Info("Model training completed")
}

// LogCrossValidation logs the averaged fold metric for every candidate.
func (pl *PipelineLogger) LogCrossValidation(metricName string, folds int, avgMetrics []float64, bestIndex int) {
	pl.WithFields(logrus.Fields{
		"metric":      metricName,
		"folds":       folds,
		"avg_metrics": avgMetrics,
		"best_index":  bestIndex,
	}).Info("Cross-validation completed")
}

// LogPredictionsWritten logs an output table write.
func (pl *PipelineLogger) LogPredictionsWritten(table string, rows int) {
	pl.WithFields(logrus.Fields{
		"table": table,
		"rows":  rows,
	}).Info("Predictions written")
}

// LogPipelineError logs a failed pipeline stage.
func (pl *PipelineLogger) LogPipelineError(stage string, err error) {
	pl.WithError(err).WithField("stage", stage).Error("Pipeline stage failed")
}
