// Package metrics defines model training metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TrainingRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "training_runs_total",
		Help:      "Total number of model fits by model type and outcome",
	}, []string{"model_type", "status"})

	TrainingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "training_duration_seconds",
		Help:      "Duration of model fits in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"model_type"})

	ModelMetric = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "model_metric",
		Help:      "Latest evaluation metric reported by each pipeline",
	}, []string{"pipeline", "metric"})

	CrossValidationFolds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cross_validation_folds_total",
		Help:      "Total number of cross-validation folds fitted",
	})
)

// RecordTraining records a model fit.
func RecordTraining(modelType, status string, durationSeconds float64) {
	TrainingRunsTotal.WithLabelValues(modelType, status).Inc()
	TrainingDuration.WithLabelValues(modelType).Observe(durationSeconds)
}

// UpdateModelMetric sets the latest value of an evaluation metric.
func UpdateModelMetric(pipeline, metric string, value float64) {
	ModelMetric.WithLabelValues(pipeline, metric).Set(value)
}

// RecordCrossValidationFolds records fitted folds.
func RecordCrossValidationFolds(n int) {
	CrossValidationFolds.Add(float64(n))
}
