// Package metrics provides the centralized Prometheus registry for the pipelines.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pitwall"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	RowsNormalizedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_normalized_total",
		Help:      "Total number of rows passed through min-max normalization",
	})
	PartitionsNormalizedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "partitions_normalized_total",
		Help:      "Total number of partitions normalized",
	})
	DegeneratePartitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "degenerate_partitions_total",
		Help:      "Partitions where a feature's minimum equals its maximum",
	}, []string{"feature"})
	DatasetsLoadedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "datasets_loaded_total",
		Help:      "Total number of tables loaded by source scheme and cache outcome",
	}, []string{"scheme", "cache_hit"})
	PredictionRowsWrittenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prediction_rows_written_total",
		Help:      "Total number of prediction rows written per table",
	}, []string{"table"})
	PipelineRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Total number of pipeline runs by outcome",
	}, []string{"pipeline", "status"})
	ScheduledJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduled_jobs_total",
		Help:      "Total number of scheduled job executions by outcome",
	}, []string{"job", "status"})
)

// Histogram metrics
var (
	NormalizationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "normalization_duration_seconds",
		Help:      "Duration of normalization passes in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	PipelineDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Duration of pipeline runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	}, []string{"pipeline"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(RowsNormalizedTotal)
		registry.MustRegister(PartitionsNormalizedTotal)
		registry.MustRegister(DegeneratePartitionsTotal)
		registry.MustRegister(DatasetsLoadedTotal)
		registry.MustRegister(PredictionRowsWrittenTotal)
		registry.MustRegister(PipelineRunsTotal)
		registry.MustRegister(ScheduledJobsTotal)

		registry.MustRegister(NormalizationDuration)
		registry.MustRegister(PipelineDuration)

		// Register training metrics
		registry.MustRegister(TrainingRunsTotal)
		registry.MustRegister(TrainingDuration)
		registry.MustRegister(ModelMetric)
		registry.MustRegister(CrossValidationFolds)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordNormalization records one normalization pass.
func RecordNormalization(rows, partitions int, durationSeconds float64) {
	RowsNormalizedTotal.Add(float64(rows))
	PartitionsNormalizedTotal.Add(float64(partitions))
	NormalizationDuration.Observe(durationSeconds)
}

// RecordDegeneratePartitions records partitions mapped to zero for a feature.
func RecordDegeneratePartitions(feature string, count int) {
	DegeneratePartitionsTotal.WithLabelValues(feature).Add(float64(count))
}

// RecordDatasetLoad records a table load.
func RecordDatasetLoad(scheme string, cacheHit bool) {
	hit := "false"
	if cacheHit {
		hit = "true"
	}
	DatasetsLoadedTotal.WithLabelValues(scheme, hit).Inc()
}

// RecordPredictionsWritten records rows written to a prediction table.
func RecordPredictionsWritten(table string, rows int) {
	PredictionRowsWrittenTotal.WithLabelValues(table).Add(float64(rows))
}

// RecordPipelineRun records a pipeline run outcome and duration.
func RecordPipelineRun(pipeline, status string, durationSeconds float64) {
	PipelineRunsTotal.WithLabelValues(pipeline, status).Inc()
	PipelineDuration.WithLabelValues(pipeline).Observe(durationSeconds)
}

// RecordScheduledJob records a scheduled job execution.
func RecordScheduledJob(job, status string) {
	ScheduledJobsTotal.WithLabelValues(job, status).Inc()
}
