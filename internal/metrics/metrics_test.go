package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
	assert.Same(t, registry, InitRegistry())
}

func TestRecordNormalization(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(RowsNormalizedTotal)
	partitionsBefore := testutil.ToFloat64(PartitionsNormalizedTotal)

	RecordNormalization(30, 3, 0.01)

	assert.Equal(t, before+30, testutil.ToFloat64(RowsNormalizedTotal))
	assert.Equal(t, partitionsBefore+3, testutil.ToFloat64(PartitionsNormalizedTotal))
}

func TestRecordDegeneratePartitions(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(DegeneratePartitionsTotal.WithLabelValues("engineproblem"))

	RecordDegeneratePartitions("engineproblem", 2)

	assert.Equal(t, before+2, testutil.ToFloat64(DegeneratePartitionsTotal.WithLabelValues("engineproblem")))
}

func TestRecordDatasetLoad(t *testing.T) {
	InitRegistry()

	tests := []struct {
		name     string
		scheme   string
		cacheHit bool
		label    string
	}{
		{name: "s3 miss", scheme: "s3", cacheHit: false, label: "false"},
		{name: "file hit", scheme: "file", cacheHit: true, label: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := DatasetsLoadedTotal.WithLabelValues(tt.scheme, tt.label)
			before := testutil.ToFloat64(counter)
			RecordDatasetLoad(tt.scheme, tt.cacheHit)
			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestRecordPipelineRun(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordPipelineRun("constructor", "success", 12.5)
		RecordPipelineRun("driver", "failure", 0.2)
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(PipelineRunsTotal.WithLabelValues("driver", "failure")))
}

func TestUpdateModelMetric(t *testing.T) {
	InitRegistry()

	UpdateModelMetric("constructor", "areaUnderROC", 0.91)
	assert.Equal(t, 0.91, testutil.ToFloat64(ModelMetric.WithLabelValues("constructor", "areaUnderROC")))

	UpdateModelMetric("constructor", "areaUnderROC", 0.87)
	assert.Equal(t, 0.87, testutil.ToFloat64(ModelMetric.WithLabelValues("constructor", "areaUnderROC")))
}

func TestHandlerServesRegistry(t *testing.T) {
	InitRegistry()
	RecordTraining("logistic_regression", "success", 0.3)
	RecordPredictionsWritten("constructor_predictions", 5)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "pitwall_training_runs_total"))
	assert.True(t, strings.Contains(body, "pitwall_prediction_rows_written_total"))
}
