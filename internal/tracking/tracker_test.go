package tracking

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pitwall/internal/config"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	dir := t.TempDir()
	tr, err := OpenTracker(context.Background(), config.TrackingConfig{
		Driver:       "sqlite",
		DSN:          "file:" + filepath.Join(dir, "runs.db") + "?_pragma=busy_timeout(5000)",
		ArtifactRoot: filepath.Join(dir, "artifacts"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Driver("mysql"), "")
	assert.Error(t, err)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)

	run, err := tr.StartRun(ctx, "constructor-championship", "cv-logistic")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID())

	info, err := tr.GetRun(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, info.Status)
	assert.Equal(t, "constructor-championship", info.Experiment)
	assert.True(t, info.EndedAt.IsZero())

	require.NoError(t, run.LogParams(ctx, map[string]interface{}{"numFolds": 5, "regParam": 0.01}))
	require.NoError(t, run.LogParam(ctx, "regParam", 0.5))

	params, err := tr.Params(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"numFolds": "5", "regParam": "0.5"}, params)

	require.NoError(t, run.End(ctx, StatusFinished))
	info, err = tr.GetRun(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, info.Status)
	assert.False(t, info.EndedAt.IsZero())

	assert.ErrorIs(t, run.LogMetric(ctx, "accuracy", 1), ErrRunEnded)
	assert.NoError(t, run.End(ctx, StatusFailed))
	assert.Equal(t, StatusFinished, run.Info().Status)
}

func TestMetricsKeepHistoryAndNaN(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)
	run, err := tr.StartRun(ctx, "driver-results", "rf")
	require.NoError(t, err)

	require.NoError(t, run.LogMetrics(ctx, map[string]float64{"mse": 20.5, "r2": 0.4}))
	require.NoError(t, run.LogMetric(ctx, "mse", 18.25))
	require.NoError(t, run.LogMetric(ctx, "areaUnderROC", math.NaN()))

	got, err := tr.Metrics(ctx, run.ID())
	require.NoError(t, err)
	assert.Equal(t, 18.25, got["mse"])
	assert.Equal(t, 0.4, got["r2"])
	assert.True(t, math.IsNaN(got["areaUnderROC"]))

	history, err := tr.MetricHistory(ctx, run.ID(), "mse")
	require.NoError(t, err)
	assert.Equal(t, []float64{20.5, 18.25}, history)
}

func TestLogArtifact(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)
	run, err := tr.StartRun(ctx, "driver-results", "rf")
	require.NoError(t, err)

	path, err := run.LogArtifact(ctx, "feature-importance.csv", func(w io.Writer) error {
		_, err := io.WriteString(w, "feature,importance\ngrid,0.7\n")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tr.ArtifactRoot(), run.ID(), "feature-importance.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "feature,importance\ngrid,0.7\n", string(data))

	arts, err := tr.Artifacts(ctx, run.ID())
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "feature-importance.csv", arts[0].Name)
	assert.Equal(t, int64(len(data)), arts[0].Size)
}

func TestLogArtifactFailures(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)
	run, err := tr.StartRun(ctx, "x", "y")
	require.NoError(t, err)

	noop := func(io.Writer) error { return nil }
	for _, name := range []string{"", "../escape.csv", "/abs.csv", "a//b", `a\b`} {
		_, err := run.LogArtifact(ctx, name, noop)
		assert.ErrorIs(t, err, ErrInvalidArtifactName, name)
	}

	_, err = run.LogArtifact(ctx, "broken.csv", func(io.Writer) error { return fmt.Errorf("encode failed") })
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(tr.ArtifactRoot(), run.ID(), "broken.csv"))
	assert.True(t, os.IsNotExist(statErr))

	arts, err := tr.Artifacts(ctx, run.ID())
	require.NoError(t, err)
	assert.Empty(t, arts)
}

func TestLogArtifactFailedRewriteKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)
	run, err := tr.StartRun(ctx, "driver-results", "rf")
	require.NoError(t, err)

	path, err := run.LogArtifact(ctx, "residuals.csv", func(w io.Writer) error {
		_, err := io.WriteString(w, "label,prediction\n18,17\n")
		return err
	})
	require.NoError(t, err)

	_, err = run.LogArtifact(ctx, "residuals.csv", func(w io.Writer) error {
		_, _ = io.WriteString(w, "label,pre")
		return fmt.Errorf("encode failed")
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "label,prediction\n18,17\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files are left behind")
	assert.Equal(t, "residuals.csv", entries[0].Name())
}

func TestGetRunNotFound(t *testing.T) {
	_, err := newTestTracker(t).GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	tr.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}

	first, err := tr.StartRun(ctx, "exp", "first")
	require.NoError(t, err)
	second, err := tr.StartRun(ctx, "exp", "second")
	require.NoError(t, err)
	_, err = tr.StartRun(ctx, "other", "third")
	require.NoError(t, err)

	runs, err := tr.ListRuns(ctx, "exp", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID(), runs[0].ID)
	assert.Equal(t, first.ID(), runs[1].ID)
}

func TestPing(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.Ping(context.Background()))
}
