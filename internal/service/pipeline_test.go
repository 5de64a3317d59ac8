package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pitwall/internal/config"
	"github.com/yourusername/pitwall/internal/feature"
	"github.com/yourusername/pitwall/internal/tracking"
)

// MockPredictionSink mocks the prediction table writer
type MockPredictionSink struct {
	mock.Mock
}

func (m *MockPredictionSink) Overwrite(ctx context.Context, table string, f *feature.Frame) error {
	args := m.Called(ctx, table, f)
	return args.Error(0)
}

// written returns the frame passed to the first Overwrite call
func (m *MockPredictionSink) written(t *testing.T) *feature.Frame {
	t.Helper()
	require.NotEmpty(t, m.Calls)
	f, ok := m.Calls[0].Arguments.Get(2).(*feature.Frame)
	require.True(t, ok)
	return f
}

// memoryLoader serves frames keyed by URI
type memoryLoader map[string]*feature.Frame

func (l memoryLoader) Load(_ context.Context, uri string) (*feature.Frame, error) {
	f, ok := l[uri]
	if !ok {
		return nil, fmt.Errorf("no dataset at %s", uri)
	}
	return f, nil
}

func newTestTracker(t *testing.T) *tracking.Tracker {
	t.Helper()
	dir := t.TempDir()
	tr, err := tracking.OpenTracker(context.Background(), config.TrackingConfig{
		Driver:       "sqlite",
		DSN:          "file:" + filepath.Join(dir, "runs.db") + "?_pragma=busy_timeout(5000)",
		ArtifactRoot: filepath.Join(dir, "artifacts"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestDependenciesValidate(t *testing.T) {
	tr := newTestTracker(t)
	full := Dependencies{Loader: memoryLoader{}, Sink: &MockPredictionSink{}, Tracker: tr}
	require.NoError(t, full.validate())

	for name, deps := range map[string]Dependencies{
		"loader":  {Sink: full.Sink, Tracker: tr},
		"sink":    {Loader: full.Loader, Tracker: tr},
		"tracker": {Loader: full.Loader, Sink: full.Sink},
	} {
		require.Error(t, deps.validate(), name)
	}

	_, err := NewConstructorChampionshipPipeline(Dependencies{}, config.ConstructorConfig{}, config.NormalizationConfig{})
	require.Error(t, err)
	_, err = NewDriverResultsPipeline(Dependencies{}, config.DriverConfig{})
	require.Error(t, err)
}
