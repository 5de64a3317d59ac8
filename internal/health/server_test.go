package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pitwall/internal/metrics"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixedSchedule map[string]time.Time

func (s fixedSchedule) NextRuns() map[string]time.Time { return s }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndLive(t *testing.T) {
	s := NewServer(Config{ServiceName: "retrainer", Version: "1.2.0", Port: "0"})
	h := s.Handler()

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.0", resp.Version)
	assert.NotEmpty(t, resp.Timestamp)

	rec = get(t, h, "/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestReady(t *testing.T) {
	healthy := pingFunc(func(context.Context) error { return nil })
	broken := pingFunc(func(context.Context) error { return errors.New("connection refused") })
	next := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

	s := NewServer(Config{
		ServiceName: "retrainer",
		Checks:      map[string]Pinger{"database": healthy, "tracker": healthy},
		Schedule:    fixedSchedule{"constructor": next},
	})

	rec := get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.SetReady(true)
	rec = get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp ReadyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]string{"service": "ok", "database": "ok", "tracker": "ok"}, resp.Checks)
	assert.Equal(t, "2026-10-19T06:00:00Z", resp.NextRuns["constructor"])

	s.checks["database"] = broken
	rec = get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp = ReadyResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Contains(t, resp.Checks["database"], "connection refused")
}

func TestMetricsRoute(t *testing.T) {
	metrics.InitRegistry()
	metrics.RecordScheduledJob("driver", "success")

	s := NewServer(Config{ServiceName: "retrainer", MetricsPath: "/metrics"})
	rec := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pitwall_")

	without := NewServer(Config{ServiceName: "retrainer"})
	assert.Equal(t, http.StatusNotFound, get(t, without.Handler(), "/metrics").Code)
}

func TestShutdownWithoutStart(t *testing.T) {
	assert.NoError(t, NewServer(Config{}).Shutdown())
}
