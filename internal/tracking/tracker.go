package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pitwall/internal/config"
	"github.com/yourusername/pitwall/internal/logger"
)

// Status is the lifecycle state of a run
type Status string

const (
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
	StatusFailed   Status = "FAILED"
)

var (
	// ErrRunNotFound indicates an unknown run ID
	ErrRunNotFound = errors.New("run not found")

	// ErrRunEnded indicates logging to a run that has already ended
	ErrRunEnded = errors.New("run has ended")

	// ErrInvalidArtifactName indicates an artifact name that is empty or leaves the run directory
	ErrInvalidArtifactName = errors.New("invalid artifact name")
)

// RunInfo is the stored metadata of a run
type RunInfo struct {
	ID         string
	Experiment string
	Name       string
	Status     Status
	StartedAt  time.Time
	EndedAt    time.Time // zero while running
}

// Artifact is a file stored for a run
type Artifact struct {
	Name      string
	Path      string
	Size      int64
	CreatedAt time.Time
}

// Tracker stores runs in a SQL database and artifacts under a root directory
type Tracker struct {
	db    *sql.DB
	root  string
	audit *logger.AuditLogger
	now   func() time.Time
}

// NewTracker wraps an opened store. The artifact root is created if needed.
func NewTracker(db *sql.DB, artifactRoot string, log *logrus.Logger) (*Tracker, error) {
	if log == nil {
		log = logger.Discard()
	}
	if artifactRoot == "" {
		artifactRoot = "./mlruns"
	}
	if err := os.MkdirAll(artifactRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &Tracker{
		db:    db,
		root:  artifactRoot,
		audit: logger.NewAuditLogger(log),
		now:   time.Now,
	}, nil
}

// OpenTracker opens the configured store and artifact root
func OpenTracker(ctx context.Context, cfg config.TrackingConfig, log *logrus.Logger) (*Tracker, error) {
	db, err := Open(ctx, Driver(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, err
	}
	t, err := NewTracker(db, cfg.ArtifactRoot, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

// Close closes the underlying store
func (t *Tracker) Close() error {
	return t.db.Close()
}

// Ping verifies the store is reachable
func (t *Tracker) Ping(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

// ArtifactRoot returns the directory holding run artifacts
func (t *Tracker) ArtifactRoot() string {
	return t.root
}

// StartRun creates a run in the RUNNING state
func (t *Tracker) StartRun(ctx context.Context, experiment, runName string) (*Run, error) {
	info := RunInfo{
		ID:         uuid.NewString(),
		Experiment: experiment,
		Name:       runName,
		Status:     StatusRunning,
		StartedAt:  t.now().UTC(),
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO runs (id, experiment, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		info.ID, info.Experiment, info.Name, string(info.Status), info.StartedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	t.audit.LogRunStarted(info.ID, experiment, runName)
	return &Run{tracker: t, info: info, steps: make(map[string]int)}, nil
}

// GetRun returns the stored metadata of a run
func (t *Tracker) GetRun(ctx context.Context, runID string) (*RunInfo, error) {
	row := t.db.QueryRowContext(ctx,
		`SELECT id, experiment, name, status, started_at, ended_at FROM runs WHERE id = $1`, runID)
	info, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return info, nil
}

// ListRuns returns the most recent runs of an experiment, newest first
func (t *Tracker) ListRuns(ctx context.Context, experiment string, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, experiment, name, status, started_at, ended_at FROM runs
		 WHERE experiment = $1 ORDER BY started_at DESC LIMIT $2`, experiment, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		info, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, *info)
	}
	return out, rows.Err()
}

// Params returns the logged parameters of a run
func (t *Tracker) Params(ctx context.Context, runID string) (map[string]string, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT key, value FROM run_params WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("get params: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("get params: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Metrics returns the latest value of every metric logged for a run
func (t *Tracker) Metrics(ctx context.Context, runID string) (map[string]float64, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT key, value FROM run_metrics WHERE run_id = $1 ORDER BY key, step`, runID)
	if err != nil {
		return nil, fmt.Errorf("get metrics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var k string
		var v sql.NullFloat64
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("get metrics: %w", err)
		}
		out[k] = fromNullable(v)
	}
	return out, rows.Err()
}

// MetricHistory returns every logged value of one metric in step order
func (t *Tracker) MetricHistory(ctx context.Context, runID, key string) ([]float64, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT value FROM run_metrics WHERE run_id = $1 AND key = $2 ORDER BY step`, runID, key)
	if err != nil {
		return nil, fmt.Errorf("get metric history: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v sql.NullFloat64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("get metric history: %w", err)
		}
		out = append(out, fromNullable(v))
	}
	return out, rows.Err()
}

// Artifacts returns the artifacts stored for a run, by name
func (t *Tracker) Artifacts(ctx context.Context, runID string) ([]Artifact, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT name, path, size, created_at FROM run_artifacts WHERE run_id = $1 ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("get artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		var created int64
		if err := rows.Scan(&a.Name, &a.Path, &a.Size, &created); err != nil {
			return nil, fmt.Errorf("get artifacts: %w", err)
		}
		a.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// Run is an open run. Its methods are safe for concurrent use.
type Run struct {
	tracker *Tracker
	mu      sync.Mutex
	info    RunInfo
	steps   map[string]int
}

// ID returns the run ID
func (r *Run) ID() string { return r.info.ID }

// Info returns a snapshot of the run metadata
func (r *Run) Info() RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

// LogParam records a parameter; values are stored in their fmt.Sprint form
func (r *Run) LogParam(ctx context.Context, key string, value interface{}) error {
	return r.LogParams(ctx, map[string]interface{}{key: value})
}

// LogParams records several parameters in one transaction
func (r *Run) LogParams(ctx context.Context, params map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.info.Status != StatusRunning {
		return ErrRunEnded
	}

	tx, err := r.tracker.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("log params: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, k := range sortedKeys(params) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_params (run_id, key, value) VALUES ($1, $2, $3)
			 ON CONFLICT (run_id, key) DO UPDATE SET value = EXCLUDED.value`,
			r.info.ID, k, fmt.Sprint(params[k]))
		if err != nil {
			return fmt.Errorf("log param %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// LogMetric appends a value to a metric; each call advances the metric's step
func (r *Run) LogMetric(ctx context.Context, key string, value float64) error {
	return r.LogMetrics(ctx, map[string]float64{key: value})
}

// LogMetrics appends several metric values in one transaction
func (r *Run) LogMetrics(ctx context.Context, values map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.info.Status != StatusRunning {
		return ErrRunEnded
	}

	tx, err := r.tracker.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("log metrics: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := r.tracker.now().UnixMilli()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_metrics (run_id, key, step, value, logged_at) VALUES ($1, $2, $3, $4, $5)`,
			r.info.ID, k, r.steps[k], toNullable(values[k]), now)
		if err != nil {
			return fmt.Errorf("log metric %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("log metrics: %w", err)
	}
	for _, k := range keys {
		r.steps[k]++
	}
	return nil
}

// LogArtifact stores the output of write as <artifact_root>/<run_id>/<name>.
// Logging the same name twice replaces the artifact.
func (r *Run) LogArtifact(ctx context.Context, name string, write func(io.Writer) error) (string, error) {
	if err := checkArtifactName(name); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.info.Status != StatusRunning {
		return "", ErrRunEnded
	}

	path := filepath.Join(r.tracker.root, r.info.ID, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	tmp := f.Name()
	cw := &countingWriter{w: f}
	if err := write(cw); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write artifact %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close artifact %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("move artifact %s: %w", name, err)
	}

	_, err = r.tracker.db.ExecContext(ctx,
		`INSERT INTO run_artifacts (run_id, name, path, size, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id, name) DO UPDATE SET path = EXCLUDED.path, size = EXCLUDED.size, created_at = EXCLUDED.created_at`,
		r.info.ID, name, path, cw.n, r.tracker.now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("record artifact %s: %w", name, err)
	}
	r.tracker.audit.LogArtifactWritten(r.info.ID, name, path, cw.n)
	return path, nil
}

// End closes the run with a final status. Ending an ended run is a no-op.
func (r *Run) End(ctx context.Context, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.info.Status != StatusRunning {
		return nil
	}
	ended := r.tracker.now().UTC()
	_, err := r.tracker.db.ExecContext(ctx,
		`UPDATE runs SET status = $1, ended_at = $2 WHERE id = $3`,
		string(status), ended.UnixMilli(), r.info.ID)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	r.info.Status = status
	r.info.EndedAt = ended
	r.tracker.audit.LogRunFinished(r.info.ID, string(status), ended.Sub(r.info.StartedAt))
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*RunInfo, error) {
	var info RunInfo
	var status string
	var started int64
	var ended sql.NullInt64
	if err := s.Scan(&info.ID, &info.Experiment, &info.Name, &status, &started, &ended); err != nil {
		return nil, err
	}
	info.Status = Status(status)
	info.StartedAt = time.UnixMilli(started).UTC()
	if ended.Valid {
		info.EndedAt = time.UnixMilli(ended.Int64).UTC()
	}
	return &info, nil
}

func checkArtifactName(name string) error {
	if name == "" || filepath.IsAbs(name) || strings.Contains(name, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidArtifactName, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidArtifactName, name)
		}
	}
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toNullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
