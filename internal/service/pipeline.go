// Package service composes loading, feature preparation, model fitting,
// tracking and prediction output into the training pipelines.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pitwall/internal/datasource"
	"github.com/yourusername/pitwall/internal/feature"
	"github.com/yourusername/pitwall/internal/logger"
	"github.com/yourusername/pitwall/internal/metrics"
	"github.com/yourusername/pitwall/internal/repository"
	"github.com/yourusername/pitwall/internal/tracking"
)

// ErrEmptySplit indicates a train or test window without rows
var ErrEmptySplit = errors.New("empty train/test split")

// Pipeline is a runnable training pipeline
type Pipeline interface {
	Name() string
	Run(ctx context.Context) (*PipelineReport, error)
}

// RunTracker opens tracked runs
type RunTracker interface {
	StartRun(ctx context.Context, experiment, runName string) (*tracking.Run, error)
}

// PipelineReport represents the result of a pipeline run
type PipelineReport struct {
	Pipeline    string
	RunID       string
	Rows        int
	Table       string
	Metrics     map[string]float64
	Artifacts   []string
	Duration    time.Duration
	CompletedAt time.Time
}

// Dependencies are the collaborators shared by every pipeline
type Dependencies struct {
	Loader  datasource.FrameLoader
	Sink    repository.PredictionSink
	Tracker RunTracker
	Logger  *logrus.Logger
}

func (d Dependencies) validate() error {
	switch {
	case d.Loader == nil:
		return errors.New("pipeline requires a frame loader")
	case d.Sink == nil:
		return errors.New("pipeline requires a prediction sink")
	case d.Tracker == nil:
		return errors.New("pipeline requires a run tracker")
	}
	return nil
}

func (d Dependencies) logger() *logrus.Logger {
	if d.Logger == nil {
		return logger.Discard()
	}
	return d.Logger
}

const endRunTimeout = 5 * time.Second

// runState carries a run through its stages and closes it exactly once
type runState struct {
	name   string
	run    *tracking.Run
	log    *logger.PipelineLogger
	start  time.Time
	report *PipelineReport
}

func startRun(ctx context.Context, tracker RunTracker, experiment, name string, log *logger.PipelineLogger) (*runState, error) {
	runName := fmt.Sprintf("%s-%s", name, time.Now().UTC().Format("20060102T150405"))
	run, err := tracker.StartRun(ctx, experiment, runName)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	log.WithField("run_id", run.ID()).Info("Pipeline started")
	return &runState{
		name:  name,
		run:   run,
		log:   log,
		start: time.Now(),
		report: &PipelineReport{
			Pipeline: name,
			RunID:    run.ID(),
			Metrics:  make(map[string]float64),
		},
	}, nil
}

// fail ends the run as failed and returns err annotated with the stage
func (s *runState) fail(ctx context.Context, stage string, err error) error {
	s.log.LogPipelineError(stage, err)
	// ctx may already be done when the stage failed on its deadline
	endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), endRunTimeout)
	defer cancel()
	if endErr := s.run.End(endCtx, tracking.StatusFailed); endErr != nil {
		s.log.WithError(endErr).Warn("Failed to mark run as failed")
	}
	metrics.RecordPipelineRun(s.name, "failure", time.Since(s.start).Seconds())
	return fmt.Errorf("%s pipeline: %s: %w", s.name, stage, err)
}

func (s *runState) finish(ctx context.Context) (*PipelineReport, error) {
	if err := s.run.End(ctx, tracking.StatusFinished); err != nil {
		return nil, s.fail(ctx, "end run", err)
	}
	s.report.Duration = time.Since(s.start)
	s.report.CompletedAt = time.Now().UTC()
	metrics.RecordPipelineRun(s.name, "success", s.report.Duration.Seconds())
	s.log.WithFields(logrus.Fields{
		"run_id":   s.report.RunID,
		"rows":     s.report.Rows,
		"table":    s.report.Table,
		"duration": s.report.Duration.String(),
	}).Info("Pipeline completed")
	return s.report, nil
}

func (s *runState) logMetrics(ctx context.Context, values map[string]float64) error {
	for k, v := range values {
		s.report.Metrics[k] = v
		metrics.UpdateModelMetric(s.name, k, v)
	}
	return s.run.LogMetrics(ctx, values)
}

func (s *runState) logFrame(ctx context.Context, name string, f *feature.Frame) error {
	path, err := s.run.LogArtifact(ctx, name, func(w io.Writer) error {
		return datasource.EncodeCSV(w, f)
	})
	if err != nil {
		return err
	}
	s.report.Artifacts = append(s.report.Artifacts, path)
	return nil
}

func (s *runState) logJSON(ctx context.Context, name string, v interface{}) error {
	path, err := s.run.LogArtifact(ctx, name, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
	if err != nil {
		return err
	}
	s.report.Artifacts = append(s.report.Artifacts, path)
	return nil
}

func (s *runState) load(ctx context.Context, loader datasource.FrameLoader, name, uri string) (*feature.Frame, error) {
	f, err := loader.Load(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	s.log.LogDatasetLoaded(name, uri, f.Nrow(), f.Ncol())
	return f, nil
}
