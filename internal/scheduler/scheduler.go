// Package scheduler runs training pipelines on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pitwall/internal/metrics"
	"github.com/yourusername/pitwall/internal/service"
)

const defaultJobTimeout = time.Hour

// Scheduler manages scheduled retraining jobs
type Scheduler struct {
	cron       *cron.Cron
	logger     *logrus.Entry
	mu         sync.RWMutex
	isRunning  bool
	jobIDs     map[string]cron.EntryID
	jobTimeout time.Duration

	// jobCtx is the parent of every job context; cancelJobs aborts running jobs
	jobCtx     context.Context
	cancelJobs context.CancelFunc
}

// NewScheduler creates a new scheduler. A zero jobTimeout means one hour.
func NewScheduler(logger *logrus.Logger, jobTimeout time.Duration) *Scheduler {
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		logger:     logger.WithField("component", "scheduler"),
		jobIDs:     make(map[string]cron.EntryID),
		jobTimeout: jobTimeout,
	}
}

// SchedulePipeline runs p on the standard five field cron expression. Overlapping
// runs of the same pipeline are skipped.
func (s *Scheduler) SchedulePipeline(cronExpression string, p service.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if _, ok := s.jobIDs[p.Name()]; ok {
		return fmt.Errorf("pipeline %s is already scheduled", p.Name())
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() { s.runJob(p) })
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs[p.Name()] = entryID
	s.logger.WithFields(logrus.Fields{
		"pipeline": p.Name(),
		"cron":     cronExpression,
	}).Info("Scheduled pipeline")

	return nil
}

// runJob executes one scheduled run under the job timeout
func (s *Scheduler) runJob(p service.Pipeline) {
	s.mu.RLock()
	parent := s.jobCtx
	s.mu.RUnlock()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, s.jobTimeout)
	defer cancel()

	log := s.logger.WithField("pipeline", p.Name())
	log.Info("Starting scheduled pipeline run")

	report, err := p.Run(ctx)
	if err != nil {
		metrics.RecordScheduledJob(p.Name(), "failure")
		log.WithError(err).Error("Scheduled pipeline run failed")
		return
	}
	metrics.RecordScheduledJob(p.Name(), "success")
	log.WithFields(logrus.Fields{
		"run_id":   report.RunID,
		"rows":     report.Rows,
		"duration": report.Duration.String(),
	}).Info("Scheduled pipeline run completed")
}

// Start starts the scheduler. Jobs run under contexts derived from ctx, so
// cancelling ctx aborts running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.jobCtx, s.cancelJobs = context.WithCancel(ctx)
	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
// Jobs still running at that point are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	done := s.cron.Stop().Done()
	s.isRunning = false
	cancelJobs := s.cancelJobs
	s.mu.Unlock()

	defer cancelJobs()
	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Cancelling running jobs")
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			nextTime := entry.Next
			if nextRun.IsZero() || nextTime.Before(nextRun) {
				nextRun = nextTime
			}
		}
	}

	return nextRun
}

// NextRuns returns the next run time of every scheduled pipeline
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]time.Time, len(s.jobIDs))
	for name, jobID := range s.jobIDs {
		if entry := s.cron.Entry(jobID); entry.Valid() {
			out[name] = entry.Next
		}
	}
	return out
}

// RemovePipeline unschedules a pipeline
func (s *Scheduler) RemovePipeline(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot remove job while scheduler is running")
	}
	jobID, ok := s.jobIDs[name]
	if !ok {
		return fmt.Errorf("pipeline %s is not scheduled", name)
	}

	s.cron.Remove(jobID)
	delete(s.jobIDs, name)
	s.logger.WithField("pipeline", name).Info("Removed job")

	return nil
}
