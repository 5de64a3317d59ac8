package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pitwall/internal/logger"
	"github.com/yourusername/pitwall/internal/service"
)

type stubPipeline struct {
	name     string
	err      error
	runs     int
	deadline bool
}

func (p *stubPipeline) Name() string { return p.name }

func (p *stubPipeline) Run(ctx context.Context) (*service.PipelineReport, error) {
	p.runs++
	_, p.deadline = ctx.Deadline()
	if p.err != nil {
		return nil, p.err
	}
	return &service.PipelineReport{Pipeline: p.name, RunID: "run-1", Rows: 3}, nil
}

func TestScheduleAndStart(t *testing.T) {
	s := NewScheduler(logger.Discard(), time.Minute)
	assert.Error(t, s.Start(context.Background()), "no jobs")

	require.NoError(t, s.SchedulePipeline("0 6 * * 1", &stubPipeline{name: "constructor"}))
	require.NoError(t, s.SchedulePipeline("30 6 * * 1", &stubPipeline{name: "driver"}))
	assert.Error(t, s.SchedulePipeline("0 7 * * 1", &stubPipeline{name: "driver"}))
	assert.Error(t, s.SchedulePipeline("not a cron", &stubPipeline{name: "other"}))

	assert.True(t, s.GetNextRun().IsZero())
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(context.Background()))
	assert.Error(t, s.SchedulePipeline("0 8 * * 1", &stubPipeline{name: "late"}))
	assert.Error(t, s.RemovePipeline("driver"))

	next := s.GetNextRun()
	require.False(t, next.IsZero())
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 6, next.Hour())
	assert.Equal(t, 0, next.Minute())

	runs := s.NextRuns()
	require.Len(t, runs, 2)
	assert.Equal(t, 30, runs["driver"].Minute())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop(ctx))
}

func TestRemovePipeline(t *testing.T) {
	s := NewScheduler(logger.Discard(), 0)
	assert.Equal(t, defaultJobTimeout, s.jobTimeout)

	require.NoError(t, s.SchedulePipeline("@daily", &stubPipeline{name: "driver"}))
	require.NoError(t, s.RemovePipeline("driver"))
	assert.Error(t, s.RemovePipeline("driver"))
	assert.Error(t, s.Start(context.Background()))
}

// blockingPipeline runs until its context is done
type blockingPipeline struct {
	started chan struct{}
	stopped chan error
}

func newBlockingPipeline() *blockingPipeline {
	return &blockingPipeline{started: make(chan struct{}), stopped: make(chan error, 1)}
}

func (p *blockingPipeline) Name() string { return "blocking" }

func (p *blockingPipeline) Run(ctx context.Context) (*service.PipelineReport, error) {
	close(p.started)
	<-ctx.Done()
	p.stopped <- ctx.Err()
	return nil, ctx.Err()
}

func waitStopped(t *testing.T, p *blockingPipeline) error {
	t.Helper()
	select {
	case err := <-p.stopped:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("job was not cancelled")
		return nil
	}
}

func TestCancellingStartContextAbortsJobs(t *testing.T) {
	s := NewScheduler(logger.Discard(), time.Hour)
	require.NoError(t, s.SchedulePipeline("@yearly", &stubPipeline{name: "driver"}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	p := newBlockingPipeline()
	go s.runJob(p)
	<-p.started

	cancel()
	assert.ErrorIs(t, waitStopped(t, p), context.Canceled)
	require.NoError(t, s.Stop(context.Background()))
}

func TestStopCancelsRemainingJobs(t *testing.T) {
	s := NewScheduler(logger.Discard(), time.Hour)
	require.NoError(t, s.SchedulePipeline("@yearly", &stubPipeline{name: "driver"}))
	require.NoError(t, s.Start(context.Background()))

	p := newBlockingPipeline()
	go s.runJob(p)
	<-p.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.ErrorIs(t, waitStopped(t, p), context.Canceled)
}

func TestRunJob(t *testing.T) {
	s := NewScheduler(logger.Discard(), time.Minute)

	ok := &stubPipeline{name: "constructor"}
	s.runJob(ok)
	assert.Equal(t, 1, ok.runs)
	assert.True(t, ok.deadline)

	failing := &stubPipeline{name: "driver", err: errors.New("load failed")}
	s.runJob(failing)
	assert.Equal(t, 1, failing.runs)
}
