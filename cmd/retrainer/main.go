// Package main provides the entry point for the retraining daemon.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/pitwall/internal/config"
	"github.com/yourusername/pitwall/internal/database"
	"github.com/yourusername/pitwall/internal/datasource"
	"github.com/yourusername/pitwall/internal/health"
	"github.com/yourusername/pitwall/internal/logger"
	"github.com/yourusername/pitwall/internal/metrics"
	"github.com/yourusername/pitwall/internal/repository"
	"github.com/yourusername/pitwall/internal/scheduler"
	"github.com/yourusername/pitwall/internal/service"
	"github.com/yourusername/pitwall/internal/tracking"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// shutdownTimeout bounds how long cancelled jobs get to record their failure
const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	flag.Parse()

	// ctx is cancelled on SIGINT/SIGTERM, which also aborts running jobs
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		log.Fatalf("Failed to load secrets: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if !cfg.Schedule.Enabled {
		log.Fatalf("Scheduling is disabled; set schedule.enabled to run the retrainer")
	}

	// Set up logging
	appLog := logger.NewLoggerForEnvironment(cfg.App.LogLevel, cfg.App.Environment)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"version":     Version,
	}).Info("Pitwall retrainer starting")

	metrics.InitRegistry()

	db, err := database.Initialize(ctx, cfg, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	repos, err := repository.NewRepositories(db, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize repositories")
	}

	tracker, err := tracking.OpenTracker(ctx, cfg.Tracking, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to open tracker")
	}
	defer tracker.Close()

	loader, err := datasource.NewFactory(cfg.Storage, appLog).NewLoader(ctx)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to create dataset loader")
	}

	deps := service.Dependencies{
		Loader:  loader,
		Sink:    repos.PredictionTables,
		Tracker: tracker,
		Logger:  appLog,
	}
	constructor, err := service.NewConstructorChampionshipPipeline(deps, cfg.Constructor, cfg.Normalization)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to create constructor pipeline")
	}
	driver, err := service.NewDriverResultsPipeline(deps, cfg.Driver)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to create driver pipeline")
	}

	sched := scheduler.NewScheduler(appLog, cfg.Schedule.JobTimeout())
	for _, job := range []struct {
		cron     string
		pipeline service.Pipeline
	}{
		{cfg.Schedule.ConstructorCron, constructor},
		{cfg.Schedule.DriverCron, driver},
	} {
		if job.cron == "" {
			appLog.WithField("pipeline", job.pipeline.Name()).Info("No schedule configured; skipping")
			continue
		}
		if err := sched.SchedulePipeline(job.cron, job.pipeline); err != nil {
			appLog.WithError(err).Fatal("Failed to schedule pipeline")
		}
	}
	if err := sched.Start(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to start scheduler")
	}

	var metricsPath string
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	healthServer := health.NewServer(health.Config{
		ServiceName: "pitwall-retrainer",
		Version:     Version,
		Commit:      GitCommit,
		Port:        strconv.Itoa(cfg.Metrics.Port),
		MetricsPath: metricsPath,
		Logger:      appLog,
		Checks: map[string]health.Pinger{
			"database": db,
			"tracker":  tracker,
		},
		Schedule: sched,
	})
	if err := healthServer.Start(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to start health server")
	}
	healthServer.SetReady(true)

	appLog.WithField("next_run", sched.GetNextRun().Format(time.RFC3339)).Info("Retrainer is running")

	// Wait for shutdown signal
	<-ctx.Done()
	stop()
	appLog.Info("Shutdown signal received")

	healthServer.SetReady(false)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := sched.Stop(stopCtx); err != nil {
		appLog.WithError(err).Error("Scheduler did not stop cleanly")
	}

	appLog.Info("Pitwall retrainer shut down")
}
