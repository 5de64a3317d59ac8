// Package main provides the pitwall command line interface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/pitwall/internal/config"
	"github.com/yourusername/pitwall/internal/database"
	"github.com/yourusername/pitwall/internal/datasource"
	"github.com/yourusername/pitwall/internal/logger"
	"github.com/yourusername/pitwall/internal/repository"
	"github.com/yourusername/pitwall/internal/tracking"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	logLevel   string
	cfg        *config.Config
	appLog     *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "pitwall",
	Short:         "Feature normalization and model training for F1 race data",
	Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadWithDefaults(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		level := cfg.App.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		if level == "" {
			level = "info"
		}
		appLog = logger.NewLoggerForEnvironment(level, cfg.App.Environment)
		appLog.SetOutput(os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(newNormalizeCmd())
	rootCmd.AddCommand(newTrainCmd())
	rootCmd.AddCommand(newPredictionsCmd())
	rootCmd.AddCommand(newRunsCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// validatedConfig applies the secrets overlay and validates the full
// configuration, as required by commands that touch the database
func validatedConfig(ctx context.Context) (*config.Config, error) {
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLoader(ctx context.Context) (*datasource.Loader, error) {
	return datasource.NewFactory(cfg.Storage, appLog).NewLoader(ctx)
}

func openRepositories(ctx context.Context) (*database.DB, *repository.Repositories, error) {
	db, err := database.Initialize(ctx, cfg, appLog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	repos, err := repository.NewRepositories(db, appLog)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repos, nil
}

func openTracker(ctx context.Context) (*tracking.Tracker, error) {
	tr, err := tracking.OpenTracker(ctx, cfg.Tracking, appLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracker: %w", err)
	}
	return tr, nil
}
