package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourusername/pitwall/internal/service"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run a training pipeline",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "constructor",
		Short: "Cross-validate the constructor championship classifier and write its predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, func(deps service.Dependencies) (service.Pipeline, error) {
				return service.NewConstructorChampionshipPipeline(deps, cfg.Constructor, cfg.Normalization)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "driver",
		Short: "Fit the driver race points regressor and write its held-out predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, func(deps service.Dependencies) (service.Pipeline, error) {
				return service.NewDriverResultsPipeline(deps, cfg.Driver)
			})
		},
	})
	return cmd
}

type pipelineBuilder func(deps service.Dependencies) (service.Pipeline, error)

func runPipeline(cmd *cobra.Command, build pipelineBuilder) error {
	ctx := cmd.Context()
	if _, err := validatedConfig(ctx); err != nil {
		return err
	}

	deps, cleanup, err := pipelineDependencies(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := build(deps)
	if err != nil {
		return err
	}
	report, err := p.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pipeline:  %s\n", report.Pipeline)
	fmt.Fprintf(out, "Run:       %s\n", report.RunID)
	fmt.Fprintf(out, "Table:     %s (%d rows)\n", report.Table, report.Rows)
	fmt.Fprintf(out, "Duration:  %s\n", report.Duration)
	fmt.Fprintln(out, "Metrics:")
	for _, k := range sortedKeys(report.Metrics) {
		fmt.Fprintf(out, "  %-22s %.6f\n", k, report.Metrics[k])
	}
	return nil
}

// pipelineDependencies wires the loader, prediction tables and tracker; the
// returned cleanup releases them
func pipelineDependencies(ctx context.Context) (service.Dependencies, func(), error) {
	loader, err := newLoader(ctx)
	if err != nil {
		return service.Dependencies{}, nil, err
	}
	db, repos, err := openRepositories(ctx)
	if err != nil {
		return service.Dependencies{}, nil, err
	}
	tracker, err := openTracker(ctx)
	if err != nil {
		db.Close()
		return service.Dependencies{}, nil, err
	}

	cleanup := func() {
		if err := tracker.Close(); err != nil {
			appLog.WithError(err).Warn("Failed to close tracker")
		}
		db.Close()
	}
	return service.Dependencies{
		Loader:  loader,
		Sink:    repos.PredictionTables,
		Tracker: tracker,
		Logger:  appLog,
	}, cleanup, nil
}
