package main

import (
	"fmt"
	"math"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect tracked training runs",
	}

	var (
		experiment string
		limit      int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent runs of an experiment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tracker, err := openTracker(ctx)
			if err != nil {
				return err
			}
			defer tracker.Close()

			runs, err := tracker.ListRuns(ctx, experiment, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSTARTED\tDURATION")
			for _, r := range runs {
				duration := "-"
				if !r.EndedAt.IsZero() {
					duration = r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Status, r.StartedAt.Format(time.RFC3339), duration)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVarP(&experiment, "experiment", "e", "", "Experiment name")
	list.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	list.MarkFlagRequired("experiment")

	show := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show the parameters, latest metrics and artifacts of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tracker, err := openTracker(ctx)
			if err != nil {
				return err
			}
			defer tracker.Close()

			info, err := tracker.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			params, err := tracker.Params(ctx, info.ID)
			if err != nil {
				return err
			}
			metrics, err := tracker.Metrics(ctx, info.ID)
			if err != nil {
				return err
			}
			artifacts, err := tracker.Artifacts(ctx, info.ID)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Run:\t%s\n", info.ID)
			fmt.Fprintf(tw, "Experiment:\t%s\n", info.Experiment)
			fmt.Fprintf(tw, "Name:\t%s\n", info.Name)
			fmt.Fprintf(tw, "Status:\t%s\n", info.Status)
			fmt.Fprintf(tw, "Started:\t%s\n", info.StartedAt.Format(time.RFC3339))

			fmt.Fprintln(tw, "\nParams:")
			for _, k := range sortedKeys(params) {
				fmt.Fprintf(tw, "  %s\t%s\n", k, params[k])
			}
			fmt.Fprintln(tw, "\nMetrics:")
			for _, k := range sortedKeys(metrics) {
				v := metrics[k]
				if math.IsNaN(v) {
					fmt.Fprintf(tw, "  %s\tNaN\n", k)
					continue
				}
				fmt.Fprintf(tw, "  %s\t%.6f\n", k, v)
			}
			fmt.Fprintln(tw, "\nArtifacts:")
			for _, a := range artifacts {
				fmt.Fprintf(tw, "  %s\t%d bytes\t%s\n", a.Name, a.Size, a.Path)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
