package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourusername/pitwall/internal/datasource"
	"github.com/yourusername/pitwall/internal/feature"
)

func newPredictionsCmd() *cobra.Command {
	var (
		table string
		limit int
		asCSV bool
	)

	cmd := &cobra.Command{
		Use:   "predictions",
		Short: "Inspect prediction tables",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the rows of a prediction table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := validatedConfig(ctx); err != nil {
				return err
			}
			db, repos, err := openRepositories(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			total, err := repos.PredictionTables.Count(ctx, table)
			if err != nil {
				return err
			}
			frame, err := repos.PredictionTables.Load(ctx, table, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asCSV {
				return datasource.EncodeCSV(out, frame)
			}
			if err := writeTable(out, frame); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d of %d rows\n", frame.Nrow(), total)
			return nil
		},
	}
	show.Flags().StringVarP(&table, "table", "t", "", "Table name, optionally schema qualified")
	show.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to print, 0 for all")
	show.Flags().BoolVar(&asCSV, "csv", false, "Print CSV instead of an aligned table")
	show.MarkFlagRequired("table")

	cmd.AddCommand(show)
	return cmd
}

func writeTable(w io.Writer, f *feature.Frame) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, rec := range f.Records() {
		if _, err := fmt.Fprintln(tw, strings.Join(rec, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}
