package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"strata/internal/pipeline"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect or refresh the frozen recording catalog",
	}
	catalogCmd.AddCommand(newCatalogShowCommand(ctx))
	catalogCmd.AddCommand(newCatalogRefreshCommand(ctx))
	return catalogCmd
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List day series and their recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDataDir(dataDir); err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report, err := pipeline.Inspect(cmd.Context(), cfg, dataDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, catalogLine(report, colorize))

			var rows [][]string
			for _, day := range report.Catalog.Days {
				for i, rec := range day.Recordings {
					label, date := day.Label, day.Date
					if i > 0 {
						label, date = "", ""
					}
					rows = append(rows, []string{label, date, rec.Name, yesNo(rec.Processed)})
				}
			}
			fmt.Fprintln(out, renderTable(tableSpec{
				title:   "Day series",
				headers: []string{"Day", "Date", "Recording", "Processed"},
				rows:    rows,
				footer:  []string{"", "", strconv.Itoa(report.Catalog.Total()) + " recordings", ""},
			}))
			for _, dup := range report.Catalog.Duplicates {
				fmt.Fprintln(out, renderStatusLine("Duplicate", statusWarn, dup.Name+" (shadowed by processed copy)", colorize))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataDir, "data", "d", "", "Data directory containing the recordings")
	return cmd
}

func newCatalogRefreshCommand(ctx *commandContext) *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Drop the frozen catalog so the next run rescans the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDataDir(dataDir); err != nil {
				return err
			}
			return ctx.withSession(cmd.Context(), dataDir, func(session *pipeline.Session, _ *slog.Logger) error {
				if err := session.RefreshCatalog(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Dropped frozen catalog for %s\n", session.DataDir())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&dataDir, "data", "d", "", "Data directory containing the recordings")
	return cmd
}
