package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"strata/internal/checkpoint"
	"strata/internal/pipeline"
	"strata/internal/stage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-day stage checkpoints without modifying anything",
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
			printStatus(out, report, shouldColorize(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataDir, "data", "d", "", "Data directory containing the recordings")
	return cmd
}

func printStatus(out io.Writer, report pipeline.StatusReport, colorize bool) {
	for _, line := range renderSectionHeader("Strata Status", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Data directory", statusInfo, report.DataDir, colorize))
	fmt.Fprintln(out, renderStatusLine("Output directory", statusInfo, report.OutputDir, colorize))
	fmt.Fprintln(out, catalogLine(report, colorize))
	fmt.Fprintln(out)

	labels := report.Catalog.Labels()
	headers := append([]string{"Stage"}, labels...)
	aligns := []columnAlignment{alignLeft}
	byStage := make(map[string]map[string]pipeline.StageState)
	var order []string
	for _, s := range report.States {
		if _, ok := byStage[s.Stage]; !ok {
			byStage[s.Stage] = make(map[string]pipeline.StageState)
			order = append(order, s.Stage)
		}
		byStage[s.Stage][s.Day] = s
	}
	rows := make([][]string, 0, len(order))
	for _, name := range order {
		row := []string{stage.Label(name)}
		for _, label := range labels {
			row = append(row, stateCell(byStage[name][label], colorize))
		}
		rows = append(rows, row)
	}
	for range labels {
		aligns = append(aligns, alignCenter)
	}
	fmt.Fprintln(out, renderTable(tableSpec{title: "Checkpoints", headers: headers, rows: rows, aligns: aligns}))

	if len(report.LastRuns) == 0 {
		fmt.Fprintln(out, renderStatusLine("Last runs", statusInfo, "none recorded", colorize))
		return
	}
	runRows := make([][]string, 0, len(report.LastRuns))
	for _, r := range report.LastRuns {
		day := r.Day
		if day == "" {
			day = "-"
		}
		runRows = append(runRows, []string{
			stage.Label(r.Stage),
			day,
			paint(r.Status, stageStatusKind(stage.Status(r.Status)), colorize),
			r.ErrorKind,
			r.RecordedAt.Local().Format(time.DateTime),
		})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		title:   "Last recorded outcomes",
		headers: []string{"Stage", "Day", "Status", "Error", "Recorded"},
		rows:    runRows,
	}))
}

func stateCell(s pipeline.StageState, colorize bool) string {
	if s.State == "" {
		return "-"
	}
	value := string(s.State)
	if s.State == checkpoint.StatePartial {
		value = fmt.Sprintf("partial %d/%d", s.Present, s.Expected)
	}
	return paint(value, checkpointKind(s.State), colorize)
}

func catalogLine(report pipeline.StatusReport, colorize bool) string {
	days := len(report.Catalog.Days)
	msg := fmt.Sprintf("%d day(s), %d recording(s)", days, report.Catalog.Total())
	if !report.Frozen {
		return renderStatusLine("Catalog", statusWarn, msg+", not frozen yet", colorize)
	}
	return renderStatusLine("Catalog", statusOK, fmt.Sprintf("%s, frozen %s", msg, report.FrozenAt.Local().Format(time.DateTime)), colorize)
}
