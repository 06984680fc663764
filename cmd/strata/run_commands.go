package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"strata/internal/pipeline"
	"strata/internal/scheduler"
	"strata/internal/stage"
)

func newTimeseriesCommand(ctx *commandContext) *cobra.Command {
	var dataDir, phase string
	var temporal, spatial int

	cmd := &cobra.Command{
		Use:   "timeseries",
		Short: "Run the per-day processing chain",
		Long: "Run preprocessing through spike event export for every day series in the data directory.\n" +
			"Phases: prepare (preprocess to motion correction), cells (CNMFe), events (export to spike events), all.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDataDir(dataDir); err != nil {
				return err
			}
			steps, err := pipeline.TimeseriesPlan(strings.ToLower(strings.TrimSpace(phase)), temporal, spatial)
			if err != nil {
				return err
			}
			return ctx.runSteps(cmd, dataDir, steps)
		},
	}
	cmd.Flags().StringVarP(&dataDir, "data", "d", "", "Data directory containing the recordings")
	cmd.Flags().StringVar(&phase, "phase", pipeline.PhaseAll, "Phase to run: prepare, cells, events, or all")
	cmd.Flags().IntVar(&temporal, "temporal", 0, "Temporal downsample factor (0 uses the configured value)")
	cmd.Flags().IntVar(&spatial, "spatial", 0, "Spatial downsample factor (0 uses the configured value)")
	return cmd
}

func newLongitudinalCommand(ctx *commandContext) *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "longitudinal",
		Short: "Register cells across days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDataDir(dataDir); err != nil {
				return err
			}
			return ctx.runSteps(cmd, dataDir, pipeline.LongitudinalPlan())
		},
	}
	cmd.Flags().StringVarP(&dataDir, "data", "d", "", "Data directory containing the recordings")
	return cmd
}

func newDropFramesCommand(ctx *commandContext) *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "dropframes",
		Short: "Trim corrupt frame runs and quarantine the raw recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDataDir(dataDir); err != nil {
				return err
			}
			return ctx.runSteps(cmd, dataDir, pipeline.DropFramesPlan())
		},
	}
	cmd.Flags().StringVarP(&dataDir, "data", "d", "", "Data directory containing the recordings")
	return cmd
}

func (c *commandContext) runSteps(cmd *cobra.Command, dataDir string, steps []pipeline.Step) error {
	return c.withSession(cmd.Context(), dataDir, func(session *pipeline.Session, logger *slog.Logger) error {
		runner, err := pipeline.NewRunner(session, logger, c.runnerOpts...)
		if err != nil {
			return err
		}
		defer runner.Close()

		report, runErr := runner.Run(cmd.Context(), steps)
		out := cmd.OutOrStdout()
		if len(report.Entries) > 0 {
			printRunReport(out, report, shouldColorize(out))
		}
		if runErr != nil {
			return runErr
		}
		if failures := report.Failures(); len(failures) > 0 {
			return fmt.Errorf("%d stage outcome(s) failed; rerun to retry the missing days", len(failures))
		}
		return nil
	})
}

func printRunReport(out io.Writer, report pipeline.Report, colorize bool) {
	rows := make([][]string, 0, len(report.Entries))
	for _, e := range report.Entries {
		day := e.Day
		if day == "" {
			day = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(e.Task + 1),
			stage.Label(e.Stage),
			day,
			paint(string(e.Status), stageStatusKind(e.Status), colorize),
			errorCell(e),
		})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		title:   "Run " + shortID(report.Summary.RunID),
		headers: []string{"#", "Stage", "Day", "Status", "Error"},
		rows:    rows,
		aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	}))
	fmt.Fprintln(out, summaryLine(report.Summary, colorize))
	for _, path := range report.Quarantined {
		fmt.Fprintln(out, renderStatusLine("Quarantined", statusWarn, path, colorize))
	}
}

func summaryLine(s scheduler.QueueCompleted, colorize bool) string {
	kind := statusOK
	switch {
	case s.Halted || s.Err != nil:
		kind = statusError
	case s.Failed > 0 || s.Dropped > 0:
		kind = statusWarn
	}
	msg := fmt.Sprintf("%d processed, %d with failures, %d dropped", s.Processed, s.Failed, s.Dropped)
	if s.Halted {
		msg += " (halted)"
	}
	return renderStatusLine("Queue", kind, msg, colorize)
}

func errorCell(e scheduler.StatusEntry) string {
	if e.ErrorKind == "" {
		return ""
	}
	msg := e.Message
	const limit = 80
	if len(msg) > limit {
		msg = msg[:limit-3] + "..."
	}
	return fmt.Sprintf("%s: %s", e.ErrorKind, msg)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
