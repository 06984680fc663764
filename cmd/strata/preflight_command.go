package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"strata/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check directories, the imaging bridge, and event brokers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDataDir(dataDir); err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, dataDir)
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range preflightLines(results, colorize) {
				fmt.Fprintln(out, line)
			}
			if failures := preflight.Failures(results); len(failures) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataDir, "data", "d", "", "Data directory containing the recordings")
	return cmd
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
			if r.Optional {
				kind = statusWarn
			}
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}
