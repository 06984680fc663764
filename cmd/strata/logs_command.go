package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"strata/internal/logging"
	"strata/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display pipeline logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			out := cmd.OutOrStdout()
			printed := false
			emit := func(line string) {
				fmt.Fprintln(out, line)
				printed = true
			}

			var offset int64
			if lines > 0 {
				tail, end, err := logs.Last(path, lines)
				if err != nil {
					return err
				}
				for _, line := range tail {
					emit(line)
				}
				offset = end
			} else {
				if offset, err = logs.Since(path, 0, emit); err != nil {
					return err
				}
			}

			if !follow {
				if !printed {
					fmt.Fprintln(out, "No log entries available")
				}
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 500*time.Millisecond, emit)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	return cmd
}
