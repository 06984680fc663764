package main

import (
	"github.com/spf13/cobra"

	"strata/internal/pipeline"
)

func newRootCommand(runnerOpts ...pipeline.RunnerOption) *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag, runnerOpts)

	rootCmd := &cobra.Command{
		Use:           "strata",
		Short:         "Resumable calcium imaging pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newTimeseriesCommand(ctx))
	rootCmd.AddCommand(newLongitudinalCommand(ctx))
	rootCmd.AddCommand(newDropFramesCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newCatalogCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newPreflightCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))

	return rootCmd
}
