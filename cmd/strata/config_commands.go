package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"strata/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := configTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  [imaging] binary        point at the imaging bridge executable")
			fmt.Fprintln(out, "  [detector] roi_*        match the sensor crop of your recordings")
			fmt.Fprintln(out, "  [events]                optional kafka_brokers and ntfy_topic")
			fmt.Fprintln(out, "Then run `strata preflight --data <dir>`.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func configTarget(flag string) (string, error) {
	if target := strings.TrimSpace(flag); target != "" {
		expanded, err := config.ExpandPath(target)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return expanded, nil
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			out := cmd.OutOrStdout()
			source := path
			if !exists {
				source = path + " (not found, defaults used)"
			}
			fmt.Fprint(out, renderTable(tableSpec{
				title:   "Configuration",
				headers: []string{"Setting", "Value"},
				rows:    configRows(cfg, source),
			}))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func configRows(cfg *config.Config, source string) [][]string {
	return [][]string{
		{"Config path", source},
		{"Imaging bridge", cfg.Imaging.Binary},
		{"Output folder", cfg.Paths.OutputFolder},
		{"Quarantine folder", cfg.Recordings.QuarantineDir},
		{"Day order", cfg.Recordings.DayOrder},
		{"Detector workers", strconv.Itoa(cfg.Detector.Workers)},
		{"Event sinks", strings.Join(eventSinks(cfg.Events), ", ")},
		{"Log directory", cfg.Paths.LogDir},
	}
}

// eventSinks names the sinks a run publishes to; the log sink is always on.
func eventSinks(ev config.Events) []string {
	sinks := []string{"log"}
	if n := len(ev.KafkaBrokers); n > 0 {
		sinks = append(sinks, fmt.Sprintf("kafka %s (%d broker(s))", ev.KafkaTopic, n))
	}
	if ev.NtfyTopic != "" {
		sinks = append(sinks, "ntfy "+ev.NtfyTopic)
	}
	return sinks
}
