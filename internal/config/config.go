package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputFolder string `toml:"output_folder"`
	LogDir       string `toml:"log_dir"`
}

// Recordings describes how input recordings are named on disk.
type Recordings struct {
	Extension       string `toml:"extension"`
	ProcessedMarker string `toml:"processed_marker"`
	QuarantineDir   string `toml:"quarantine_dir"`
	DayOrder        string `toml:"day_order"`
}

// Imaging configures the bridge to the external imaging capability.
type Imaging struct {
	Binary           string `toml:"binary"`
	OperationTimeout int    `toml:"operation_timeout"`
}

// Timeseries contains the parameters handed to the imaging capability by the
// timeseries stages.
type Timeseries struct {
	TemporalDownsample int     `toml:"temporal_downsample"`
	SpatialDownsample  int     `toml:"spatial_downsample"`
	LowCutoff          float64 `toml:"low_cutoff"`
	HighCutoff         float64 `toml:"high_cutoff"`
	MaxTranslation     int     `toml:"max_translation"`
	CellDiameter       int     `toml:"cell_diameter"`
	MinCorr            float64 `toml:"min_corr"`
	MinPNR             float64 `toml:"min_pnr"`
	CNMFeThreads       int     `toml:"cnmfe_threads"`
	EventThreshold     float64 `toml:"event_threshold"`
	EventTau           float64 `toml:"event_tau"`
	SpikeSNRThreshold  float64 `toml:"spike_snr_threshold"`
}

// Detector configures corrupt frame detection.
type Detector struct {
	ROILeft         int     `toml:"roi_left"`
	ROITop          int     `toml:"roi_top"`
	ROIWidth        int     `toml:"roi_width"`
	ROIHeight       int     `toml:"roi_height"`
	SampleSize      int     `toml:"sample_size"`
	PaddingFraction float64 `toml:"padding_fraction"`
	WhiteBins       int     `toml:"white_bins"`
	Workers         int     `toml:"workers"`
}

// Scheduler configures the sequential task scheduler.
type Scheduler struct {
	// TaskTimeout bounds a single task in seconds. Zero disables the limit.
	TaskTimeout int `toml:"task_timeout"`
}

// Events configures publication of scheduler events.
type Events struct {
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`

	// NtfyTopic is the full ntfy topic URL. Empty disables notifications.
	NtfyTopic          string `toml:"ntfy_topic"`
	NtfyRequestTimeout int    `toml:"ntfy_request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Strata.
//
// Configuration sections by subsystem:
//   - Paths: output folder name and log directory
//   - Recordings: extension, processed marker, quarantine folder, day ordering
//   - Imaging: external capability bridge binary and timeout
//   - Timeseries: stage parameters for the imaging capability
//   - Detector: corrupt frame detection tuning
//   - Scheduler: task timeout
//   - Events: optional Kafka publication and ntfy notifications
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Recordings Recordings `toml:"recordings"`
	Imaging    Imaging    `toml:"imaging"`
	Timeseries Timeseries `toml:"timeseries"`
	Detector   Detector   `toml:"detector"`
	Scheduler  Scheduler  `toml:"scheduler"`
	Events     Events     `toml:"events"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("strata.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates directories the CLI writes to regardless of the
// data directory being processed.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// OutputDir returns the output directory for a data directory.
func (c *Config) OutputDir(dataDir string) string {
	return filepath.Join(dataDir, c.Paths.OutputFolder)
}

// ProcessedName returns the processed-variant file name for a raw recording name.
func (c *Config) ProcessedName(name string) string {
	ext := c.Recordings.Extension
	return strings.TrimSuffix(name, ext) + c.Recordings.ProcessedMarker + ext
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
