package testsupport

import (
	"path/filepath"
	"testing"

	"strata/internal/config"
)

// ConfigOption adjusts a generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig returns the default config with logs under a per-test temp
// directory, a placeholder bridge binary and event publishing disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Imaging.Binary = "isx-bridge-test"
	cfg.Events.KafkaBrokers = nil
	cfg.Events.NtfyTopic = ""
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithDetectorROI overrides the detector crop region.
func WithDetectorROI(left, top, width, height int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Detector.ROILeft = left
		cfg.Detector.ROITop = top
		cfg.Detector.ROIWidth = width
		cfg.Detector.ROIHeight = height
	}
}
