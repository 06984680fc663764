package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRecordings(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if filepath.IsAbs(c.Paths.OutputFolder) || strings.ContainsRune(c.Paths.OutputFolder, filepath.Separator) {
		return errors.New("paths.output_folder must be a folder name, not a path")
	}
	return nil
}

func (c *Config) validateRecordings() error {
	if len(c.Recordings.Extension) < 2 {
		return errors.New("recordings.extension must include at least one character after the dot")
	}
	switch c.Recordings.DayOrder {
	case DayOrderChronological, DayOrderDiscovery:
	default:
		return fmt.Errorf("recordings.day_order: unsupported value %q (use %q or %q)",
			c.Recordings.DayOrder, DayOrderChronological, DayOrderDiscovery)
	}
	if c.Recordings.QuarantineDir == c.Paths.OutputFolder {
		return errors.New("recordings.quarantine_dir must differ from paths.output_folder")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	if c.Imaging.OperationTimeout < 0 {
		return errors.New("imaging.operation_timeout must not be negative (seconds, 0 disables)")
	}
	if c.Scheduler.TaskTimeout < 0 {
		return errors.New("scheduler.task_timeout must not be negative (seconds, 0 disables)")
	}
	return nil
}

func (c *Config) validateDetector() error {
	if err := ensurePositiveMap(map[string]int{
		"detector.roi_width":   c.Detector.ROIWidth,
		"detector.roi_height":  c.Detector.ROIHeight,
		"detector.sample_size": c.Detector.SampleSize,
		"detector.workers":     c.Detector.Workers,
	}); err != nil {
		return err
	}
	if c.Detector.ROILeft < 0 || c.Detector.ROITop < 0 {
		return errors.New("detector.roi_left and detector.roi_top must not be negative")
	}
	if c.Detector.PaddingFraction <= 0 || c.Detector.PaddingFraction >= 1 {
		return errors.New("detector.padding_fraction must be in (0, 1)")
	}
	if c.Detector.WhiteBins > 256 {
		return errors.New("detector.white_bins must not exceed 256")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if len(c.Events.KafkaBrokers) > 0 && c.Events.KafkaTopic == "" {
		return errors.New("events.kafka_topic is required when kafka_brokers are set")
	}
	if c.Events.NtfyTopic == "" {
		return nil
	}
	u, err := url.Parse(c.Events.NtfyTopic)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("events.ntfy_topic must be an http(s) URL, got %q", c.Events.NtfyTopic)
	}
	if c.Events.NtfyRequestTimeout <= 0 {
		return errors.New("events.ntfy_request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
