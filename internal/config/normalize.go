package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRecordings()
	c.normalizeImaging()
	c.normalizeDetector()
	c.normalizeEvents()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	c.Paths.OutputFolder = strings.TrimSpace(c.Paths.OutputFolder)
	if c.Paths.OutputFolder == "" {
		c.Paths.OutputFolder = defaultOutputFolder
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRecordings() {
	c.Recordings.Extension = strings.ToLower(strings.TrimSpace(c.Recordings.Extension))
	if c.Recordings.Extension == "" {
		c.Recordings.Extension = defaultExtension
	}
	if !strings.HasPrefix(c.Recordings.Extension, ".") {
		c.Recordings.Extension = "." + c.Recordings.Extension
	}
	c.Recordings.ProcessedMarker = strings.TrimSpace(c.Recordings.ProcessedMarker)
	if c.Recordings.ProcessedMarker == "" {
		c.Recordings.ProcessedMarker = defaultProcessedMarker
	}
	c.Recordings.QuarantineDir = strings.TrimSpace(c.Recordings.QuarantineDir)
	if c.Recordings.QuarantineDir == "" {
		c.Recordings.QuarantineDir = defaultQuarantineDir
	}
	c.Recordings.DayOrder = strings.ToLower(strings.TrimSpace(c.Recordings.DayOrder))
	if c.Recordings.DayOrder == "" {
		c.Recordings.DayOrder = DayOrderChronological
	}
}

func (c *Config) normalizeImaging() {
	if value, ok := os.LookupEnv("STRATA_IMAGING_BINARY"); ok && strings.TrimSpace(value) != "" {
		c.Imaging.Binary = strings.TrimSpace(value)
	}
	c.Imaging.Binary = strings.TrimSpace(c.Imaging.Binary)
	if c.Imaging.Binary == "" {
		c.Imaging.Binary = defaultImagingBinary
	}
}

func (c *Config) normalizeDetector() {
	if c.Detector.SampleSize <= 0 {
		c.Detector.SampleSize = defaultDetectorSampleSize
	}
	if c.Detector.WhiteBins <= 0 {
		c.Detector.WhiteBins = defaultDetectorWhiteBins
	}
	if c.Detector.Workers <= 0 {
		c.Detector.Workers = defaultDetectorWorkers
	}
}

func (c *Config) normalizeEvents() {
	brokers := make([]string, 0, len(c.Events.KafkaBrokers))
	seen := make(map[string]struct{}, len(c.Events.KafkaBrokers))
	for _, broker := range c.Events.KafkaBrokers {
		trimmed := strings.TrimSpace(broker)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		brokers = append(brokers, trimmed)
	}
	if len(brokers) == 0 {
		if value, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
			for _, broker := range strings.Split(value, ",") {
				if trimmed := strings.TrimSpace(broker); trimmed != "" {
					brokers = append(brokers, trimmed)
				}
			}
		}
	}
	c.Events.KafkaBrokers = brokers
	c.Events.KafkaTopic = strings.TrimSpace(c.Events.KafkaTopic)
	if c.Events.KafkaTopic == "" {
		c.Events.KafkaTopic = defaultKafkaTopic
	}
	c.Events.NtfyTopic = strings.TrimSpace(c.Events.NtfyTopic)
	if c.Events.NtfyRequestTimeout <= 0 {
		c.Events.NtfyRequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
