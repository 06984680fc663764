package config

const (
	defaultConfigPath         = "~/.config/strata/config.toml"
	defaultOutputFolder       = "processed"
	defaultLogDir             = "~/.local/share/strata/logs"
	defaultExtension          = ".isxd"
	defaultProcessedMarker    = "_processed"
	defaultQuarantineDir      = "corrupt_recordings"
	defaultImagingBinary      = "isx-bridge"
	defaultKafkaTopic         = "strata.pipeline.events"
	defaultNtfyTimeout        = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultDetectorWorkers    = 2
	defaultDetectorSampleSize = 30
	defaultDetectorWhiteBins  = 15
)

// Day ordering modes for catalog day labels.
const (
	// DayOrderChronological assigns day_1 to the earliest calendar date.
	DayOrderChronological = "chronological"
	// DayOrderDiscovery assigns labels in the order dates are first seen in the
	// directory listing.
	DayOrderDiscovery = "discovery"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputFolder: defaultOutputFolder,
			LogDir:       defaultLogDir,
		},
		Recordings: Recordings{
			Extension:       defaultExtension,
			ProcessedMarker: defaultProcessedMarker,
			QuarantineDir:   defaultQuarantineDir,
			DayOrder:        DayOrderChronological,
		},
		Imaging: Imaging{
			Binary: defaultImagingBinary,
		},
		Timeseries: Timeseries{
			TemporalDownsample: 2,
			SpatialDownsample:  4,
			LowCutoff:          0.005,
			HighCutoff:         0.5,
			MaxTranslation:     20,
			CellDiameter:       7,
			MinCorr:            0.8,
			MinPNR:             10,
			CNMFeThreads:       4,
			EventThreshold:     5,
			EventTau:           0.2,
			SpikeSNRThreshold:  5.0,
		},
		Detector: Detector{
			ROILeft:         450,
			ROITop:          0,
			ROIWidth:        50,
			ROIHeight:       800,
			SampleSize:      defaultDetectorSampleSize,
			PaddingFraction: 0.001,
			WhiteBins:       defaultDetectorWhiteBins,
			Workers:         defaultDetectorWorkers,
		},
		Events: Events{
			KafkaTopic:         defaultKafkaTopic,
			NtfyRequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
