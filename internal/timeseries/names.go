package timeseries

// Operation names as exposed to the scheduler and CLI.
const (
	OpPreprocess        = "preprocess"
	OpBandpassFilter    = "bandpass_filter"
	OpMeanProjection    = "mean_projection"
	OpMotionCorrect     = "motion_correct"
	OpCNMFe             = "cnmfe"
	OpExportCellSet     = "export_cell_set"
	OpEventDetection    = "event_detection"
	OpDeconvolve        = "deconvolve"
	OpExportSpikeEvents = "export_spike_events"
)

// File set names and the suffixes they append to each recording stem. The
// recording extension is added after the suffix.
const (
	SetPreprocessed   = "preprocessed"
	SetBandpassed     = "bandpassed"
	SetMotionCorrect  = "motion_corrected"
	SetCellSets       = "cnmfe_cellsets"
	SetEventSets      = "cnmfe_events"
	SetSpikeEventSets = "cnmfe_spikes"

	SuffixPreprocessed   = "-PP"
	SuffixBandpassed     = "-PP-BP"
	SuffixMotionCorrect  = "-PP-BP-MC"
	SuffixCellSets       = "-PP-BP-MC-cnmfe-cellset"
	SuffixEventSets      = "-PP-BP-MC-cnmfe_event"
	SuffixSpikeEventSets = "-PP-BP-MC-cnmfe-spikes_event"
)

// Per-day artifact suffixes, appended to the day label.
const (
	ArtifactMeanImage   = "-mean_image"
	ArtifactCropRect    = "-crop_rect.csv"
	ArtifactCellSetCSV  = "-cnmfe-cellset.csv"
	ArtifactCellSetTIFF = "-cnmfe-cellset.tiff"
	ArtifactSpikeCSV    = "-cnmfe-spike-events.csv"
)

// Subdirectories of the output directory.
const (
	CNMFeTempDir = "cnmfe_tmp"
	TIFFDir      = "cnmfe_tiff"
)

// Sets lists every file set the chain defines, in pipeline order.
var Sets = []struct{ Name, Suffix string }{
	{SetPreprocessed, SuffixPreprocessed},
	{SetBandpassed, SuffixBandpassed},
	{SetMotionCorrect, SuffixMotionCorrect},
	{SetCellSets, SuffixCellSets},
	{SetEventSets, SuffixEventSets},
	{SetSpikeEventSets, SuffixSpikeEventSets},
}

// Operations lists the chain in execution order.
var Operations = []string{
	OpPreprocess,
	OpBandpassFilter,
	OpMeanProjection,
	OpMotionCorrect,
	OpCNMFe,
	OpExportCellSet,
	OpEventDetection,
	OpDeconvolve,
	OpExportSpikeEvents,
}
