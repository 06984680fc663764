package imaging

import (
	"context"
	"fmt"
)

// MovieInfo describes a recording's frame geometry.
type MovieInfo struct {
	NumFrames   int     `json:"num_frames"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FramePeriod float64 `json:"frame_period"`
}

// Frame holds one frame's intensities in row-major order.
type Frame struct {
	Width  int
	Height int
	Pixels []float32
}

// At returns the intensity at column x, row y.
func (f Frame) At(x, y int) float32 {
	return f.Pixels[y*f.Width+x]
}

// Crop returns the sub-frame starting at (left, top). The region is clipped to
// the frame bounds; an empty intersection is an error.
func (f Frame) Crop(left, top, width, height int) (Frame, error) {
	if len(f.Pixels) != f.Width*f.Height {
		return Frame{}, fmt.Errorf("frame has %d pixels, want %dx%d", len(f.Pixels), f.Width, f.Height)
	}
	right := min(left+width, f.Width)
	bottom := min(top+height, f.Height)
	left, top = max(left, 0), max(top, 0)
	if right <= left || bottom <= top {
		return Frame{}, fmt.Errorf("crop %dx%d+%d+%d outside %dx%d frame", width, height, left, top, f.Width, f.Height)
	}
	out := Frame{Width: right - left, Height: bottom - top}
	out.Pixels = make([]float32, 0, out.Width*out.Height)
	for y := top; y < bottom; y++ {
		out.Pixels = append(out.Pixels, f.Pixels[y*f.Width+left:y*f.Width+right]...)
	}
	return out, nil
}

// Segment is a closed frame interval [Start, End].
type Segment struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Projection selects the statistic for ProjectMovie.
type Projection string

const (
	ProjectionMean Projection = "mean"
	ProjectionMax  Projection = "max"
)

// PreprocessParams controls downsampling during preprocessing.
type PreprocessParams struct {
	TemporalDownsample int  `json:"temporal_downsample_factor"`
	SpatialDownsample  int  `json:"spatial_downsample_factor"`
	FixDefectivePixels bool `json:"fix_defective_pixels"`
	TrimEarlyFrames    bool `json:"trim_early_frames"`
}

// SpatialFilterParams controls the spatial bandpass filter.
type SpatialFilterParams struct {
	LowCutoff             float64 `json:"low_cutoff"`
	HighCutoff            float64 `json:"high_cutoff"`
	RetainMean            bool    `json:"retain_mean"`
	SubtractGlobalMinimum bool    `json:"subtract_global_minimum"`
}

// MotionCorrectParams registers frames against ReferenceFile and writes the
// shared crop rectangle to CropRectFile.
type MotionCorrectParams struct {
	MaxTranslation           int     `json:"max_translation"`
	ReferenceFile            string  `json:"reference_file_name"`
	CropRectFile             string  `json:"output_crop_rect_file"`
	GlobalRegistrationWeight float64 `json:"global_registration_weight"`
}

// CNMFeParams controls cell detection. OutputDir receives temporary files.
type CNMFeParams struct {
	OutputDir      string  `json:"output_dir"`
	CellDiameter   int     `json:"cell_diameter"`
	MinCorr        float64 `json:"min_corr"`
	MinPNR         float64 `json:"min_pnr"`
	Threads        int     `json:"num_threads"`
	MergeThreshold float64 `json:"merge_threshold"`
	ProcessingMode string  `json:"processing_mode"`
	PatchSize      int     `json:"patch_size"`
	PatchOverlap   int     `json:"patch_overlap"`
	OutputUnits    string  `json:"output_unit_type"`
}

// EventDetectionParams controls discrete event detection on cell traces.
type EventDetectionParams struct {
	Threshold                float64 `json:"threshold"`
	Tau                      float64 `json:"tau"`
	EventTimeRef             string  `json:"event_time_ref"`
	IgnoreNegativeTransients bool    `json:"ignore_negative_transients"`
	AcceptedCellsOnly        bool    `json:"accepted_cells_only"`
}

// Filter is one auto accept/reject rule such as SNR > 3.
type Filter struct {
	Metric string  `json:"metric"`
	Op     string  `json:"op"`
	Value  float64 `json:"value"`
}

// DefaultEventFilters are the classification rules applied after detection.
func DefaultEventFilters() []Filter {
	return []Filter{
		{Metric: "SNR", Op: ">", Value: 3},
		{Metric: "Event Rate", Op: ">", Value: 0},
		{Metric: "Cell Size", Op: ">", Value: 0},
	}
}

// DeconvolveParams controls spike deconvolution.
type DeconvolveParams struct {
	AcceptedOnly      bool    `json:"accepted_only"`
	SpikeSNRThreshold float64 `json:"spike_snr_threshold"`
}

// RegistrationRequest aligns cell sets across days and applies the same
// transform to the companion movies.
type RegistrationRequest struct {
	CellSets          []string `json:"input_cell_set_files"`
	OutputCellSets    []string `json:"output_cell_set_files"`
	Movies            []string `json:"input_movie_files"`
	OutputMovies      []string `json:"output_movie_files"`
	TableFile         string   `json:"csv_file"`
	AcceptedCellsOnly bool     `json:"accepted_cells_only"`
}

// Capability is the external imaging library as seen by the stages.
type Capability interface {
	MovieInfo(ctx context.Context, path string) (MovieInfo, error)
	ReadFrame(ctx context.Context, path string, index int) (Frame, error)
	Preprocess(ctx context.Context, inputs, outputs []string, p PreprocessParams) error
	SpatialFilter(ctx context.Context, inputs, outputs []string, p SpatialFilterParams) error
	ProjectMovie(ctx context.Context, inputs []string, output string, stat Projection) error
	MotionCorrect(ctx context.Context, inputs, outputs []string, p MotionCorrectParams) error
	RunCNMFe(ctx context.Context, inputs, outputs []string, p CNMFeParams) error
	ExportCellSet(ctx context.Context, cellSets []string, csvFile, tiffFile string) error
	DetectEvents(ctx context.Context, cellSets, eventSets []string, p EventDetectionParams) error
	AutoAcceptReject(ctx context.Context, cellSets, eventSets []string, filters []Filter) error
	Deconvolve(ctx context.Context, cellSets, spikeSets []string, p DeconvolveParams) error
	ExportEventSet(ctx context.Context, eventSets []string, csvFile string) error
	DeltaFOverF(ctx context.Context, inputs, outputs []string) error
	LongitudinalRegistration(ctx context.Context, req RegistrationRequest) error
	TrimMovie(ctx context.Context, input, output string, segments []Segment) error
}
