package corruption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"

	"strata/internal/catalog"
	"strata/internal/imaging"
	"strata/internal/logging"
	"strata/internal/services"
)

// Sampler picks k frame indices from a recording with numFrames frames.
type Sampler func(numFrames, k int) []int

// RandomSampler draws k indices uniformly with replacement.
func RandomSampler(numFrames, k int) []int {
	if numFrames <= 0 {
		return nil
	}
	out := make([]int, k)
	for i := range out {
		out[i] = rand.IntN(numFrames)
	}
	return out
}

// Options configures a Detector.
type Options struct {
	ROI             Rect
	SampleSize      int
	PaddingFraction float64
	WhiteBins       int
	Workers         int
	Naming          catalog.Options
	Sampler         Sampler
}

// DefaultOptions returns the stock detector settings.
func DefaultOptions() Options {
	return Options{
		ROI:             Rect{Left: 450, Top: 0, Width: 50, Height: 800},
		SampleSize:      30,
		PaddingFraction: 0.001,
		WhiteBins:       15,
		Workers:         2,
	}
}

// Thresholds are the per-recording corruption limits.
type Thresholds struct {
	Dark    float64
	White   float64
	Samples int
}

// Detector scans recordings through an imaging capability.
type Detector struct {
	capability imaging.Capability
	opts       Options
	logger     *slog.Logger
}

// New constructs a detector. Unset options take their defaults.
func New(capability imaging.Capability, opts Options, logger *slog.Logger) *Detector {
	def := DefaultOptions()
	if opts.ROI.Width <= 0 || opts.ROI.Height <= 0 {
		opts.ROI = def.ROI
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = def.SampleSize
	}
	if opts.PaddingFraction <= 0 {
		opts.PaddingFraction = def.PaddingFraction
	}
	if opts.WhiteBins <= 0 {
		opts.WhiteBins = def.WhiteBins
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Sampler == nil {
		opts.Sampler = RandomSampler
	}
	return &Detector{
		capability: capability,
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "corruption"),
	}
}

// Options returns the effective options.
func (d *Detector) Options() Options {
	return d.opts
}

// frameStats crops, normalises, and summarises one frame.
func (d *Detector) frameStats(ctx context.Context, path string, index int) (dark, white float64, err error) {
	frame, err := d.capability.ReadFrame(ctx, path, index)
	if err != nil {
		return 0, 0, err
	}
	roi := d.opts.ROI
	cropped, err := frame.Crop(roi.Left, roi.Top, roi.Width, roi.Height)
	if err != nil {
		return 0, 0, err
	}
	hist := Histogram(cropped)
	return float64(hist[0]), whiteMean(hist, d.opts.WhiteBins), nil
}

// ComputeThresholds samples frames of path and returns the median near-black
// count and median near-white mean, each padded by ROI area * padding
// fraction. Unreadable samples are skipped; if none can be read the
// thresholds cannot be derived and an error is returned.
func (d *Detector) ComputeThresholds(ctx context.Context, path string, numFrames int) (Thresholds, error) {
	indices := d.opts.Sampler(numFrames, d.opts.SampleSize)
	darks := make([]float64, 0, len(indices))
	whites := make([]float64, 0, len(indices))
	for _, index := range indices {
		if err := ctx.Err(); err != nil {
			return Thresholds{}, err
		}
		dark, white, err := d.frameStats(ctx, path, index)
		if err != nil {
			continue
		}
		darks = append(darks, dark)
		whites = append(whites, white)
	}
	if len(darks) == 0 {
		return Thresholds{}, services.Wrap(services.ErrExternalOperation, "corruption", "thresholds",
			fmt.Sprintf("no readable sample frames in %s", filepath.Base(path)), nil)
	}
	padding := float64(d.opts.ROI.Area()) * d.opts.PaddingFraction
	return Thresholds{
		Dark:    median(darks) + padding,
		White:   median(whites) + padding,
		Samples: len(darks),
	}, nil
}

// ScanMovie visits every frame of path in order and returns the merged corrupt
// segments. A frame whose histogram cannot be computed counts as corrupt.
func (d *Detector) ScanMovie(ctx context.Context, path string) ([]imaging.Segment, error) {
	info, err := d.capability.MovieInfo(ctx, path)
	if err != nil {
		return nil, err
	}
	thresholds, err := d.ComputeThresholds(ctx, path, info.NumFrames)
	if err != nil {
		return nil, err
	}
	logger := d.logger.With(logging.String("file", filepath.Base(path)))
	logger.Info("thresholds computed",
		logging.Float64("dark_threshold", thresholds.Dark),
		logging.Float64("white_threshold", thresholds.White),
		logging.Int("samples", thresholds.Samples),
		logging.Int("frames", info.NumFrames),
	)

	var tracker segmentTracker
	unreadable := 0
	for index := 0; index < info.NumFrames; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dark, white, err := d.frameStats(ctx, path, index)
		corrupt := err != nil || dark > thresholds.Dark || white > thresholds.White
		if err != nil {
			unreadable++
		}
		tracker.observe(index, corrupt)
	}
	segments := tracker.finish()
	logger.Info("scan complete",
		logging.Int("segments", len(segments)),
		logging.Int("unreadable_frames", unreadable),
		logging.Any("segment_list", segments),
	)
	return segments, nil
}

// Trim writes the processed copy of path with segments removed and returns its
// path. An empty segment list is a no-op returning "".
func (d *Detector) Trim(ctx context.Context, path string, segments []imaging.Segment) (string, error) {
	if len(segments) == 0 {
		return "", nil
	}
	output := filepath.Join(filepath.Dir(path), catalog.ProcessedName(filepath.Base(path), d.opts.Naming))
	if err := d.capability.TrimMovie(ctx, path, output, segments); err != nil {
		if errors.Is(err, services.ErrExternalOperation) {
			return "", err
		}
		return "", services.Wrap(services.ErrExternalOperation, "corruption", "trim", filepath.Base(path), err)
	}
	d.logger.Info("recording trimmed",
		logging.String("file", filepath.Base(path)),
		logging.String("output", filepath.Base(output)),
		logging.Int("segments", len(segments)),
	)
	return output, nil
}
