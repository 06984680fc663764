package timeseries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"strata/internal/catalog"
	"strata/internal/checkpoint"
	"strata/internal/config"
	"strata/internal/fileutil"
	"strata/internal/imaging"
	"strata/internal/logging"
	"strata/internal/services"
	"strata/internal/stage"
)

// Timeseries is the stage object for the per-day processing chain.
type Timeseries struct {
	ws         *stage.Workspace
	capability imaging.Capability
	params     config.Timeseries
	logger     *slog.Logger
}

// New constructs the stage object.
func New(ws *stage.Workspace, capability imaging.Capability, params config.Timeseries, logger *slog.Logger) *Timeseries {
	return &Timeseries{
		ws:         ws,
		capability: capability,
		params:     params,
		logger:     logging.NewComponentLogger(logger, "timeseries"),
	}
}

// HealthCheck reports whether the stage has days to work on.
func (t *Timeseries) HealthCheck(context.Context) stage.Health {
	if t.ws == nil || t.ws.Catalog == nil || len(t.ws.Catalog.Days) == 0 {
		return stage.Unhealthy("timeseries", "no day series loaded")
	}
	if t.capability == nil {
		return stage.Unhealthy("timeseries", "imaging capability not configured")
	}
	return stage.Healthy("timeseries")
}

// dayOp performs the imaging call for one day.
type dayOp func(ctx context.Context, day int, label string, inputs, outputs []string) error

// mapStage runs op for each day whose outputs in out are incomplete.
func (t *Timeseries) mapStage(ctx context.Context, name, producer string, in, out catalog.FileSet, op dayOp) stage.Result {
	return stage.Run(ctx, t.logger, name, t.ws.Labels(), func(ctx context.Context, day int, label string) (stage.Status, error) {
		pending, err := t.ws.Pending(ctx, out, day)
		if err != nil {
			return stage.StatusFailed, err
		}
		if !pending {
			return stage.StatusSkipped, nil
		}
		inputs, err := in.Day(day)
		if err != nil {
			return stage.StatusFailed, err
		}
		if producer != "" {
			if err := stage.RequireInputs(producer, inputs...); err != nil {
				return stage.StatusFailed, err
			}
		}
		outputs, _ := out.Day(day)
		if err := op(ctx, day, label, inputs, outputs); err != nil {
			return stage.StatusFailed, err
		}
		return stage.StatusSucceeded, nil
	})
}

// artifactOp writes the per-day artifact at path.
type artifactOp func(ctx context.Context, day int, label string, inputs []string, path string) error

// artifactStage runs op for each day whose artifact is absent.
func (t *Timeseries) artifactStage(ctx context.Context, name, producer string, in catalog.FileSet, artifacts []string, op artifactOp) stage.Result {
	return stage.Run(ctx, t.logger, name, t.ws.Labels(), func(ctx context.Context, day int, label string) (stage.Status, error) {
		if checkpoint.ArtifactExists(artifacts[day]) {
			return stage.StatusSkipped, nil
		}
		inputs, err := in.Day(day)
		if err != nil {
			return stage.StatusFailed, err
		}
		if err := stage.RequireInputs(producer, inputs...); err != nil {
			return stage.StatusFailed, err
		}
		if err := op(ctx, day, label, inputs, artifacts[day]); err != nil {
			return stage.StatusFailed, err
		}
		return stage.StatusSucceeded, nil
	})
}

func (t *Timeseries) sets(ctx context.Context, names ...string) ([]catalog.FileSet, error) {
	out := make([]catalog.FileSet, len(names))
	for i, name := range names {
		if name == "" {
			out[i] = t.ws.Catalog.Sources()
			continue
		}
		suffix, ok := suffixFor(name)
		if !ok {
			return nil, services.Wrap(services.ErrConfiguration, "timeseries", "file set", fmt.Sprintf("unknown file set %q", name), nil)
		}
		fs, err := t.ws.FileSet(ctx, name, suffix)
		if err != nil {
			return nil, err
		}
		out[i] = fs
	}
	return out, nil
}

func suffixFor(name string) (string, bool) {
	for _, s := range Sets {
		if s.Name == name {
			return s.Suffix, true
		}
	}
	return "", false
}

// Preprocess downsamples each day's raw recordings. Non-positive factors
// fall back to the configured defaults.
func (t *Timeseries) Preprocess(ctx context.Context, temporal, spatial int) stage.Result {
	if temporal <= 0 {
		temporal = t.params.TemporalDownsample
	}
	if spatial <= 0 {
		spatial = t.params.SpatialDownsample
	}
	if err := t.ws.EnsureOutputDir(); err != nil {
		return stage.Failure(OpPreprocess, err)
	}
	sets, err := t.sets(ctx, "", SetPreprocessed)
	if err != nil {
		return stage.Failure(OpPreprocess, err)
	}
	params := imaging.PreprocessParams{
		TemporalDownsample: temporal,
		SpatialDownsample:  spatial,
		FixDefectivePixels: true,
		TrimEarlyFrames:    true,
	}
	return t.mapStage(ctx, OpPreprocess, "", sets[0], sets[1], func(ctx context.Context, _ int, _ string, in, out []string) error {
		return t.capability.Preprocess(ctx, in, out, params)
	})
}

// BandpassFilter applies the spatial bandpass filter to preprocessed movies.
func (t *Timeseries) BandpassFilter(ctx context.Context) stage.Result {
	sets, err := t.sets(ctx, SetPreprocessed, SetBandpassed)
	if err != nil {
		return stage.Failure(OpBandpassFilter, err)
	}
	params := imaging.SpatialFilterParams{
		LowCutoff:             t.params.LowCutoff,
		HighCutoff:            t.params.HighCutoff,
		SubtractGlobalMinimum: true,
	}
	return t.mapStage(ctx, OpBandpassFilter, OpPreprocess, sets[0], sets[1], func(ctx context.Context, _ int, _ string, in, out []string) error {
		return t.capability.SpatialFilter(ctx, in, out, params)
	})
}

// MeanImages returns the per-day mean projection paths.
func (t *Timeseries) MeanImages() []string {
	return t.ws.Artifacts(ArtifactMeanImage + t.ws.Extension)
}

// MeanProjection writes one mean image per day from the bandpassed movies,
// used as the motion correction reference.
func (t *Timeseries) MeanProjection(ctx context.Context) stage.Result {
	sets, err := t.sets(ctx, SetBandpassed)
	if err != nil {
		return stage.Failure(OpMeanProjection, err)
	}
	return t.artifactStage(ctx, OpMeanProjection, OpBandpassFilter, sets[0], t.MeanImages(), func(ctx context.Context, _ int, _ string, in []string, path string) error {
		return t.capability.ProjectMovie(ctx, in, path, imaging.ProjectionMean)
	})
}

// MotionCorrect registers each day's bandpassed movies against that day's
// mean image and records the shared crop rectangle.
func (t *Timeseries) MotionCorrect(ctx context.Context) stage.Result {
	sets, err := t.sets(ctx, SetBandpassed, SetMotionCorrect)
	if err != nil {
		return stage.Failure(OpMotionCorrect, err)
	}
	means := t.MeanImages()
	crops := t.ws.Artifacts(ArtifactCropRect)
	return t.mapStage(ctx, OpMotionCorrect, OpBandpassFilter, sets[0], sets[1], func(ctx context.Context, day int, _ string, in, out []string) error {
		if err := stage.RequireInputs(OpMeanProjection, means[day]); err != nil {
			return err
		}
		return t.capability.MotionCorrect(ctx, in, out, imaging.MotionCorrectParams{
			MaxTranslation:           t.params.MaxTranslation,
			ReferenceFile:            means[day],
			CropRectFile:             crops[day],
			GlobalRegistrationWeight: 1.0,
		})
	})
}

// CNMFe detects cells in the motion corrected movies. Temporary files go to
// the cnmfe_tmp subdirectory.
func (t *Timeseries) CNMFe(ctx context.Context) stage.Result {
	sets, err := t.sets(ctx, SetMotionCorrect, SetCellSets)
	if err != nil {
		return stage.Failure(OpCNMFe, err)
	}
	tmp := t.ws.Path(CNMFeTempDir)
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return stage.Failure(OpCNMFe, services.Wrap(services.ErrFileSystem, "timeseries", OpCNMFe, "create temp dir", err))
	}
	params := imaging.CNMFeParams{
		OutputDir:      tmp,
		CellDiameter:   t.params.CellDiameter,
		MinCorr:        t.params.MinCorr,
		MinPNR:         t.params.MinPNR,
		Threads:        t.params.CNMFeThreads,
		MergeThreshold: 0.7,
		ProcessingMode: "parallel_patches",
		PatchSize:      80,
		PatchOverlap:   20,
		OutputUnits:    "df_over_noise",
	}
	return t.mapStage(ctx, OpCNMFe, OpMotionCorrect, sets[0], sets[1], func(ctx context.Context, _ int, _ string, in, out []string) error {
		return t.capability.RunCNMFe(ctx, in, out, params)
	})
}

// ExportCellSet writes each day's cell traces to CSV and cell maps to TIFF,
// then moves the TIFF files into the cnmfe_tiff subdirectory.
func (t *Timeseries) ExportCellSet(ctx context.Context) stage.Result {
	sets, err := t.sets(ctx, SetCellSets)
	if err != nil {
		return stage.Failure(OpExportCellSet, err)
	}
	tiffs := t.ws.Artifacts(ArtifactCellSetTIFF)
	result := t.artifactStage(ctx, OpExportCellSet, OpCNMFe, sets[0], t.ws.Artifacts(ArtifactCellSetCSV), func(ctx context.Context, day int, _ string, in []string, path string) error {
		return t.capability.ExportCellSet(ctx, in, path, tiffs[day])
	})
	if err := t.collectTIFFs(ctx); err != nil {
		result.Err = errors.Join(result.Err, err)
	}
	return result
}

// collectTIFFs moves loose .tiff files in the output directory into TIFFDir.
func (t *Timeseries) collectTIFFs(ctx context.Context) error {
	entries, err := os.ReadDir(t.ws.OutputDir)
	if err != nil {
		return services.Wrap(services.ErrFileSystem, "timeseries", "collect tiffs", t.ws.OutputDir, err)
	}
	dest := t.ws.Path(TIFFDir)
	logger := logging.WithContext(ctx, t.logger)
	var errs []error
	moved := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".tiff") {
			continue
		}
		src := filepath.Join(t.ws.OutputDir, entry.Name())
		if err := fileutil.Move(src, filepath.Join(dest, entry.Name())); err != nil {
			errs = append(errs, services.Wrap(services.ErrFileSystem, "timeseries", "collect tiffs", entry.Name(), err))
			continue
		}
		moved++
	}
	if moved > 0 {
		logger.Info("cell map tiffs moved", logging.Int("files", moved), logging.String("destination", dest))
	}
	return errors.Join(errs...)
}

// EventDetection detects events on each day's cell sets and then
// auto-classifies cells with the standard filters.
func (t *Timeseries) EventDetection(ctx context.Context) stage.Result {
	sets, err := t.sets(ctx, SetCellSets, SetEventSets)
	if err != nil {
		return stage.Failure(OpEventDetection, err)
	}
	params := imaging.EventDetectionParams{
		Threshold:                t.params.EventThreshold,
		Tau:                      t.params.EventTau,
		EventTimeRef:             "beginning",
		IgnoreNegativeTransients: true,
	}
	return t.mapStage(ctx, OpEventDetection, OpCNMFe, sets[0], sets[1], func(ctx context.Context, _ int, _ string, in, out []string) error {
		if err := t.capability.DetectEvents(ctx, in, out, params); err != nil {
			return err
		}
		return t.capability.AutoAcceptReject(ctx, in, out, imaging.DefaultEventFilters())
	})
}

// Deconvolve produces spike event sets from each day's cell sets.
func (t *Timeseries) Deconvolve(ctx context.Context) stage.Result {
	sets, err := t.sets(ctx, SetCellSets, SetSpikeEventSets)
	if err != nil {
		return stage.Failure(OpDeconvolve, err)
	}
	params := imaging.DeconvolveParams{SpikeSNRThreshold: t.params.SpikeSNRThreshold}
	return t.mapStage(ctx, OpDeconvolve, OpCNMFe, sets[0], sets[1], func(ctx context.Context, _ int, _ string, in, out []string) error {
		return t.capability.Deconvolve(ctx, in, out, params)
	})
}

// ExportSpikeEvents writes each day's spike events to one CSV.
func (t *Timeseries) ExportSpikeEvents(ctx context.Context) stage.Result {
	sets, err := t.sets(ctx, SetSpikeEventSets)
	if err != nil {
		return stage.Failure(OpExportSpikeEvents, err)
	}
	return t.artifactStage(ctx, OpExportSpikeEvents, OpDeconvolve, sets[0], t.ws.Artifacts(ArtifactSpikeCSV), func(ctx context.Context, _ int, _ string, in []string, path string) error {
		return t.capability.ExportEventSet(ctx, in, path)
	})
}
