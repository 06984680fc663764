// Package dropframes is the frame-drop workflow: scan every raw recording in
// a data directory for corrupt frame runs and write trimmed copies, then move
// each raw recording that now has a trimmed copy into the quarantine folder.
package dropframes

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"strata/internal/catalog"
	"strata/internal/corruption"
	"strata/internal/logging"
	"strata/internal/services"
	"strata/internal/stage"
)

const (
	OpDropFrames           = "drop_frames"
	OpQuarantineDuplicates = "quarantine_duplicates"
)

// Operations lists the workflow in execution order.
var Operations = []string{OpDropFrames, OpQuarantineDuplicates}

// DropFrames is the stage object for the frame-drop workflow.
type DropFrames struct {
	dataDir       string
	quarantineDir string
	naming        catalog.Options
	detector      *corruption.Detector
	logger        *slog.Logger

	// Quarantined holds the destination of every file moved by the last
	// QuarantineDuplicates call.
	Quarantined []string
}

// New constructs the workflow for dataDir.
func New(dataDir, quarantineDir string, naming catalog.Options, detector *corruption.Detector, logger *slog.Logger) *DropFrames {
	return &DropFrames{
		dataDir:       dataDir,
		quarantineDir: quarantineDir,
		naming:        naming,
		detector:      detector,
		logger:        logging.NewComponentLogger(logger, "dropframes"),
	}
}

// HealthCheck reports whether a detector is configured.
func (d *DropFrames) HealthCheck(context.Context) stage.Health {
	if d.detector == nil {
		return stage.Unhealthy("dropframes", "detector not configured")
	}
	return stage.Healthy("dropframes")
}

// DropFrames runs the detector batch. Each candidate recording is one entry
// in the result, keyed by file name.
func (d *DropFrames) DropFrames(ctx context.Context) stage.Result {
	ctx = services.WithStage(ctx, OpDropFrames)
	result := stage.Result{Stage: OpDropFrames}
	report, err := d.detector.RunBatch(ctx, d.dataDir)
	for _, f := range report.Files {
		if errors.Is(f.Err, corruption.ErrNotScanned) {
			continue
		}
		result.Record(filepath.Base(f.Path), stage.StatusSucceeded, f.Err)
	}
	result.Err = err
	if !result.Failed() {
		stage.EmitCheckpoint(ctx, OpDropFrames)
	}
	return result
}

// QuarantineDuplicates moves every raw recording shadowed by a processed copy
// into the quarantine folder. The directory is rescanned so copies written by
// DropFrames are seen.
func (d *DropFrames) QuarantineDuplicates(ctx context.Context) stage.Result {
	ctx = services.WithStage(ctx, OpQuarantineDuplicates)
	result := stage.Result{Stage: OpQuarantineDuplicates}
	d.Quarantined = nil
	cat, err := catalog.Build(d.dataDir, d.naming)
	if err != nil {
		result.Err = err
		return result
	}
	pending := make([]string, len(cat.Duplicates))
	for i, dup := range cat.Duplicates {
		pending[i] = dup.Name
	}
	moved, err := catalog.ResolveDuplicates(ctx, cat, d.quarantineDir, d.logger)
	d.Quarantined = moved
	failed := make(map[string]struct{}, len(cat.Duplicates))
	for _, dup := range cat.Duplicates {
		failed[dup.Name] = struct{}{}
	}
	for _, name := range pending {
		if _, ok := failed[name]; ok {
			result.Record(name, stage.StatusFailed, err)
			continue
		}
		result.Record(name, stage.StatusSucceeded, nil)
	}
	if err != nil && len(failed) == 0 {
		result.Err = err
	}
	logging.WithContext(ctx, d.logger).Info("duplicate recordings quarantined",
		logging.String(logging.FieldEventType, "quarantine_complete"),
		logging.Int("moved", len(moved)),
		logging.Int("failed", len(failed)),
	)
	if !result.Failed() {
		stage.EmitCheckpoint(ctx, OpQuarantineDuplicates)
	}
	return result
}
