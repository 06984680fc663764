// Package longitudinal aligns cells across days. It derives dF/F movies from
// the motion corrected recordings, registers every day's CNMFe cell set and dF/F
// movie into a common space, and writes one maximum projection per day of the
// registered movies.
package longitudinal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"strata/internal/catalog"
	"strata/internal/checkpoint"
	"strata/internal/imaging"
	"strata/internal/logging"
	"strata/internal/services"
	"strata/internal/stage"
	"strata/internal/timeseries"
)

const (
	OpCalculateDFF             = "calculate_dff"
	OpLongitudinalRegistration = "longitudinal_registration"
	OpMaxProjection            = "max_projection"
)

const (
	SetDFF           = "dff_movies"
	SetLRCellSets    = "lr_cellsets"
	SetLRDFF         = "lr_dff_movies"
	SuffixDFF        = "-PP-BP-MC-dff"
	SuffixRegistered = "-LR"
	ArtifactMaxDFF   = "-maxdff-LR"
	IndexTable       = "lr_index_table.csv"
	// registrationDay labels the single cross-day registration outcome.
	registrationDay = "all_days"
)

// Operations lists the longitudinal operations in execution order.
var Operations = []string{OpCalculateDFF, OpLongitudinalRegistration, OpMaxProjection}

// Longitudinal is the stage object for cross-day registration.
type Longitudinal struct {
	ws         *stage.Workspace
	capability imaging.Capability
	logger     *slog.Logger
}

// New constructs the stage object.
func New(ws *stage.Workspace, capability imaging.Capability, logger *slog.Logger) *Longitudinal {
	return &Longitudinal{ws: ws, capability: capability, logger: logging.NewComponentLogger(logger, "longitudinal")}
}

// HealthCheck reports whether registration is possible.
func (l *Longitudinal) HealthCheck(context.Context) stage.Health {
	if l.ws == nil || l.ws.Catalog == nil || len(l.ws.Catalog.Days) < 2 {
		return stage.Unhealthy("longitudinal", "at least two day series are required")
	}
	return stage.Healthy("longitudinal")
}

// IndexTablePath returns the registration index table path.
func (l *Longitudinal) IndexTablePath() string {
	return l.ws.Path(IndexTable)
}

func (l *Longitudinal) fileSets(ctx context.Context) (mc, cells, dff catalog.FileSet, err error) {
	if mc, err = l.ws.FileSet(ctx, timeseries.SetMotionCorrect, timeseries.SuffixMotionCorrect); err != nil {
		return
	}
	if cells, err = l.ws.FileSet(ctx, timeseries.SetCellSets, timeseries.SuffixCellSets); err != nil {
		return
	}
	dff, err = l.ws.FileSet(ctx, SetDFF, SuffixDFF)
	return
}

func (l *Longitudinal) registered(ctx context.Context, cells, dff catalog.FileSet) (lrCells, lrDFF catalog.FileSet, err error) {
	suffix := SuffixRegistered + l.ws.Extension
	lrCells, err = l.ws.DerivedSet(ctx, SetLRCellSets, func() catalog.FileSet {
		return cells.Derive(SetLRCellSets, suffix, l.ws.OutputDir)
	})
	if err != nil {
		return
	}
	lrDFF, err = l.ws.DerivedSet(ctx, SetLRDFF, func() catalog.FileSet {
		return dff.Derive(SetLRDFF, suffix, l.ws.OutputDir)
	})
	return
}

// CalculateDFF derives a dF/F movie from each motion corrected recording.
func (l *Longitudinal) CalculateDFF(ctx context.Context) stage.Result {
	mc, _, dff, err := l.fileSets(ctx)
	if err != nil {
		return stage.Failure(OpCalculateDFF, err)
	}
	return stage.Run(ctx, l.logger, OpCalculateDFF, l.ws.Labels(), func(ctx context.Context, day int, _ string) (stage.Status, error) {
		pending, err := l.ws.Pending(ctx, dff, day)
		if err != nil {
			return stage.StatusFailed, err
		}
		if !pending {
			return stage.StatusSkipped, nil
		}
		inputs, err := mc.Day(day)
		if err != nil {
			return stage.StatusFailed, err
		}
		if err := stage.RequireInputs(timeseries.OpMotionCorrect, inputs...); err != nil {
			return stage.StatusFailed, err
		}
		outputs, _ := dff.Day(day)
		if err := l.capability.DeltaFOverF(ctx, inputs, outputs); err != nil {
			return stage.StatusFailed, err
		}
		return stage.StatusSucceeded, nil
	})
}

// Register aligns the flattened cell sets of every day and applies the same
// transform to the dF/F movies. It is skipped only when the index table and
// every registered output exist; otherwise leftovers are cleared and the
// registration reruns.
func (l *Longitudinal) Register(ctx context.Context) stage.Result {
	if len(l.ws.Catalog.Days) < 2 {
		return stage.Failure(OpLongitudinalRegistration, services.Wrap(services.ErrConfiguration, "longitudinal", "register",
			fmt.Sprintf("%d day series found; registration needs at least two", len(l.ws.Catalog.Days)), nil))
	}
	_, cells, dff, err := l.fileSets(ctx)
	if err != nil {
		return stage.Failure(OpLongitudinalRegistration, err)
	}
	lrCells, lrDFF, err := l.registered(ctx, cells, dff)
	if err != nil {
		return stage.Failure(OpLongitudinalRegistration, err)
	}
	table := l.IndexTablePath()
	return stage.Run(ctx, l.logger, OpLongitudinalRegistration, []string{registrationDay}, func(ctx context.Context, _ int, _ string) (stage.Status, error) {
		done, err := l.registrationDone(ctx, table, lrCells, lrDFF)
		if err != nil {
			return stage.StatusFailed, err
		}
		if done {
			return stage.StatusSkipped, nil
		}
		if err := stage.RequireInputs(timeseries.OpCNMFe, cells.Flat()...); err != nil {
			return stage.StatusFailed, err
		}
		if err := stage.RequireInputs(OpCalculateDFF, dff.Flat()...); err != nil {
			return stage.StatusFailed, err
		}
		req := imaging.RegistrationRequest{
			CellSets:       cells.Flat(),
			OutputCellSets: lrCells.Flat(),
			Movies:         dff.Flat(),
			OutputMovies:   lrDFF.Flat(),
			TableFile:      table,
		}
		if err := l.capability.LongitudinalRegistration(ctx, req); err != nil {
			return stage.StatusFailed, err
		}
		logging.WithContext(ctx, l.logger).Info("registration index table written",
			logging.String("table", table),
			logging.Int("cell_sets", len(req.CellSets)),
		)
		return stage.StatusSucceeded, nil
	})
}

// registrationDone reports whether the table and all registered outputs are
// present. When anything is missing, partial days are repaired and a stale
// table is removed so it cannot mark an incomplete run as done.
func (l *Longitudinal) registrationDone(ctx context.Context, table string, sets ...catalog.FileSet) (bool, error) {
	complete := true
	for _, set := range sets {
		for day := range set.Days {
			state, _, err := l.ws.Tracker.Inspect(set, day)
			if err != nil {
				return false, err
			}
			if state != checkpoint.StateComplete {
				complete = false
			}
		}
	}
	hasTable := checkpoint.ArtifactExists(table)
	if complete && hasTable {
		return true, nil
	}
	for _, set := range sets {
		for day := range set.Days {
			if _, err := l.ws.Pending(ctx, set, day); err != nil {
				return false, err
			}
		}
	}
	if hasTable {
		logging.WithContext(ctx, l.logger).Info("registration outputs incomplete; removing index table before rerun",
			logging.String(logging.FieldEventType, "registration_partial"),
			logging.String("table", table),
		)
		if err := os.Remove(table); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, services.Wrap(services.ErrFileSystem, "longitudinal", "register", "remove stale index table", err)
		}
	}
	return false, nil
}

// MaxProjections returns the per-day maximum projection paths.
func (l *Longitudinal) MaxProjections() []string {
	return l.ws.Artifacts(ArtifactMaxDFF + l.ws.Extension)
}

// MaxProjection writes the maximum projection of each day's registered dF/F
// movies.
func (l *Longitudinal) MaxProjection(ctx context.Context) stage.Result {
	_, cells, dff, err := l.fileSets(ctx)
	if err != nil {
		return stage.Failure(OpMaxProjection, err)
	}
	_, lrDFF, err := l.registered(ctx, cells, dff)
	if err != nil {
		return stage.Failure(OpMaxProjection, err)
	}
	outputs := l.MaxProjections()
	return stage.Run(ctx, l.logger, OpMaxProjection, l.ws.Labels(), func(ctx context.Context, day int, _ string) (stage.Status, error) {
		if checkpoint.ArtifactExists(outputs[day]) {
			return stage.StatusSkipped, nil
		}
		inputs, err := lrDFF.Day(day)
		if err != nil {
			return stage.StatusFailed, err
		}
		if err := stage.RequireInputs(OpLongitudinalRegistration, inputs...); err != nil {
			return stage.StatusFailed, err
		}
		if err := l.capability.ProjectMovie(ctx, inputs, outputs[day], imaging.ProjectionMax); err != nil {
			return stage.StatusFailed, err
		}
		return stage.StatusSucceeded, nil
	})
}
