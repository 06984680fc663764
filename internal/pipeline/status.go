package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"strata/internal/catalog"
	"strata/internal/checkpoint"
	"strata/internal/config"
	"strata/internal/ledger"
	"strata/internal/logging"
	"strata/internal/longitudinal"
	"strata/internal/timeseries"
)

// StageState is the on-disk checkpoint state of one stage for one day.
type StageState struct {
	Stage    string
	Day      string
	State    checkpoint.State
	Present  int
	Expected int
}

// StatusReport is a read-only snapshot of a data directory.
type StatusReport struct {
	DataDir   string
	OutputDir string
	Catalog   *catalog.Catalog
	// Frozen reports whether the catalog came from the ledger.
	Frozen   bool
	FrozenAt time.Time
	States   []StageState
	LastRuns []ledger.StageRun
}

// statusSets lists the per-recording file sets the status view inspects.
func statusSets() []struct{ Name, Suffix string } {
	out := append([]struct{ Name, Suffix string }(nil), timeseries.Sets...)
	return append(out, struct{ Name, Suffix string }{longitudinal.SetDFF, longitudinal.SuffixDFF})
}

// Inspect builds a StatusReport without taking the lock, repairing partial
// outputs, or writing to the ledger. A run may be in progress.
func Inspect(ctx context.Context, cfg *config.Config, dataDir string) (StatusReport, error) {
	abs, err := resolveDataDir(dataDir)
	if err != nil {
		return StatusReport{}, err
	}
	report := StatusReport{DataDir: abs, OutputDir: cfg.OutputDir(abs)}

	var store *ledger.Store
	if _, err := os.Stat(filepath.Join(report.OutputDir, ledger.FileName)); err == nil {
		store, err = ledger.Open(ctx, report.OutputDir)
		if err != nil {
			return StatusReport{}, err
		}
		defer store.Close()
	} else if !errors.Is(err, os.ErrNotExist) {
		return StatusReport{}, err
	}

	if store != nil {
		cat, ok, err := store.LoadCatalog(ctx)
		if err != nil {
			return StatusReport{}, err
		}
		if ok {
			report.Catalog = cat
			report.Frozen = true
			report.FrozenAt, _, _ = store.FrozenAt(ctx)
		}
		if report.LastRuns, err = store.LatestStageRuns(ctx); err != nil {
			return StatusReport{}, err
		}
	}
	if report.Catalog == nil {
		if report.Catalog, err = catalog.Build(abs, Naming(cfg)); err != nil {
			return StatusReport{}, err
		}
	}

	tracker := checkpoint.New(logging.NewNop())
	for _, set := range statusSets() {
		fs, err := lookupFileSet(ctx, store, report.Catalog, set.Name, set.Suffix+cfg.Recordings.Extension, report.OutputDir)
		if err != nil {
			return StatusReport{}, err
		}
		for day, label := range report.Catalog.Labels() {
			state, present, err := tracker.Inspect(fs, day)
			if err != nil {
				return StatusReport{}, err
			}
			expected, _ := fs.Day(day)
			report.States = append(report.States, StageState{
				Stage:    set.Name,
				Day:      label,
				State:    state,
				Present:  len(present),
				Expected: len(expected),
			})
		}
	}
	return report, nil
}

// lookupFileSet prefers a frozen file set that still matches the catalog and
// otherwise derives one without storing it.
func lookupFileSet(ctx context.Context, store *ledger.Store, cat *catalog.Catalog, name, suffix, outputDir string) (catalog.FileSet, error) {
	if store != nil {
		fs, ok, err := store.LoadFileSet(ctx, name)
		if err != nil {
			return catalog.FileSet{}, err
		}
		if ok && len(fs.Days) == len(cat.Days) {
			return fs, nil
		}
	}
	return cat.StageFiles(name, suffix, outputDir), nil
}
