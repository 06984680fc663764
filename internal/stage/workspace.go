package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"strata/internal/catalog"
	"strata/internal/checkpoint"
	"strata/internal/logging"
	"strata/internal/services"
)

// FileSetResolver returns a stage's frozen file set, deriving and storing it
// on first use.
type FileSetResolver interface {
	ResolveFileSet(ctx context.Context, name string, derive func() catalog.FileSet) (catalog.FileSet, error)
}

// Workspace is what every stage object shares: the day series, the output
// directory, and the checkpoint tracker.
type Workspace struct {
	Catalog   *catalog.Catalog
	OutputDir string
	Extension string
	// Sets freezes derived file sets. When nil, file sets are derived on
	// every call.
	Sets    FileSetResolver
	Tracker *checkpoint.Tracker
	Logger  *slog.Logger
}

// Labels returns the day labels in catalog order.
func (w *Workspace) Labels() []string {
	return w.Catalog.Labels()
}

// FileSet returns the named stage file set whose entries are
// <stem(recording)><suffix><extension> under the output directory.
func (w *Workspace) FileSet(ctx context.Context, name, suffix string) (catalog.FileSet, error) {
	derive := func() catalog.FileSet {
		return w.Catalog.StageFiles(name, suffix+w.Extension, w.OutputDir)
	}
	if w.Sets == nil {
		return derive(), nil
	}
	fs, err := w.Sets.ResolveFileSet(ctx, name, derive)
	if err != nil {
		return catalog.FileSet{}, err
	}
	if len(fs.Days) != len(w.Catalog.Days) {
		return catalog.FileSet{}, services.Wrap(services.ErrConfiguration, "stage", "file set",
			fmt.Sprintf("frozen file set %q has %d days but catalog has %d; refresh the catalog", name, len(fs.Days), len(w.Catalog.Days)), nil)
	}
	return fs, nil
}

// DerivedSet returns a file set built from another set's entries, frozen
// under name like FileSet.
func (w *Workspace) DerivedSet(ctx context.Context, name string, derive func() catalog.FileSet) (catalog.FileSet, error) {
	if w.Sets == nil {
		return derive(), nil
	}
	return w.Sets.ResolveFileSet(ctx, name, derive)
}

// Artifacts returns the per-day summary artifact paths <label><suffix>.
func (w *Workspace) Artifacts(suffix string) []string {
	return w.Catalog.DayArtifacts(suffix, w.OutputDir)
}

// Path joins name onto the output directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.OutputDir, name)
}

// EnsureOutputDir creates the output directory if needed.
func (w *Workspace) EnsureOutputDir() error {
	if err := os.MkdirAll(w.OutputDir, 0o755); err != nil {
		return services.Wrap(services.ErrFileSystem, "stage", "output dir", w.OutputDir, err)
	}
	return nil
}

// Pending reports whether day still needs work for fs. A partial day is
// repaired by the tracker first. When repair cannot remove every leftover the
// day is still treated as pending, since rerunning overwrites the outputs.
func (w *Workspace) Pending(ctx context.Context, fs catalog.FileSet, day int) (bool, error) {
	done, err := w.Tracker.IsStageComplete(ctx, fs, day)
	if err != nil {
		if errors.Is(err, services.ErrFileSystem) {
			logging.WarnWithContext(logging.WithContext(ctx, w.Logger), "checkpoint repair incomplete", "checkpoint_repair_incomplete",
				logging.String("file_set", fs.Name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stage reruns over leftover files"),
			)
			return true, nil
		}
		return false, err
	}
	return !done, nil
}

// RequireInputs fails with ErrConfiguration naming the producer stage when
// any input path is missing.
func RequireInputs(producer string, paths ...string) error {
	for _, path := range paths {
		if !checkpoint.ArtifactExists(path) {
			return services.Wrap(services.ErrConfiguration, "stage", "inputs",
				fmt.Sprintf("%s missing; run %s first", filepath.Base(path), producer), nil)
		}
	}
	return nil
}
