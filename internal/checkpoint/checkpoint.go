// Package checkpoint decides, from the output directory listing alone,
// whether a stage has finished for a day, and repairs partial output so a
// rerun starts from a clean slate.
//
// State is recomputed on every call. Repair granularity is the whole day:
// when only some of a day's outputs exist they are all removed and the day is
// reported incomplete.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"strata/internal/catalog"
	"strata/internal/logging"
	"strata/internal/services"
)

// State is the derived completion status of a stage for one day.
type State string

const (
	StateComplete State = "complete"
	StatePartial  State = "partial"
	StateNone     State = "none"
)

// Tracker evaluates and repairs stage checkpoints.
type Tracker struct {
	logger *slog.Logger
	remove func(string) error
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRemover replaces os.Remove for partial output cleanup.
func WithRemover(remove func(string) error) Option {
	return func(t *Tracker) {
		if remove != nil {
			t.remove = remove
		}
	}
}

// New constructs a tracker that logs repair activity to logger.
func New(logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{logger: logging.NewComponentLogger(logger, "checkpoint"), remove: os.Remove}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Inspect reports the state of fs for day and the expected paths that are
// present, without touching the filesystem.
func (t *Tracker) Inspect(fileSet catalog.FileSet, day int) (State, []string, error) {
	expected, err := fileSet.Day(day)
	if err != nil {
		return "", nil, err
	}
	listing, err := listDirs(expected)
	if err != nil {
		return "", nil, services.Wrap(services.ErrFileSystem, "checkpoint", "inspect", fileSet.Name, err)
	}
	present := make([]string, 0, len(expected))
	for _, path := range expected {
		if _, ok := listing[path]; ok {
			present = append(present, path)
		}
	}
	switch len(present) {
	case len(expected):
		return StateComplete, present, nil
	case 0:
		return StateNone, nil, nil
	default:
		return StatePartial, present, nil
	}
}

// IsStageComplete reports whether every expected output for day exists. A
// partial day has its present outputs deleted and reports false. Deletion
// failures are logged, joined, and returned as ErrFileSystem alongside false;
// the remaining files are still attempted.
func (t *Tracker) IsStageComplete(ctx context.Context, fileSet catalog.FileSet, day int) (bool, error) {
	state, present, err := t.Inspect(fileSet, day)
	if err != nil {
		return false, err
	}
	logger := logging.WithContext(ctx, t.logger)
	switch state {
	case StateComplete:
		logger.Debug("checkpoint complete", logging.Args(logging.DecisionAttrs("checkpoint", "skip", "all outputs present")...)...)
		return true, nil
	case StateNone:
		return false, nil
	}

	logger.Info("partial stage output found; removing before rerun",
		logging.String(logging.FieldEventType, "checkpoint_partial"),
		logging.String("file_set", fileSet.Name),
		logging.Int("present", len(present)),
		logging.Int("expected", len(fileSet.Days[day])),
	)
	var errs []error
	for _, path := range present {
		if err := t.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(logger, "partial output delete failed", "checkpoint_delete_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check output directory permissions"),
				logging.String(logging.FieldImpact, "stale output may be mistaken for progress"),
			)
			errs = append(errs, services.Wrap(services.ErrFileSystem, "checkpoint", "repair", fmt.Sprintf("remove %s", path), err))
			continue
		}
		logger.Info("partial output deleted", logging.String("path", path))
	}
	return false, errors.Join(errs...)
}

// ArtifactExists reports whether a single per-day artifact is present.
func ArtifactExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// listDirs reads each distinct parent directory of paths once and returns
// the set of existing file paths. A missing directory contributes nothing.
func listDirs(paths []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	seen := make(map[string]struct{})
	for _, path := range paths {
		dir := filepath.Dir(path)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			found[filepath.Join(dir, entry.Name())] = struct{}{}
		}
	}
	return found, nil
}
