package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"strata/internal/catalog"
	"strata/internal/checkpoint"
	"strata/internal/config"
	"strata/internal/ledger"
	"strata/internal/logging"
	"strata/internal/services"
	"strata/internal/stage"
)

// LockFileName is the advisory lock created inside the output directory.
const LockFileName = ".strata.lock"

// ErrLocked reports that another process holds the output directory.
var ErrLocked = errors.New("output directory is locked by another strata process")

// Session is exclusive access to one data directory's output folder.
type Session struct {
	cfg       *config.Config
	dataDir   string
	outputDir string
	lock      *flock.Flock
	store     *ledger.Store
	logger    *slog.Logger
}

// Naming returns the recording naming options derived from cfg.
func Naming(cfg *config.Config) catalog.Options {
	return catalog.Options{
		Extension:       cfg.Recordings.Extension,
		ProcessedMarker: cfg.Recordings.ProcessedMarker,
		DayOrder:        cfg.Recordings.DayOrder,
	}
}

// Open acquires the output directory lock and opens the ledger.
func Open(ctx context.Context, cfg *config.Config, dataDir string, logger *slog.Logger) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires configuration")
	}
	abs, err := resolveDataDir(dataDir)
	if err != nil {
		return nil, err
	}
	outputDir := cfg.OutputDir(abs)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrFileSystem, "pipeline", "open", "create output directory", err)
	}

	lockPath := filepath.Join(outputDir, LockFileName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
	}

	store, err := ledger.Open(ctx, outputDir)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	logger = logging.NewComponentLogger(logger, "pipeline")
	logger.Debug("session opened", logging.String("lock", lockPath), logging.String("ledger", store.Path()))
	return &Session{
		cfg:       cfg,
		dataDir:   abs,
		outputDir: outputDir,
		lock:      lock,
		store:     store,
		logger:    logger,
	}, nil
}

func resolveDataDir(dataDir string) (string, error) {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "pipeline", "open", "resolve data directory", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", services.Wrap(services.ErrFileSystem, "pipeline", "open", abs, err)
	}
	if !info.IsDir() {
		return "", services.Wrap(services.ErrConfiguration, "pipeline", "open", abs+" is not a directory", nil)
	}
	return abs, nil
}

// Close releases the ledger and the lock.
func (s *Session) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			logging.WarnWithContext(s.logger, "failed to release output lock", "lock_release_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale lock file left behind"),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) DataDir() string        { return s.dataDir }
func (s *Session) OutputDir() string      { return s.outputDir }
func (s *Session) Store() *ledger.Store   { return s.store }
func (s *Session) Config() *config.Config { return s.cfg }

// Catalog returns the frozen catalog or builds and freezes a new one.
func (s *Session) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	cat, frozen, err := s.store.ResolveCatalog(ctx, func() (*catalog.Catalog, error) {
		return catalog.Build(s.dataDir, Naming(s.cfg))
	})
	if err != nil {
		return nil, err
	}
	result := "built"
	reason := "no frozen catalog"
	if frozen {
		result = "reused"
		reason = "frozen catalog present"
	}
	s.logger.Info("catalog resolved",
		logging.Args(append(logging.DecisionAttrs("catalog", result, reason),
			logging.Int("days", len(cat.Days)),
			logging.Int("recordings", cat.Total()),
			logging.Int("duplicates", len(cat.Duplicates)),
		)...)...,
	)
	return cat, nil
}

// RefreshCatalog drops the frozen catalog and every frozen file set.
func (s *Session) RefreshCatalog(ctx context.Context) error {
	if err := s.store.DropCatalog(ctx); err != nil {
		return err
	}
	s.logger.Info("frozen catalog dropped", logging.String(logging.FieldEventType, "catalog_refresh"))
	return nil
}

// Workspace builds the shared stage workspace over the frozen catalog.
func (s *Session) Workspace(ctx context.Context) (*stage.Workspace, error) {
	cat, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return &stage.Workspace{
		Catalog:   cat,
		OutputDir: s.outputDir,
		Extension: s.cfg.Recordings.Extension,
		Sets:      s.store,
		Tracker:   checkpoint.New(s.logger),
		Logger:    s.logger,
	}, nil
}

// QuarantineDir returns the absolute quarantine folder for the data directory.
func (s *Session) QuarantineDir() string {
	if filepath.IsAbs(s.cfg.Recordings.QuarantineDir) {
		return s.cfg.Recordings.QuarantineDir
	}
	return filepath.Join(s.dataDir, s.cfg.Recordings.QuarantineDir)
}
