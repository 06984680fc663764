package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"strata/internal/fileutil"
	"strata/internal/logging"
	"strata/internal/services"
)

// ResolveDuplicates moves every raw recording shadowed by a processed variant
// into quarantineDir (relative to the data directory unless absolute). It
// returns the destination paths of moved files. Move failures are collected
// and the remaining duplicates are still attempted; failed entries stay in
// c.Duplicates.
func ResolveDuplicates(ctx context.Context, c *Catalog, quarantineDir string, logger *slog.Logger) ([]string, error) {
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "catalog"))
	if len(c.Duplicates) == 0 {
		return nil, nil
	}
	target := quarantineDir
	if !filepath.IsAbs(target) {
		target = filepath.Join(c.DataDir, target)
	}

	var moved []string
	var remaining []Recording
	var errs []error
	for _, dup := range c.Duplicates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			remaining = append(remaining, dup)
			continue
		}
		src := filepath.Join(c.DataDir, dup.Name)
		dst := filepath.Join(target, dup.Name)
		if err := fileutil.Move(src, dst); err != nil {
			wrapped := services.Wrap(services.ErrFileSystem, "catalog", "quarantine", fmt.Sprintf("move %s", dup.Name), err)
			logging.WarnWithContext(logger, "duplicate quarantine failed", "duplicate_quarantine_failed",
				logging.String("source", src),
				logging.Error(err),
				logging.String(logging.FieldImpact, "raw duplicate remains beside processed recording"),
			)
			errs = append(errs, wrapped)
			remaining = append(remaining, dup)
			continue
		}
		logger.Info("duplicate recording quarantined",
			logging.String(logging.FieldEventType, "duplicate_quarantined"),
			logging.String("source", src),
			logging.String("destination", dst),
		)
		moved = append(moved, dst)
	}
	c.Duplicates = remaining
	return moved, errors.Join(errs...)
}
