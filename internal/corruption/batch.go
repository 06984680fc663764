package corruption

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"strata/internal/catalog"
	"strata/internal/imaging"
	"strata/internal/logging"
	"strata/internal/services"
	"strata/internal/workerpool"
)

// ErrNotScanned marks candidates the batch never reached because it was
// cancelled.
var ErrNotScanned = errors.New("recording not scanned")

// FileResult is the outcome of scanning one recording.
type FileResult struct {
	Path     string
	Segments []imaging.Segment
	// Output is the trimmed copy; empty when the recording was clean or failed.
	Output string
	Err    error
}

// BatchReport collects per-file results in candidate order.
type BatchReport struct {
	Files []FileResult
}

// Trimmed returns the number of recordings that received a processed copy.
func (r BatchReport) Trimmed() int {
	n := 0
	for _, f := range r.Files {
		if f.Output != "" {
			n++
		}
	}
	return n
}

// Clean returns the number of recordings scanned without any corrupt frame.
func (r BatchReport) Clean() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil && len(f.Segments) == 0 {
			n++
		}
	}
	return n
}

// Skipped returns the results that failed.
func (r BatchReport) Skipped() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Candidates lists recordings in dir eligible for scanning: matching
// extension, not already processed, and without an existing processed copy.
func (d *Detector) Candidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrFileSystem, "corruption", "list", dir, err)
	}
	naming := d.opts.Naming
	if naming.Extension == "" {
		naming.Extension = ".isxd"
	}
	if naming.ProcessedMarker == "" {
		naming.ProcessedMarker = "_processed"
	}
	present := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		present[entry.Name()] = struct{}{}
	}
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), strings.ToLower(naming.Extension)) {
			continue
		}
		if strings.Contains(name, naming.ProcessedMarker) {
			continue
		}
		if _, ok := present[catalog.ProcessedName(name, naming)]; ok {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// RunBatch scans and trims every candidate in dir on a fixed-size pool.
// A failure on one recording is logged and recorded in the report; it never
// stops the others. The returned error is non-nil only when the directory
// cannot be listed or ctx ends the batch early.
func (d *Detector) RunBatch(ctx context.Context, dir string) (BatchReport, error) {
	files, err := d.Candidates(dir)
	if err != nil {
		return BatchReport{}, err
	}
	logger := logging.WithContext(ctx, d.logger)
	logger.Info("frame drop batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("files", len(files)),
		logging.Int("workers", d.opts.Workers),
	)

	report := BatchReport{Files: make([]FileResult, len(files))}
	for i, path := range files {
		report.Files[i] = FileResult{Path: path, Err: ErrNotScanned}
	}
	pool := workerpool.New(min(d.opts.Workers, max(len(files), 1)))
	defer pool.Close()

	runErr := pool.Go(ctx, len(files), func(i int) {
		path := files[i]
		result := FileResult{Path: path}
		segments, err := d.ScanMovie(ctx, path)
		if err == nil {
			result.Segments = segments
			result.Output, err = d.Trim(ctx, path, segments)
		}
		if err != nil {
			result.Err = err
			logging.WarnWithContext(logger, "recording skipped", "batch_file_skipped",
				logging.String("file", filepath.Base(path)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "verify the recording opens in the imaging tools"),
				logging.String(logging.FieldImpact, "recording left untrimmed"),
			)
		} else if result.Output == "" {
			logger.Info("no dropped frames", logging.String("file", filepath.Base(path)))
		}
		report.Files[i] = result
	})

	logger.Info("frame drop batch complete",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("trimmed", report.Trimmed()),
		logging.Int("clean", report.Clean()),
		logging.Int("skipped", len(report.Skipped())),
	)
	if runErr == nil {
		runErr = ctx.Err()
	}
	return report, runErr
}
