package corruption_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"strata/internal/corruption"
	"strata/internal/imaging"
	"strata/internal/logging"
	"strata/internal/services"
	"strata/internal/testsupport"
)

const side = 8

func cleanFrame() imaging.Frame {
	px := make([]float32, side*side)
	for i := range px {
		px[i] = float32(i)
	}
	return imaging.Frame{Width: side, Height: side, Pixels: px}
}

func blackFrame() imaging.Frame {
	px := make([]float32, side*side)
	px[0] = 1
	return imaging.Frame{Width: side, Height: side, Pixels: px}
}

func whiteFrame() imaging.Frame {
	px := make([]float32, side*side)
	for i := range px {
		px[i] = 255
	}
	px[0] = 0
	return imaging.Frame{Width: side, Height: side, Pixels: px}
}

// movie builds n frames with the given indices replaced by corrupt variants
// that cycle through black, white, and unreadable frames.
func movie(n int, corrupt ...int) []imaging.Frame {
	frames := make([]imaging.Frame, n)
	for i := range frames {
		frames[i] = cleanFrame()
	}
	for k, idx := range corrupt {
		switch k % 3 {
		case 0:
			frames[idx] = blackFrame()
		case 1:
			frames[idx] = whiteFrame()
		default:
			frames[idx] = imaging.Frame{}
		}
	}
	return frames
}

func span(from, to int) []int {
	var out []int
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func firstFrames(numFrames, k int) []int {
	return []int{0, 1, 2}
}

func newDetector(fake *testsupport.FakeImaging) *corruption.Detector {
	return corruption.New(fake, corruption.Options{
		ROI:             corruption.Rect{Left: 0, Top: 0, Width: side, Height: side},
		SampleSize:      3,
		PaddingFraction: 0.001,
		WhiteBins:       15,
		Workers:         2,
		Sampler:         firstFrames,
	}, logging.NewNop())
}

func TestHistogramNormalisesToFullRange(t *testing.T) {
	hist := corruption.Histogram(cleanFrame())
	if hist[0] != 1 || hist[255] != 1 {
		t.Fatalf("expected extremes to occupy one bin each, got %d and %d", hist[0], hist[255])
	}
	total := 0
	for _, c := range hist {
		total += c
	}
	if total != side*side {
		t.Fatalf("histogram total %d, want %d", total, side*side)
	}

	flat := imaging.Frame{Width: 2, Height: 2, Pixels: []float32{7, 7, 7, 7}}
	if got := corruption.Histogram(flat); got[0] != 4 {
		t.Fatalf("flat frame should land in bin 0, got %d", got[0])
	}
}

func TestComputeThresholds(t *testing.T) {
	fake := testsupport.NewFakeImaging()
	fake.SetMovie("m.isxd", movie(10))
	d := newDetector(fake)

	th, err := d.ComputeThresholds(context.Background(), "m.isxd", 10)
	if err != nil {
		t.Fatalf("ComputeThresholds: %v", err)
	}
	padding := float64(side*side) * 0.001
	// Values 60..63 fall into the top 15 bins of a 0..63 ramp.
	wantWhite := 4.0/15 + padding
	if math.Abs(th.Dark-(1+padding)) > 1e-9 || math.Abs(th.White-wantWhite) > 1e-9 || th.Samples != 3 {
		t.Fatalf("unexpected thresholds %+v", th)
	}
}

func TestComputeThresholdsNeedsReadableSample(t *testing.T) {
	fake := testsupport.NewFakeImaging()
	fake.SetMovie("m.isxd", make([]imaging.Frame, 3))
	d := newDetector(fake)
	if _, err := d.ComputeThresholds(context.Background(), "m.isxd", 3); !errors.Is(err, services.ErrExternalOperation) {
		t.Fatalf("expected external operation error, got %v", err)
	}
}

func TestScanMovieFindsSegments(t *testing.T) {
	corrupt := append(span(5, 9), 20)
	fake := testsupport.NewFakeImaging()
	fake.SetMovie("m.isxd", movie(30, corrupt...))

	segments, err := newDetector(fake).ScanMovie(context.Background(), "m.isxd")
	if err != nil {
		t.Fatalf("ScanMovie: %v", err)
	}
	if got := fmt.Sprint(segments); got != "[{5 9} {20 20}]" {
		t.Fatalf("unexpected segments %s", got)
	}
}

func TestScanMovieCleanRecordingSkipsTrim(t *testing.T) {
	fake := testsupport.NewFakeImaging()
	fake.SetMovie("m.isxd", movie(30))
	d := newDetector(fake)

	segments, err := d.ScanMovie(context.Background(), "m.isxd")
	if err != nil {
		t.Fatalf("ScanMovie: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("expected no segments, got %v", segments)
	}
	out, err := d.Trim(context.Background(), "m.isxd", segments)
	if err != nil || out != "" {
		t.Fatalf("Trim on clean recording = %q, %v", out, err)
	}
	if calls := fake.CallsFor("trim-movie"); len(calls) != 0 {
		t.Fatalf("expected no trim call, got %d", len(calls))
	}
}

func TestScanMovieClosesSegmentAtLastFrame(t *testing.T) {
	fake := testsupport.NewFakeImaging()
	fake.SetMovie("m.isxd", movie(30, span(25, 29)...))

	segments, err := newDetector(fake).ScanMovie(context.Background(), "m.isxd")
	if err != nil {
		t.Fatalf("ScanMovie: %v", err)
	}
	if got := fmt.Sprint(segments); got != "[{25 29}]" {
		t.Fatalf("unexpected segments %s", got)
	}
}

func TestScanMovieHonoursCancellation(t *testing.T) {
	fake := testsupport.NewFakeImaging()
	fake.SetMovie("m.isxd", movie(30))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newDetector(fake).ScanMovie(ctx, "m.isxd"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSegmentsAndMerge(t *testing.T) {
	mask := make([]bool, 12)
	for _, i := range []int{0, 1, 4, 11} {
		mask[i] = true
	}
	if got := fmt.Sprint(corruption.Segments(mask)); got != "[{0 1} {4 4} {11 11}]" {
		t.Fatalf("unexpected segments %s", got)
	}
	if got := corruption.Segments(make([]bool, 5)); got != nil {
		t.Fatalf("clean mask should yield nil, got %v", got)
	}

	merged := corruption.Merge([]imaging.Segment{
		{Start: 20, End: 20},
		{Start: 5, End: 9},
		{Start: 8, End: 12},
		{Start: 13, End: 14},
		{Start: 3, End: 1},
	})
	if got := fmt.Sprint(merged); got != "[{1 3} {5 14} {20 20}]" {
		t.Fatalf("unexpected merge %s", got)
	}
}

func TestTrimWritesProcessedCopy(t *testing.T) {
	fake := testsupport.NewFakeImaging()
	dir := t.TempDir()
	path := filepath.Join(dir, "2023-01-01-10-00-00.isxd")
	out, err := newDetector(fake).Trim(context.Background(), path, []imaging.Segment{{Start: 5, End: 9}})
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if want := filepath.Join(dir, "2023-01-01-10-00-00_processed.isxd"); out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
	calls := fake.CallsFor("trim-movie")
	if len(calls) != 1 || fmt.Sprint(calls[0].Segments) != "[{5 9}]" {
		t.Fatalf("unexpected trim calls %+v", calls)
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"2023-01-01-10-00-00.isxd",
		"2023-01-01-11-00-00.isxd",
		"2023-01-02-10-00-00_processed.isxd",
		"2023-01-03-10-00-00.isxd",
		"2023-01-03-10-00-00_processed.isxd",
		"2023-01-04-10-00-00.isxd",
		"notes.txt",
	}
	testsupport.WriteRecordings(t, dir, names...)
	fake := testsupport.NewFakeImaging()
	fake.SetMovie(filepath.Join(dir, names[0]), movie(30, span(5, 9)...))
	fake.SetMovie(filepath.Join(dir, names[1]), movie(30))
	// names[5] has no movie registered and fails to open.

	d := newDetector(fake)
	candidates, err := d.Candidates(dir)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	want := fmt.Sprint([]string{filepath.Join(dir, names[0]), filepath.Join(dir, names[1]), filepath.Join(dir, names[5])})
	if fmt.Sprint(candidates) != want {
		t.Fatalf("candidates = %v, want %v", candidates, want)
	}

	report, err := d.RunBatch(context.Background(), dir)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if report.Trimmed() != 1 || report.Clean() != 1 || len(report.Skipped()) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if skipped := report.Skipped()[0]; skipped.Path != filepath.Join(dir, names[5]) {
		t.Fatalf("unexpected skipped file %s", skipped.Path)
	}
	if !testsupport.Exists(filepath.Join(dir, "2023-01-01-10-00-00_processed.isxd")) {
		t.Fatal("expected trimmed copy on disk")
	}
}

func TestRunBatchMissingDirectory(t *testing.T) {
	d := newDetector(testsupport.NewFakeImaging())
	if _, err := d.RunBatch(context.Background(), filepath.Join(t.TempDir(), "missing")); !errors.Is(err, services.ErrFileSystem) {
		t.Fatalf("expected file system error, got %v", err)
	}
}
