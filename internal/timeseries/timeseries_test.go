package timeseries_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"strata/internal/catalog"
	"strata/internal/checkpoint"
	"strata/internal/config"
	"strata/internal/logging"
	"strata/internal/services"
	"strata/internal/stage"
	"strata/internal/testsupport"
	"strata/internal/timeseries"
)

var recordings = []string{
	"2023-01-01-10-00-00_a.isxd",
	"2023-01-01-10-05-00_b.isxd",
	"2023-01-02-09-00-00_c.isxd",
}

type fixture struct {
	fake *testsupport.FakeImaging
	ws   *stage.Workspace
	ts   *timeseries.Timeseries
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dataDir := testsupport.WriteRecordings(t, t.TempDir(), recordings...)
	cat, err := catalog.Build(dataDir, catalog.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	logger := logging.NewNop()
	ws := &stage.Workspace{
		Catalog:   cat,
		OutputDir: filepath.Join(dataDir, "processed"),
		Extension: ".isxd",
		Tracker:   checkpoint.New(logger),
		Logger:    logger,
	}
	fake := testsupport.NewFakeImaging()
	return fixture{fake: fake, ws: ws, ts: timeseries.New(ws, fake, config.Default().Timeseries, logger)}
}

func (f fixture) runAll(ctx context.Context) []stage.Result {
	return []stage.Result{
		f.ts.Preprocess(ctx, 0, 0),
		f.ts.BandpassFilter(ctx),
		f.ts.MeanProjection(ctx),
		f.ts.MotionCorrect(ctx),
		f.ts.CNMFe(ctx),
		f.ts.ExportCellSet(ctx),
		f.ts.EventDetection(ctx),
		f.ts.Deconvolve(ctx),
		f.ts.ExportSpikeEvents(ctx),
	}
}

func TestFullChainProducesOutputs(t *testing.T) {
	f := newFixture(t)
	for _, r := range f.runAll(context.Background()) {
		if r.Failed() {
			t.Fatalf("%s failed: %v", r.Stage, r.Error())
		}
		if got := r.Counts()[stage.StatusSucceeded]; got != 2 {
			t.Fatalf("%s succeeded %d days, want 2", r.Stage, got)
		}
	}

	wantOps := []string{
		"preprocess", "preprocess",
		"spatial-filter", "spatial-filter",
		"project-movie-mean", "project-movie-mean",
		"motion-correct", "motion-correct",
		"run-cnmfe", "run-cnmfe",
		"export-cell-set", "export-cell-set",
		"event-detection", "auto-accept-reject", "event-detection", "auto-accept-reject",
		"deconvolve-cellset", "deconvolve-cellset",
		"export-event-set", "export-event-set",
	}
	if got := f.fake.Ops(); fmt.Sprint(got) != fmt.Sprint(wantOps) {
		t.Fatalf("unexpected ops:\n got %v\nwant %v", got, wantOps)
	}

	out := f.ws.OutputDir
	for _, name := range []string{
		"2023-01-01-10-00-00_a-PP.isxd",
		"2023-01-01-10-05-00_b-PP-BP-MC.isxd",
		"2023-01-02-09-00-00_c-PP-BP-MC-cnmfe-spikes_event.isxd",
		"day_1-mean_image.isxd",
		"day_2-crop_rect.csv",
		"day_1-cnmfe-cellset.csv",
		"day_2-cnmfe-spike-events.csv",
		filepath.Join("cnmfe_tiff", "day_1-cnmfe-cellset_C0.tiff"),
	} {
		if !testsupport.Exists(filepath.Join(out, name)) {
			t.Errorf("expected %s to exist", name)
		}
	}
	if testsupport.Exists(filepath.Join(out, "day_1-cnmfe-cellset_C0.tiff")) {
		t.Error("tiff should have been moved out of the output root")
	}
	if !testsupport.Exists(filepath.Join(out, "cnmfe_tmp")) {
		t.Error("expected cnmfe temp dir")
	}
}

func TestPreprocessInputsAreDaySeries(t *testing.T) {
	f := newFixture(t)
	f.ts.Preprocess(context.Background(), 2, 4)
	calls := f.fake.CallsFor("preprocess")
	if len(calls) != 2 {
		t.Fatalf("expected one call per day, got %d", len(calls))
	}
	if len(calls[0].Inputs) != 2 || len(calls[1].Inputs) != 1 {
		t.Fatalf("unexpected per-day inputs %v / %v", calls[0].Inputs, calls[1].Inputs)
	}
	want := filepath.Join(f.ws.OutputDir, "2023-01-01-10-05-00_b-PP.isxd")
	if calls[0].Outputs[1] != want {
		t.Fatalf("output = %s, want %s", calls[0].Outputs[1], want)
	}
}

func TestRerunSkipsCompletedDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ts.Preprocess(ctx, 0, 0)
	second := f.ts.Preprocess(ctx, 0, 0)
	if got := second.Counts()[stage.StatusSkipped]; got != 2 {
		t.Fatalf("expected both days skipped, got %+v", second.Days)
	}
	if calls := f.fake.CallsFor("preprocess"); len(calls) != 2 {
		t.Fatalf("expected no new calls, got %d total", len(calls))
	}
}

func TestPartialDayIsRepairedAndRedone(t *testing.T) {
	f := newFixture(t)
	partial := filepath.Join(f.ws.OutputDir, "2023-01-01-10-00-00_a-PP.isxd")
	testsupport.WriteFile(t, partial, 4)

	result := f.ts.Preprocess(context.Background(), 0, 0)
	if result.Failed() || result.Counts()[stage.StatusSucceeded] != 2 {
		t.Fatalf("unexpected result %+v", result.Days)
	}
	if !testsupport.Exists(partial) {
		t.Fatal("rerun should recreate the repaired output")
	}
}

func TestExternalFailureRecordedAndDownstreamReportsMissingInputs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fake.Fail["spatial-filter"] = errors.New("filter crashed")

	f.ts.Preprocess(ctx, 0, 0)
	bp := f.ts.BandpassFilter(ctx)
	if !bp.Failed() || bp.Counts()[stage.StatusFailed] != 2 {
		t.Fatalf("expected both days to fail, got %+v", bp.Days)
	}
	if !errors.Is(bp.Days[0].Err, services.ErrExternalOperation) {
		t.Fatalf("expected external operation error, got %v", bp.Days[0].Err)
	}

	mean := f.ts.MeanProjection(ctx)
	if !errors.Is(mean.Days[0].Err, services.ErrConfiguration) || !strings.Contains(mean.Days[0].Err.Error(), "bandpass_filter") {
		t.Fatalf("expected missing-input configuration error, got %v", mean.Days[0].Err)
	}
}

func TestMotionCorrectRequiresMeanImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ts.Preprocess(ctx, 0, 0)
	f.ts.BandpassFilter(ctx)

	result := f.ts.MotionCorrect(ctx)
	if !errors.Is(result.Days[0].Err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", result.Days[0].Err)
	}
	if calls := f.fake.CallsFor("motion-correct"); len(calls) != 0 {
		t.Fatalf("motion correction should not run without a reference, got %d calls", len(calls))
	}
}

func TestCheckpointEventsFollowSuccessfulStages(t *testing.T) {
	f := newFixture(t)
	var names []string
	ctx := stage.WithCheckpointEmitter(context.Background(), func(name string) {
		names = append(names, name)
	})
	f.fake.Fail["spatial-filter"] = errors.New("boom")
	f.ts.Preprocess(ctx, 0, 0)
	f.ts.BandpassFilter(ctx)
	if fmt.Sprint(names) != "[preprocess]" {
		t.Fatalf("unexpected checkpoints %v", names)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	if h := f.ts.HealthCheck(context.Background()); !h.Ready {
		t.Fatalf("expected ready, got %+v", h)
	}
	empty := timeseries.New(&stage.Workspace{Catalog: &catalog.Catalog{}}, f.fake, config.Default().Timeseries, nil)
	if h := empty.HealthCheck(context.Background()); h.Ready {
		t.Fatal("expected unhealthy with no days")
	}
}
