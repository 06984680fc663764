package stage_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"strata/internal/logging"
	"strata/internal/services"
	"strata/internal/stage"
)

func TestResultRecordForcesFailure(t *testing.T) {
	var r stage.Result
	r.Record("day_1", stage.StatusSucceeded, nil)
	r.Record("day_2", stage.StatusSucceeded, errors.New("exit 1"))
	if !r.Failed() {
		t.Fatal("expected failed result")
	}
	if r.Days[1].Status != stage.StatusFailed {
		t.Fatalf("error should force failed status, got %s", r.Days[1].Status)
	}
	if err := r.Error(); err == nil || !strings.Contains(err.Error(), "day_2: exit 1") {
		t.Fatalf("unexpected joined error: %v", err)
	}
}

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"motion_correct":      "Motion Correct",
		"export_spike_events": "Export Spike Events",
		"cnmfe":               "Cnmfe",
	}
	for in, want := range cases {
		if got := stage.Label(in); got != want {
			t.Fatalf("Label(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEmitCheckpoint(t *testing.T) {
	var got []string
	ctx := stage.WithCheckpointEmitter(context.Background(), func(name string) { got = append(got, name) })
	stage.EmitCheckpoint(ctx, "motion_correct")
	stage.EmitCheckpoint(context.Background(), "ignored")
	if len(got) != 1 || got[0] != "motion_correct" {
		t.Fatalf("unexpected checkpoints %v", got)
	}
}

func TestForEachDayCollectsOutcomes(t *testing.T) {
	labels := []string{"day_1", "day_2", "day_3"}
	var stamped []string
	result := stage.ForEachDay(context.Background(), logging.NewNop(), "preprocess", labels,
		func(ctx context.Context, day int, label string) (stage.Status, error) {
			d, _ := services.DayFromContext(ctx)
			s, _ := services.StageFromContext(ctx)
			stamped = append(stamped, s+"/"+d)
			switch day {
			case 0:
				return stage.StatusSkipped, nil
			case 1:
				return stage.StatusFailed, services.Wrap(services.ErrExternalOperation, "imaging", "preprocess", "", errors.New("boom"))
			default:
				return stage.StatusSucceeded, nil
			}
		})

	if result.Stage != "preprocess" || len(result.Days) != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	counts := result.Counts()
	if counts[stage.StatusSkipped] != 1 || counts[stage.StatusFailed] != 1 || counts[stage.StatusSucceeded] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if stamped[2] != "preprocess/day_3" {
		t.Fatalf("context not stamped: %v", stamped)
	}
	if !errors.Is(result.Error(), services.ErrExternalOperation) {
		t.Fatalf("expected external error, got %v", result.Error())
	}
}

func TestForEachDayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	result := stage.ForEachDay(ctx, logging.NewNop(), "bandpass", []string{"day_1", "day_2"},
		func(context.Context, int, string) (stage.Status, error) {
			calls++
			cancel()
			return stage.StatusSucceeded, nil
		})
	if calls != 1 {
		t.Fatalf("expected one call before cancellation, got %d", calls)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Fatalf("expected canceled stage error, got %v", result.Err)
	}
}

func TestHealthString(t *testing.T) {
	if got := stage.Healthy("timeseries").String(); got != "timeseries: ready" {
		t.Fatalf("unexpected healthy string %q", got)
	}
	if got := stage.Unhealthy("dropframes", "detector not configured").String(); got != "dropframes: detector not configured" {
		t.Fatalf("unexpected unhealthy string %q", got)
	}
}
