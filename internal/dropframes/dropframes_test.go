package dropframes_test

import (
	"context"
	"path/filepath"
	"testing"

	"strata/internal/catalog"
	"strata/internal/corruption"
	"strata/internal/dropframes"
	"strata/internal/imaging"
	"strata/internal/logging"
	"strata/internal/stage"
	"strata/internal/testsupport"
)

func frames(n int, corrupt ...int) []imaging.Frame {
	out := make([]imaging.Frame, n)
	for i := range out {
		px := make([]float32, 16)
		for j := range px {
			px[j] = float32(j)
		}
		out[i] = imaging.Frame{Width: 4, Height: 4, Pixels: px}
	}
	for _, idx := range corrupt {
		out[idx] = imaging.Frame{}
	}
	return out
}

func TestWorkflowTrimsThenQuarantines(t *testing.T) {
	dir := t.TempDir()
	corruptName := "2023-01-01-10-00-00.isxd"
	cleanName := "2023-01-02-10-00-00.isxd"
	testsupport.WriteRecordings(t, dir, corruptName, cleanName)

	fake := testsupport.NewFakeImaging()
	fake.SetMovie(filepath.Join(dir, corruptName), frames(10, 3, 4))
	fake.SetMovie(filepath.Join(dir, cleanName), frames(10))
	detector := corruption.New(fake, corruption.Options{
		ROI:     corruption.Rect{Width: 4, Height: 4},
		Sampler: func(int, int) []int { return []int{0, 1} },
	}, logging.NewNop())
	wf := dropframes.New(dir, "corrupt_recordings", catalog.Options{}, detector, logging.NewNop())

	var checkpoints []string
	ctx := stage.WithCheckpointEmitter(context.Background(), func(name string) { checkpoints = append(checkpoints, name) })

	drop := wf.DropFrames(ctx)
	if drop.Failed() || len(drop.Days) != 2 {
		t.Fatalf("unexpected drop result %+v", drop)
	}
	if !testsupport.Exists(filepath.Join(dir, "2023-01-01-10-00-00_processed.isxd")) {
		t.Fatal("expected trimmed copy")
	}

	quarantine := wf.QuarantineDuplicates(ctx)
	if quarantine.Failed() || len(quarantine.Days) != 1 || quarantine.Days[0].Day != corruptName {
		t.Fatalf("unexpected quarantine result %+v", quarantine)
	}
	if !testsupport.Exists(filepath.Join(dir, "corrupt_recordings", corruptName)) {
		t.Fatal("raw recording should be quarantined")
	}
	if testsupport.Exists(filepath.Join(dir, corruptName)) {
		t.Fatal("raw recording should no longer be in the data directory")
	}
	if len(wf.Quarantined) != 1 {
		t.Fatalf("expected one quarantined path, got %v", wf.Quarantined)
	}
	if len(checkpoints) != 2 || checkpoints[0] != dropframes.OpDropFrames || checkpoints[1] != dropframes.OpQuarantineDuplicates {
		t.Fatalf("unexpected checkpoints %v", checkpoints)
	}

	again := wf.DropFrames(context.Background())
	if len(again.Days) != 1 {
		t.Fatalf("second batch should only see the clean recording, got %+v", again.Days)
	}
}

func TestDropFramesRecordsSkippedFiles(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteRecordings(t, dir, "2023-01-01-10-00-00.isxd")
	detector := corruption.New(testsupport.NewFakeImaging(), corruption.Options{}, logging.NewNop())
	wf := dropframes.New(dir, "corrupt_recordings", catalog.Options{}, detector, logging.NewNop())

	result := wf.DropFrames(context.Background())
	if result.Err != nil {
		t.Fatalf("batch error should be nil, got %v", result.Err)
	}
	if len(result.Days) != 1 || result.Days[0].Status != stage.StatusFailed {
		t.Fatalf("unreadable recording should be recorded as failed, got %+v", result.Days)
	}
}
