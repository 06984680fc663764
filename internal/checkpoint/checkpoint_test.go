package checkpoint_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"strata/internal/catalog"
	"strata/internal/checkpoint"
	"strata/internal/logging"
	"strata/internal/services"
)

func fileSet(dir string) catalog.FileSet {
	return catalog.FileSet{
		Name: "preprocess",
		Dir:  dir,
		Days: [][]string{
			{filepath.Join(dir, "a-PP.isxd"), filepath.Join(dir, "b-PP.isxd"), filepath.Join(dir, "c-PP.isxd")},
			{filepath.Join(dir, "d-PP.isxd")},
		},
	}
}

func write(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := os.WriteFile(p, []byte("out"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestIsStageCompleteAllPresent(t *testing.T) {
	dir := t.TempDir()
	fs := fileSet(dir)
	write(t, fs.Days[0]...)
	tracker := checkpoint.New(logging.NewNop())

	for i := 0; i < 2; i++ {
		done, err := tracker.IsStageComplete(context.Background(), fs, 0)
		if err != nil {
			t.Fatalf("IsStageComplete: %v", err)
		}
		if !done {
			t.Fatalf("call %d: expected complete", i)
		}
	}
	for _, p := range fs.Days[0] {
		if !exists(p) {
			t.Fatalf("complete outputs must not be removed: %s", p)
		}
	}
}

func TestIsStageCompleteNonePresent(t *testing.T) {
	fs := fileSet(t.TempDir())
	tracker := checkpoint.New(logging.NewNop())
	done, err := tracker.IsStageComplete(context.Background(), fs, 1)
	if err != nil || done {
		t.Fatalf("expected incomplete without error, done=%v err=%v", done, err)
	}
}

func TestIsStageCompleteMissingOutputDirectory(t *testing.T) {
	fs := fileSet(filepath.Join(t.TempDir(), "processed"))
	tracker := checkpoint.New(logging.NewNop())
	done, err := tracker.IsStageComplete(context.Background(), fs, 0)
	if err != nil || done {
		t.Fatalf("expected incomplete without error, done=%v err=%v", done, err)
	}
}

func TestIsStageCompleteRepairsPartialDay(t *testing.T) {
	dir := t.TempDir()
	fs := fileSet(dir)
	write(t, fs.Days[0][0], fs.Days[0][2])
	unrelated := filepath.Join(dir, "day_1-mean_image.isxd")
	write(t, unrelated, fs.Days[1][0])
	tracker := checkpoint.New(logging.NewNop())

	done, err := tracker.IsStageComplete(context.Background(), fs, 0)
	if err != nil {
		t.Fatalf("IsStageComplete: %v", err)
	}
	if done {
		t.Fatal("partial day must report incomplete")
	}
	for _, p := range fs.Days[0] {
		if exists(p) {
			t.Fatalf("partial output should be removed: %s", p)
		}
	}
	if !exists(unrelated) || !exists(fs.Days[1][0]) {
		t.Fatal("repair must only touch the requested day's outputs")
	}

	state, present, err := tracker.Inspect(fs, 0)
	if err != nil || state != checkpoint.StateNone || len(present) != 0 {
		t.Fatalf("expected clean state after repair, state=%s present=%v err=%v", state, present, err)
	}
	done, err = tracker.IsStageComplete(context.Background(), fs, 0)
	if err != nil || done {
		t.Fatalf("second call should report incomplete without error, done=%v err=%v", done, err)
	}
}

func TestIsStageCompleteContinuesAfterDeleteFailure(t *testing.T) {
	dir := t.TempDir()
	fs := fileSet(dir)
	write(t, fs.Days[0][0], fs.Days[0][1])
	failing := fs.Days[0][0]
	var attempted []string
	tracker := checkpoint.New(logging.NewNop(), checkpoint.WithRemover(func(path string) error {
		attempted = append(attempted, path)
		if path == failing {
			return os.ErrPermission
		}
		return os.Remove(path)
	}))

	done, err := tracker.IsStageComplete(context.Background(), fs, 0)
	if done {
		t.Fatal("partial day must report incomplete")
	}
	if !errors.Is(err, services.ErrFileSystem) {
		t.Fatalf("expected ErrFileSystem, got %v", err)
	}
	if len(attempted) != 2 {
		t.Fatalf("expected both present files attempted, got %v", attempted)
	}
	if exists(fs.Days[0][1]) {
		t.Fatal("second partial output should still be removed")
	}
	if !exists(failing) {
		t.Fatal("file whose removal failed should remain")
	}
}

func TestInspectIsReadOnly(t *testing.T) {
	dir := t.TempDir()
	fs := fileSet(dir)
	write(t, fs.Days[0][1])
	tracker := checkpoint.New(logging.NewNop())

	state, present, err := tracker.Inspect(fs, 0)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if state != checkpoint.StatePartial || len(present) != 1 {
		t.Fatalf("unexpected state %s present=%v", state, present)
	}
	if !exists(fs.Days[0][1]) {
		t.Fatal("Inspect must not delete files")
	}
}

func TestIsStageCompleteArgumentErrors(t *testing.T) {
	tracker := checkpoint.New(logging.NewNop())
	ctx := context.Background()
	if _, err := tracker.IsStageComplete(ctx, catalog.FileSet{}, 0); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty set, got %v", err)
	}
	if _, err := tracker.IsStageComplete(ctx, fileSet(t.TempDir()), 5); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for bad day, got %v", err)
	}
}

func TestArtifactExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "day_1-crop_rect.csv")
	if checkpoint.ArtifactExists(path) {
		t.Fatal("artifact should not exist yet")
	}
	write(t, path)
	if !checkpoint.ArtifactExists(path) {
		t.Fatal("artifact should exist")
	}
	if checkpoint.ArtifactExists(dir) {
		t.Fatal("directories are not artifacts")
	}
}
