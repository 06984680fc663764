package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"strata/internal/catalog"
	"strata/internal/logging"
	"strata/internal/services"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestBuildGroupsByDate(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"2023-01-01-10-00-00_a.isxd",
		"2023-01-01-10-05-00_b.isxd",
		"2023-01-02-09-00-00_c.isxd",
		"notes.txt",
		"2023-01-03-09-00-00_d.csv",
		"undated.isxd",
	)

	cat, err := catalog.Build(dir, catalog.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := cat.Labels(); !reflect.DeepEqual(got, []string{"day_1", "day_2"}) {
		t.Fatalf("unexpected labels: %v", got)
	}
	if got := cat.Counts(); !reflect.DeepEqual(got, []int{2, 1}) {
		t.Fatalf("unexpected counts: %v", got)
	}
	if cat.Days[0].Recordings[0].Name != "2023-01-01-10-00-00_a.isxd" || cat.Days[0].Recordings[1].Name != "2023-01-01-10-05-00_b.isxd" {
		t.Fatalf("unexpected day_1 recordings: %+v", cat.Days[0].Recordings)
	}
	if cat.Days[1].Date != "2023-01-02" {
		t.Fatalf("unexpected day_2 date %q", cat.Days[1].Date)
	}
}

func TestBuildDenseLabelsForKDates(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"2023-03-09-08-00-00.isxd",
		"2023-03-01-08-00-00.isxd",
		"2023-03-05-08-00-00.isxd",
		"2023-03-05-09-00-00.isxd",
		"2023-03-01-12-00-00.isxd",
	)
	for _, order := range []string{catalog.OrderChronological, catalog.OrderDiscovery} {
		cat, err := catalog.Build(dir, catalog.Options{DayOrder: order})
		if err != nil {
			t.Fatalf("Build(%s): %v", order, err)
		}
		if len(cat.Days) != 3 {
			t.Fatalf("%s: expected 3 days, got %d", order, len(cat.Days))
		}
		for i, d := range cat.Days {
			if d.Label != catalog.DayLabel(i) {
				t.Fatalf("%s: label %d = %q", order, i, d.Label)
			}
		}
		if cat.Total() != 5 {
			t.Fatalf("%s: expected 5 recordings, got %d", order, cat.Total())
		}
	}

	cat, _ := catalog.Build(dir, catalog.Options{})
	if cat.Days[0].Date != "2023-03-01" || cat.Days[2].Date != "2023-03-09" {
		t.Fatalf("chronological order not applied: %+v", cat.Days)
	}
}

func TestBuildEmptyDirectoryIsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "readme.md")
	_, err := catalog.Build(dir, catalog.Options{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestBuildMissingDirectory(t *testing.T) {
	_, err := catalog.Build(filepath.Join(t.TempDir(), "missing"), catalog.Options{})
	if !errors.Is(err, services.ErrFileSystem) {
		t.Fatalf("expected file system error, got %v", err)
	}
}

func TestBuildPrefersProcessedVariant(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"2023-01-01-10-00-00.isxd",
		"2023-01-01-10-00-00_processed.isxd",
		"2023-01-01-11-00-00.isxd",
	)
	cat, err := catalog.Build(dir, catalog.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	names := []string{}
	for _, r := range cat.Days[0].Recordings {
		names = append(names, r.Name)
	}
	want := []string{"2023-01-01-10-00-00_processed.isxd", "2023-01-01-11-00-00.isxd"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected recordings: %v", names)
	}
	if len(cat.Duplicates) != 1 || cat.Duplicates[0].Name != "2023-01-01-10-00-00.isxd" {
		t.Fatalf("unexpected duplicates: %+v", cat.Duplicates)
	}
	if !cat.Days[0].Recordings[0].Processed {
		t.Fatal("expected processed flag")
	}
}

func TestResolveDuplicatesQuarantinesRaw(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "2023-01-01-10-00-00.isxd", "2023-01-01-10-00-00_processed.isxd")
	cat, err := catalog.Build(dir, catalog.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	moved, err := catalog.ResolveDuplicates(context.Background(), cat, "corrupt_recordings", logging.NewNop())
	if err != nil {
		t.Fatalf("ResolveDuplicates: %v", err)
	}
	want := filepath.Join(dir, "corrupt_recordings", "2023-01-01-10-00-00.isxd")
	if len(moved) != 1 || moved[0] != want {
		t.Fatalf("unexpected moved list: %v", moved)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected quarantined file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "2023-01-01-10-00-00_processed.isxd")); err != nil {
		t.Fatalf("processed variant should remain: %v", err)
	}
	if len(cat.Duplicates) != 0 {
		t.Fatalf("expected duplicates cleared, got %v", cat.Duplicates)
	}
}

func TestResolveDuplicatesReportsMoveFailure(t *testing.T) {
	dir := t.TempDir()
	cat := &catalog.Catalog{
		DataDir:    dir,
		Duplicates: []catalog.Recording{{Name: "2023-01-01-10-00-00.isxd"}},
	}
	_, err := catalog.ResolveDuplicates(context.Background(), cat, "q", logging.NewNop())
	if !errors.Is(err, services.ErrFileSystem) {
		t.Fatalf("expected file system error, got %v", err)
	}
	if len(cat.Duplicates) != 1 {
		t.Fatal("failed duplicate should remain listed")
	}
}

func TestNameHelpers(t *testing.T) {
	opts := catalog.Options{}
	if got := catalog.RawName("2023-01-01-10-00-00_processed.isxd", opts); got != "2023-01-01-10-00-00.isxd" {
		t.Fatalf("RawName = %q", got)
	}
	if got := catalog.ProcessedName("2023-01-01-10-00-00.isxd", opts); got != "2023-01-01-10-00-00_processed.isxd" {
		t.Fatalf("ProcessedName = %q", got)
	}
	if catalog.IsProcessed("2023-01-01-10-00-00.isxd", opts) {
		t.Fatal("raw name reported processed")
	}
}
