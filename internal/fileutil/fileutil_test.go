package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "day_1.isxd")
	dst := filepath.Join(dir, "copy.isxd")
	if err := os.WriteFile(src, []byte("frames"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if err := CopyVerified(src, dst); err != nil {
		t.Fatalf("CopyVerified: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(got) != "frames" {
		t.Fatalf("unexpected copy contents %q", got)
	}
}

func TestCopyVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "copy.isxd")
	if err := CopyVerified(filepath.Join(dir, "absent.isxd"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("expected no destination file, stat err = %v", err)
	}
}

func TestMoveCreatesDestinationDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "rec.isxd")
	dst := filepath.Join(dir, "quarantine", "nested", "rec.isxd")
	if err := os.WriteFile(src, []byte("movie"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if err := Move(src, dst); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, stat err = %v", err)
	}
	if got, err := os.ReadFile(dst); err != nil || string(got) != "movie" {
		t.Fatalf("unexpected destination %q (%v)", got, err)
	}
}

func TestMoveMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := Move(filepath.Join(dir, "absent.isxd"), filepath.Join(dir, "out", "absent.isxd")); err == nil {
		t.Fatal("expected error for missing source")
	}
}
