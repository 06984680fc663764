// Package fileutil moves recordings into place. Recordings can be large and
// the quarantine folder may sit on a different device than the data.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// Move renames src to dst, creating dst's parent directory. When the rename
// crosses devices it falls back to a verified copy followed by removal of src.
func Move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := CopyVerified(src, dst); err != nil {
		return fmt.Errorf("copy across devices: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// CopyVerified copies src to dst, then re-reads dst and compares its SHA-256
// with the source digest. dst is removed when they differ.
func CopyVerified(src, dst string) error {
	want, err := copyHashing(src, dst)
	if err != nil {
		return err
	}
	got, err := digest(dst)
	if err != nil {
		return err
	}
	if !bytes.Equal(want, got) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy of %s does not match source", filepath.Base(src))
	}
	return nil
}

func copyHashing(src, dst string) ([]byte, error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	h := sha256.New()
	if _, err := io.Copy(out, io.TeeReader(in, h)); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func digest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
