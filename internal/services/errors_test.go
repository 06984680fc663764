package services_test

import (
	"errors"
	"strings"
	"testing"

	"strata/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalOperation, "timeseries", "preprocess", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalOperation) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"timeseries", "preprocess", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalOperation) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	cases := map[string]error{
		"":                    nil,
		"configuration":       services.Wrap(services.ErrConfiguration, "catalog", "build", "empty", nil),
		"operation_not_found": services.Wrap(services.ErrOperationNotFound, "scheduler", "enqueue", "bogus", nil),
		"external":            services.Wrap(services.ErrExternalOperation, "imaging", "trim", "", errors.New("exit 1")),
		"filesystem":          services.Wrap(services.ErrFileSystem, "checkpoint", "repair", "", nil),
		"unknown":             errors.New("plain"),
	}
	for want, err := range cases {
		if got := services.Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}
