package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"strata/internal/checkpoint"
	"strata/internal/config"
	"strata/internal/pipeline"
	"strata/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Catalog", statusError, "Missing", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Catalog:", "[ERROR] Missing")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Catalog", statusOK, "Frozen", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestStateCell(t *testing.T) {
	partial := pipeline.StageState{State: checkpoint.StatePartial, Present: 1, Expected: 3}
	if got := stateCell(partial, false); got != "partial 1/3" {
		t.Fatalf("stateCell partial = %q", got)
	}
	if got := stateCell(pipeline.StageState{}, false); got != "-" {
		t.Fatalf("stateCell empty = %q", got)
	}
	if got := stateCell(pipeline.StageState{State: checkpoint.StateComplete}, true); !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green complete cell, got %q", got)
	}
}

func TestPreflightLines(t *testing.T) {
	lines := preflightLines([]preflight.Result{
		{Name: "Data directory", Passed: true, Detail: "/data (read/write ok)"},
		{Name: "Imaging bridge", Detail: "not found"},
		{Name: "Kafka", Optional: true, Detail: "no broker reachable"},
	}, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[OK]") || !strings.Contains(lines[1], "[ERROR] not found") || !strings.Contains(lines[2], "[WARN]") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestRenderTablePadsRows(t *testing.T) {
	out := renderTable(tableSpec{headers: []string{"Stage", "day_1"}, rows: [][]string{{"Preprocess"}}})
	if !strings.Contains(out, "Preprocess") || !strings.Contains(out, "day_1") {
		t.Fatalf("unexpected table %q", out)
	}
	if strings.Contains(out, "DAY_1") || strings.Contains(out, "STAGE") {
		t.Fatalf("headers should keep their case, got %q", out)
	}
	if renderTable(tableSpec{}) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestEventSinks(t *testing.T) {
	if got := eventSinks(config.Events{}); len(got) != 1 || got[0] != "log" {
		t.Fatalf("expected only the log sink, got %v", got)
	}
	got := eventSinks(config.Events{
		KafkaBrokers: []string{"a:9092", "b:9092"},
		KafkaTopic:   "strata.pipeline.events",
		NtfyTopic:    "https://ntfy.sh/strata",
	})
	want := []string{"log", "kafka strata.pipeline.events (2 broker(s))", "ntfy https://ntfy.sh/strata"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("eventSinks = %v, want %v", got, want)
	}
}
