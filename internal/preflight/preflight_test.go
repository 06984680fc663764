package preflight

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"strata/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckOutputDirectory_NotYetCreated(t *testing.T) {
	dir := t.TempDir()
	result := CheckOutputDirectory("out", filepath.Join(dir, "processed"))
	if !result.Passed {
		t.Fatalf("expected pass when parent is writable, got: %s", result.Detail)
	}
}

func TestCheckKafka_Disabled(t *testing.T) {
	if result := CheckKafka(context.Background(), nil); !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckKafka_FallsThroughBrokers(t *testing.T) {
	orig := dialFunc
	t.Cleanup(func() { dialFunc = orig })
	var dialed []string
	dialFunc = func(_ context.Context, address string) (net.Conn, error) {
		dialed = append(dialed, address)
		if address == "bad:9092" {
			return nil, errors.New("connection refused")
		}
		client, server := net.Pipe()
		_ = server.Close()
		return client, nil
	}

	result := CheckKafka(context.Background(), []string{"bad:9092", "good:9092"})
	if !result.Passed || len(dialed) != 2 {
		t.Fatalf("expected pass on second broker, got %+v after %v", result, dialed)
	}

	dialFunc = func(context.Context, string) (net.Conn, error) { return nil, context.DeadlineExceeded }
	result = CheckKafka(context.Background(), []string{"slow:9092"})
	if result.Passed || result.Detail != "no broker reachable (connection timed out)" {
		t.Fatalf("unexpected failure detail %+v", result)
	}
}

func TestRunAllReportsMissingBridge(t *testing.T) {
	cfg := config.Default()
	cfg.Imaging.Binary = "clearly-not-present-bridge"
	cfg.Events.KafkaBrokers = nil
	dataDir := t.TempDir()

	results := RunAll(context.Background(), &cfg, dataDir)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %+v", results)
	}
	failures := Failures(results)
	if len(failures) != 1 || failures[0].Name != "Imaging bridge" {
		t.Fatalf("unexpected failures %+v", failures)
	}
}
