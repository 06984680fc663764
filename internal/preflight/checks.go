package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sys/unix"

	"strata/internal/config"
	"strata/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckOutputDirectory passes when outputDir is writable, or does not exist
// yet and its parent is writable.
func CheckOutputDirectory(name, outputDir string) Result {
	if _, err := os.Stat(outputDir); errors.Is(err, os.ErrNotExist) {
		parent := CheckDirectoryAccess(name, filepath.Dir(outputDir))
		if parent.Passed {
			parent.Detail = fmt.Sprintf("%s (will be created)", outputDir)
		}
		return parent
	}
	return CheckDirectoryAccess(name, outputDir)
}

// CheckSystemDeps evaluates the executables the configuration needs.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "Imaging bridge",
			Command:     cfg.Imaging.Binary,
			Description: "Required for every imaging stage and frame reads",
		},
	})
}

// dialFunc opens a broker connection; replaced in tests.
var dialFunc = func(ctx context.Context, address string) (net.Conn, error) {
	return kafka.DialContext(ctx, "tcp", address)
}

// CheckKafka verifies that at least one configured broker accepts a
// connection. It uses a 5-second timeout per broker.
func CheckKafka(ctx context.Context, brokers []string) Result {
	const name = "Kafka"
	if len(brokers) == 0 {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	var lastErr error
	for _, broker := range brokers {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		conn, err := dialFunc(dialCtx, broker)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", broker)}
	}
	return Result{Name: name, Detail: fmt.Sprintf("no broker reachable (%v)", summarizeDialError(lastErr))}
}

func summarizeDialError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "connection timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "connection timed out"
	}
	return err.Error()
}
