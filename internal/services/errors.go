package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks unusable input: no matching recordings, an empty
	// file set, or an out-of-range day index.
	ErrConfiguration = errors.New("configuration error")
	// ErrOperationNotFound marks a stage operation name that does not resolve.
	ErrOperationNotFound = errors.New("operation not found")
	// ErrExternalOperation wraps failures reported by the imaging capability.
	ErrExternalOperation = errors.New("external operation error")
	// ErrFileSystem marks delete and move failures.
	ErrFileSystem = errors.New("file system error")
)

// Wrap prefixes err with "component: operation: message" and tags it with
// marker so Kind can classify it. A nil marker means ErrExternalOperation.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalOperation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to a short label for status tables.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrOperationNotFound):
		return "operation_not_found"
	case errors.Is(err, ErrExternalOperation):
		return "external"
	case errors.Is(err, ErrFileSystem):
		return "filesystem"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{component, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
