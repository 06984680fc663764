package services

import "context"

type contextKey int

const (
	stageKey contextKey = iota
	dayKey
	runIDKey
	taskIndexKey
)

// WithStage annotates ctx with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

// WithDay annotates ctx with a day label such as day_2.
func WithDay(ctx context.Context, day string) context.Context {
	return withString(ctx, dayKey, day)
}

// WithRunID annotates ctx with the scheduler run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return withString(ctx, runIDKey, id)
}

// WithTaskIndex annotates ctx with the zero-based queue position of the
// running task.
func WithTaskIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, taskIndexKey, index)
}

func StageFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, stageKey) }
func DayFromContext(ctx context.Context) (string, bool)   { return stringFrom(ctx, dayKey) }
func RunIDFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, runIDKey) }

// TaskIndexFromContext extracts the task position if present.
func TaskIndexFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(taskIndexKey).(int)
	return v, ok
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
