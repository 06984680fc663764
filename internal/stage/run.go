package stage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"strata/internal/logging"
	"strata/internal/services"
)

// DayFunc performs stage work for one day and reports whether it ran or was
// skipped.
type DayFunc func(ctx context.Context, day int, label string) (Status, error)

// ForEachDay runs fn for every label, stamping the context with the stage and
// day, logging start and completion, and collecting outcomes. Day failures do
// not stop later days; context cancellation does.
func ForEachDay(ctx context.Context, logger *slog.Logger, name string, labels []string, fn DayFunc) Result {
	result := Result{Stage: name}
	stageCtx := services.WithStage(ctx, name)
	stageLogger := logging.WithContext(stageCtx, logger)
	start := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("days", len(labels)),
	)

	for idx, label := range labels {
		if err := ctx.Err(); err != nil {
			result.Err = err
			break
		}
		dayCtx := services.WithDay(stageCtx, label)
		dayLogger := logging.WithContext(dayCtx, logger)
		dayStart := time.Now()
		status, err := fn(dayCtx, idx, label)
		result.Record(label, status, err)
		switch {
		case err != nil && errors.Is(err, context.Canceled):
			dayLogger.Debug("stage interrupted")
		case err != nil:
			logging.ErrorWithContext(dayLogger, "stage failed for day", "stage_day_failed",
				logging.Error(err),
				logging.String("error_kind", services.Kind(err)),
				logging.String(logging.FieldImpact, "expected outputs for this day are missing"),
			)
		case status == StatusSkipped:
			dayLogger.Info("stage already complete for day", logging.Args(logging.DecisionAttrs("checkpoint", "skip", "outputs present")...)...)
		default:
			dayLogger.Info("stage completed for day",
				logging.String(logging.FieldEventType, "stage_day_complete"),
				logging.Duration("day_duration", time.Since(dayStart)),
			)
		}
	}

	counts := result.Counts()
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("succeeded", counts[StatusSucceeded]),
		logging.Int("skipped", counts[StatusSkipped]),
		logging.Int("failed", counts[StatusFailed]),
		logging.Duration("stage_duration", time.Since(start)),
	)
	return result
}

// Run is ForEachDay followed by a named checkpoint event when no day failed.
func Run(ctx context.Context, logger *slog.Logger, name string, labels []string, fn DayFunc) Result {
	result := ForEachDay(ctx, logger, name, labels, fn)
	if !result.Failed() {
		EmitCheckpoint(ctx, name)
	}
	return result
}

// Failure returns a Result for a stage that could not start.
func Failure(name string, err error) Result {
	return Result{Stage: name, Err: err}
}
