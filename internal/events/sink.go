package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"strata/internal/logging"
	"strata/internal/scheduler"
)

// Sink receives envelopes.
type Sink interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// LogSink writes envelopes to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logging.NewComponentLogger(logger, "events")}
}

func (s *LogSink) Publish(ctx context.Context, env Envelope) error {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, env.Type),
		logging.String(logging.FieldRunID, env.RunID),
	}
	if env.Task != "" {
		attrs = append(attrs, logging.String("task", env.Task), logging.Int(logging.FieldTaskIndex, env.Index))
	}
	if env.Checkpoint != "" {
		attrs = append(attrs, logging.String("checkpoint", env.Checkpoint))
	}
	if env.Type == "queue_completed" {
		attrs = append(attrs,
			logging.Int("processed", env.Processed),
			logging.Int("failed", env.FailedN),
			logging.Int("dropped", env.Dropped),
		)
	}
	level := slog.LevelDebug
	if env.Type == "queue_completed" || env.Failed {
		level = slog.LevelInfo
	}
	s.logger.LogAttrs(ctx, level, "pipeline event", attrs...)
	return nil
}

func (s *LogSink) Close() error { return nil }

// Fanout publishes to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, env Envelope) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Listener adapts sink to a scheduler listener. Publish failures are logged
// and never interrupt the queue.
func Listener(ctx context.Context, sink Sink, dataDir string, logger *slog.Logger) scheduler.Listener {
	logger = logging.NewComponentLogger(logger, "events")
	return func(e scheduler.Event) {
		env := FromEvent(e, dataDir, time.Now())
		if err := sink.Publish(ctx, env); err != nil {
			logging.WarnWithContext(logger, "event publish failed", "event_publish_failed",
				logging.String("event", env.Type),
				logging.Error(err),
				logging.String(logging.FieldImpact, "external consumers miss this event"),
			)
		}
	}
}
