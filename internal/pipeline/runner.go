package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"strata/internal/corruption"
	"strata/internal/dropframes"
	"strata/internal/events"
	"strata/internal/imaging"
	"strata/internal/ledger"
	"strata/internal/logging"
	"strata/internal/longitudinal"
	"strata/internal/notifications"
	"strata/internal/scheduler"
	"strata/internal/services"
	"strata/internal/stage"
	"strata/internal/timeseries"
	"strata/internal/workerpool"
)

// Runner drives plans for one session.
type Runner struct {
	session    *Session
	capability imaging.Capability
	sinks      []events.Sink
	listeners  []scheduler.Listener
	logger     *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCapability overrides the imaging capability. By default the runner
// talks to the configured bridge binary.
func WithCapability(c imaging.Capability) RunnerOption {
	return func(r *Runner) { r.capability = c }
}

// WithSink adds an event sink alongside the structured log sink.
func WithSink(s events.Sink) RunnerOption {
	return func(r *Runner) {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
}

// WithListener registers an extra scheduler listener.
func WithListener(l scheduler.Listener) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.listeners = append(r.listeners, l)
		}
	}
}

// NewRunner constructs a runner. Kafka and ntfy sinks are added when
// configured.
func NewRunner(session *Session, logger *slog.Logger, opts ...RunnerOption) (*Runner, error) {
	if session == nil {
		return nil, errors.New("runner requires a session")
	}
	r := &Runner{session: session, logger: logging.NewComponentLogger(logger, "pipeline")}
	for _, opt := range opts {
		opt(r)
	}
	cfg := session.cfg
	if r.capability == nil {
		client, err := imaging.New(cfg.Imaging.Binary, cfg.Imaging.OperationTimeout, imaging.WithLogger(logger))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "runner", "imaging bridge", err)
		}
		r.capability = client
	}
	if len(cfg.Events.KafkaBrokers) > 0 {
		sink, err := events.NewKafkaSink(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, logger)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "runner", "kafka sink", err)
		}
		r.sinks = append(r.sinks, sink)
	}
	if sink := notifications.NewSink(cfg.Events); sink != nil {
		r.sinks = append(r.sinks, sink)
	}
	r.sinks = append([]events.Sink{events.NewLogSink(logger)}, r.sinks...)
	return r, nil
}

// Close flushes and closes every sink.
func (r *Runner) Close() error {
	return events.Fanout(r.sinks).Close()
}

// Report summarizes one run.
type Report struct {
	Summary scheduler.QueueCompleted
	Entries []scheduler.StatusEntry
	// Quarantined lists recordings moved by quarantine_duplicates.
	Quarantined []string
}

// Failures returns the failed entries.
func (r Report) Failures() []scheduler.StatusEntry {
	var out []scheduler.StatusEntry
	for _, e := range r.Entries {
		if e.Status == stage.StatusFailed {
			out = append(out, e)
		}
	}
	return out
}

func needs(steps []Step, ops []string) bool {
	for _, s := range steps {
		if slices.Contains(ops, s.Name) {
			return true
		}
	}
	return false
}

// Target builds the stage objects steps use.
func (r *Runner) Target(ctx context.Context, steps []Step) (*Target, error) {
	cfg := r.session.cfg
	target := &Target{}
	if needs(steps, timeseries.Operations) || needs(steps, longitudinal.Operations) {
		ws, err := r.session.Workspace(ctx)
		if err != nil {
			return nil, err
		}
		if needs(steps, timeseries.Operations) {
			target.Timeseries = timeseries.New(ws, r.capability, cfg.Timeseries, r.logger)
		}
		if needs(steps, longitudinal.Operations) {
			target.Longitudinal = longitudinal.New(ws, r.capability, r.logger)
		}
	}
	if needs(steps, dropframes.Operations) {
		detector := corruption.New(r.capability, corruption.Options{
			ROI: corruption.Rect{
				Left:   cfg.Detector.ROILeft,
				Top:    cfg.Detector.ROITop,
				Width:  cfg.Detector.ROIWidth,
				Height: cfg.Detector.ROIHeight,
			},
			SampleSize:      cfg.Detector.SampleSize,
			PaddingFraction: cfg.Detector.PaddingFraction,
			WhiteBins:       cfg.Detector.WhiteBins,
			Workers:         cfg.Detector.Workers,
			Naming:          Naming(cfg),
		}, r.logger)
		target.DropFrames = dropframes.New(r.session.dataDir, r.session.QuarantineDir(), Naming(cfg), detector, r.logger)
	}
	return target, nil
}

// Run executes steps in order. Stage failures are reported in the returned
// Report; the error is non-nil only when the run could not start, was
// halted, or was cancelled.
func (r *Runner) Run(ctx context.Context, steps []Step) (Report, error) {
	if len(steps) == 0 {
		return Report{}, services.Wrap(services.ErrConfiguration, "pipeline", "run", "no steps planned", nil)
	}
	target, err := r.Target(ctx, steps)
	if err != nil {
		return Report{}, err
	}
	for _, h := range target.HealthChecks(ctx) {
		if !h.Ready {
			return Report{}, services.Wrap(services.ErrConfiguration, "pipeline", "health", h.String(), nil)
		}
	}

	cfg := r.session.cfg
	pool := workerpool.New(1)
	defer pool.Close()

	publishCtx := context.WithoutCancel(ctx)
	opts := []scheduler.Option{
		scheduler.WithLogger(r.logger),
		scheduler.WithTaskTimeout(time.Duration(cfg.Scheduler.TaskTimeout) * time.Second),
		scheduler.WithListener(events.Listener(publishCtx, events.Fanout(r.sinks), r.session.dataDir, r.logger)),
	}
	for _, l := range r.listeners {
		opts = append(opts, scheduler.WithListener(l))
	}
	sched := scheduler.New[*Target](pool, opts...)
	if err := sched.SetTarget(target); err != nil {
		return Report{}, err
	}
	reg := NewRegistry()
	for _, step := range steps {
		if err := sched.EnqueueNamed(reg, step.Name, step.Args); err != nil {
			return Report{}, err
		}
	}

	summary, runErr := sched.Run(ctx)
	report := Report{Summary: summary, Entries: sched.Table().Entries()}
	if err := r.record(publishCtx, summary.RunID, report.Entries); err != nil {
		logging.WarnWithContext(r.logger, "stage history not persisted", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status command shows older results"),
		)
	}
	if target.DropFrames != nil && len(target.DropFrames.Quarantined) > 0 {
		report.Quarantined = target.DropFrames.Quarantined
		r.invalidateCatalog(publishCtx)
	}
	return report, runErr
}

func (r *Runner) record(ctx context.Context, runID string, entries []scheduler.StatusEntry) error {
	now := time.Now().UTC()
	runs := make([]ledger.StageRun, len(entries))
	for i, e := range entries {
		runs[i] = ledger.StageRun{
			RunID:        runID,
			Stage:        e.Stage,
			Day:          e.Day,
			Status:       string(e.Status),
			ErrorKind:    e.ErrorKind,
			ErrorMessage: e.Message,
			RecordedAt:   now,
		}
	}
	return r.session.store.RecordStageRuns(ctx, runs)
}

// invalidateCatalog drops a frozen catalog after recordings moved, so the
// next run sees the trimmed copies instead of the quarantined originals.
func (r *Runner) invalidateCatalog(ctx context.Context) {
	_, frozen, err := r.session.store.FrozenAt(ctx)
	if err != nil || !frozen {
		return
	}
	if err := r.session.RefreshCatalog(ctx); err != nil {
		logging.WarnWithContext(r.logger, "frozen catalog not dropped after quarantine", "catalog_refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run strata catalog refresh"),
			logging.String(logging.FieldImpact, "next run may reference quarantined recordings"),
		)
	}
}
