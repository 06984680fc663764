package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"strata/internal/logging"
	"strata/internal/services"
	"strata/internal/stage"
	"strata/internal/workerpool"
)

var (
	// ErrRunning is returned by operations that require an idle scheduler.
	ErrRunning = errors.New("scheduler is running")
	// ErrNoTarget is returned by Start before SetTarget.
	ErrNoTarget = errors.New("scheduler has no target")
)

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	taskTimeout time.Duration
	listeners   []Listener
}

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTaskTimeout bounds each task's context. Zero disables the limit.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *options) { o.taskTimeout = d }
}

// WithListener registers a listener at construction.
func WithListener(l Listener) Option {
	return func(o *options) {
		if l != nil {
			o.listeners = append(o.listeners, l)
		}
	}
}

// Scheduler executes queued tasks one at a time against a shared target.
type Scheduler[T any] struct {
	pool        *workerpool.Pool
	logger      *slog.Logger
	taskTimeout time.Duration
	table       *StatusTable

	mu        sync.Mutex
	target    T
	hasTarget bool
	pending   []Task[T]
	listeners []Listener
	running   bool
	dropped   int
	runID     string
	cancel    context.CancelFunc
	done      chan struct{}
	summary   QueueCompleted
}

// New constructs a scheduler that dispatches onto pool.
func New[T any](pool *workerpool.Pool, opts ...Option) *Scheduler[T] {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Scheduler[T]{
		pool:        pool,
		logger:      logging.NewComponentLogger(cfg.logger, "scheduler"),
		taskTimeout: cfg.taskTimeout,
		table:       NewStatusTable(),
		listeners:   cfg.listeners,
	}
}

// AddListener registers l for subsequent events.
func (s *Scheduler[T]) AddListener(l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// SetTarget binds the object every task operates on.
func (s *Scheduler[T]) SetTarget(target T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	s.target = target
	s.hasTarget = true
	return nil
}

// Enqueue appends task to the queue. Tasks may be added while running.
func (s *Scheduler[T]) Enqueue(task Task[T]) {
	s.mu.Lock()
	s.pending = append(s.pending, task)
	s.mu.Unlock()
}

// EnqueueNamed resolves name in reg and appends the resulting task.
func (s *Scheduler[T]) EnqueueNamed(reg *Registry[T], name string, args Args) error {
	task, err := reg.Task(name, args)
	if err != nil {
		return err
	}
	s.Enqueue(task)
	return nil
}

// Pending returns the number of queued tasks not yet dispatched.
func (s *Scheduler[T]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Running reports whether a run is in progress.
func (s *Scheduler[T]) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunID returns the identifier of the current or most recent run.
func (s *Scheduler[T]) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Table returns the status table for the current or most recent run.
func (s *Scheduler[T]) Table() *StatusTable {
	return s.table
}

// Start launches the controller and returns immediately.
func (s *Scheduler[T]) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	if !s.hasTarget {
		s.mu.Unlock()
		return ErrNoTarget
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.dropped = 0
	s.runID = uuid.NewString()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.summary = QueueCompleted{}
	runID := s.runID
	done := s.done
	s.mu.Unlock()

	s.table.reset()
	go s.control(services.WithRunID(runCtx, runID), runID, done)
	return nil
}

// Wait blocks until the current run finishes and returns its summary. It
// returns immediately when no run was started.
func (s *Scheduler[T]) Wait() QueueCompleted {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Run starts the queue and waits for it.
func (s *Scheduler[T]) Run(ctx context.Context) (QueueCompleted, error) {
	if err := s.Start(ctx); err != nil {
		return QueueCompleted{}, err
	}
	summary := s.Wait()
	return summary, summary.Err
}

// CancelAll drops every pending task and returns how many were dropped. The
// in-flight task keeps running and the terminal event still fires.
func (s *Scheduler[T]) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	s.pending = nil
	if s.running {
		s.dropped += n
	}
	if n > 0 {
		s.logger.Info("pending tasks cancelled", logging.Int("dropped", n))
	}
	return n
}

// Stop drops pending tasks and cancels the in-flight task's context.
// Operations observe the cancellation cooperatively.
func (s *Scheduler[T]) Stop() {
	s.CancelAll()
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Reset clears the queue and the status table. It fails while running.
func (s *Scheduler[T]) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	s.pending = nil
	s.dropped = 0
	s.summary = QueueCompleted{}
	s.table.reset()
	return nil
}

func (s *Scheduler[T]) pop() (Task[T], T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero Task[T]
	if len(s.pending) == 0 {
		return zero, s.target, false
	}
	task := s.pending[0]
	s.pending = s.pending[1:]
	return task, s.target, true
}

func (s *Scheduler[T]) emit(e Event) {
	s.mu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range listeners {
		l(e)
	}
}

type outcome struct {
	result stage.Result
	err    error
}

func (s *Scheduler[T]) control(ctx context.Context, runID string, done chan struct{}) {
	logger := logging.WithContext(ctx, s.logger)
	start := time.Now()
	summary := QueueCompleted{RunID: runID}
	logger.Info("queue started",
		logging.String(logging.FieldEventType, "queue_start"),
		logging.Int("pending", s.Pending()),
	)

	for index := 0; ; index++ {
		task, target, ok := s.pop()
		if !ok {
			break
		}
		if task.Op == nil {
			summary.Halted = true
			summary.Err = services.Wrap(services.ErrOperationNotFound, "scheduler", "dispatch",
				fmt.Sprintf("task %d has no operation %q", index, task.Name), nil)
			logging.ErrorWithContext(logger, "queue halted", "queue_halted",
				logging.Int(logging.FieldTaskIndex, index),
				logging.String("task", task.Name),
				logging.Error(summary.Err),
			)
			s.mu.Lock()
			s.dropped += len(s.pending)
			s.pending = nil
			s.mu.Unlock()
			break
		}
		if err := ctx.Err(); err != nil {
			summary.Err = err
			s.mu.Lock()
			s.dropped += 1 + len(s.pending)
			s.pending = nil
			s.mu.Unlock()
			break
		}

		out, dispatched := s.dispatch(ctx, runID, index, task, target)
		if !dispatched {
			summary.Err = out.err
			s.mu.Lock()
			s.dropped += 1 + len(s.pending)
			s.pending = nil
			s.mu.Unlock()
			break
		}

		result := out.result
		if result.Stage == "" {
			result.Stage = task.Name
		}
		if out.err != nil && result.Err == nil {
			result.Err = out.err
		}
		summary.Processed++
		if result.Failed() {
			summary.Failed++
		}
		s.table.Record(index, result)
		s.emit(TaskCompleted{RunID: runID, Index: index, Name: task.Name, Result: result})

		if errors.Is(result.Err, services.ErrOperationNotFound) {
			summary.Halted = true
			summary.Err = result.Err
			s.mu.Lock()
			s.dropped += len(s.pending)
			s.pending = nil
			s.mu.Unlock()
			break
		}
	}

	s.mu.Lock()
	summary.Dropped = s.dropped
	s.mu.Unlock()

	logger.Info("queue completed",
		logging.String(logging.FieldEventType, "queue_complete"),
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
		logging.Int("dropped", summary.Dropped),
		logging.Bool("halted", summary.Halted),
		logging.Duration("queue_duration", time.Since(start)),
	)
	s.emit(summary)

	s.mu.Lock()
	s.summary = summary
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	close(done)
}

// dispatch submits one task and waits for it, relaying checkpoint events
// until the task reports completion. dispatched is false when the pool would
// not accept the task.
func (s *Scheduler[T]) dispatch(ctx context.Context, runID string, index int, task Task[T], target T) (outcome, bool) {
	taskCtx := services.WithTaskIndex(ctx, index)
	var cancel context.CancelFunc = func() {}
	if s.taskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(taskCtx, s.taskTimeout)
	}
	defer cancel()

	checkpoints := make(chan string)
	finished := make(chan struct{})
	taskCtx = stage.WithCheckpointEmitter(taskCtx, func(name string) {
		select {
		case checkpoints <- name:
		case <-finished:
		}
	})

	logger := logging.WithContext(taskCtx, s.logger)
	logger.Info("task dispatched",
		logging.String(logging.FieldEventType, "task_start"),
		logging.String("task", task.Name),
	)
	taskStart := time.Now()

	results := make(chan outcome, 1)
	err := s.pool.Submit(ctx, func() {
		defer func() {
			if r := recover(); r != nil {
				results <- outcome{err: fmt.Errorf("task %s panicked: %v", task.Name, r)}
			}
		}()
		res, err := task.Op(taskCtx, target, task.Args)
		results <- outcome{result: res, err: err}
	})
	if err != nil {
		logging.WarnWithContext(logger, "task not dispatched", "task_dispatch_failed",
			logging.String("task", task.Name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "remaining tasks dropped"),
		)
		return outcome{err: err}, false
	}

	for {
		select {
		case name := <-checkpoints:
			s.emit(CheckpointReached{RunID: runID, Index: index, Task: task.Name, Name: name})
		case out := <-results:
			close(finished)
			if out.err != nil || out.result.Failed() {
				reported := out.err
				if reported == nil {
					reported = out.result.Error()
				}
				logging.WarnWithContext(logger, "task finished with failures", "task_failed",
					logging.String("task", task.Name),
					logging.Error(reported),
					logging.String("error_kind", services.Kind(reported)),
					logging.String(logging.FieldImpact, "failed days keep missing outputs; queue continues"),
					logging.Duration("task_duration", time.Since(taskStart)),
				)
			} else {
				logger.Info("task completed",
					logging.String(logging.FieldEventType, "task_complete"),
					logging.String("task", task.Name),
					logging.Duration("task_duration", time.Since(taskStart)),
				)
			}
			return out, true
		}
	}
}
