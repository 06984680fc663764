package scheduler

import (
	"context"
	"fmt"
	"sort"

	"strata/internal/services"
	"strata/internal/stage"
)

// Operation is a stage command invoked with the scheduler's target.
type Operation[T any] func(ctx context.Context, target T, args Args) (stage.Result, error)

// Args carries positional and keyword arguments for an operation.
type Args struct {
	Positional []any
	Keyword    map[string]any
}

// Int returns the keyword value for key, else the positional value at pos,
// else def. Non-integer values fall through to the next source.
func (a Args) Int(key string, pos int, def int) int {
	if v, ok := a.Keyword[key]; ok {
		if n, ok := toInt(v); ok {
			return n
		}
	}
	if pos >= 0 && pos < len(a.Positional) {
		if n, ok := toInt(a.Positional[pos]); ok {
			return n
		}
	}
	return def
}

// String returns the keyword value for key, else the positional value at pos,
// else def.
func (a Args) String(key string, pos int, def string) string {
	if v, ok := a.Keyword[key].(string); ok {
		return v
	}
	if pos >= 0 && pos < len(a.Positional) {
		if v, ok := a.Positional[pos].(string); ok {
			return v
		}
	}
	return def
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// Task is one queued unit of work.
type Task[T any] struct {
	Name string
	Op   Operation[T]
	Args Args
}

// Registry is the closed set of named operations a pipeline exposes.
type Registry[T any] struct {
	ops map[string]Operation[T]
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{ops: make(map[string]Operation[T])}
}

// Register binds name to op, replacing any previous binding.
func (r *Registry[T]) Register(name string, op Operation[T]) {
	r.ops[name] = op
}

// Names returns registered operation names in sorted order.
func (r *Registry[T]) Names() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Task resolves name to a Task carrying args. Unknown names and nil
// operations return services.ErrOperationNotFound.
func (r *Registry[T]) Task(name string, args Args) (Task[T], error) {
	op, ok := r.ops[name]
	if !ok || op == nil {
		return Task[T]{}, services.Wrap(services.ErrOperationNotFound, "scheduler", "resolve",
			fmt.Sprintf("no operation named %q", name), nil)
	}
	return Task[T]{Name: name, Op: op, Args: args}, nil
}
