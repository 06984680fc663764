package scheduler

import (
	"sort"
	"sync"

	"strata/internal/services"
	"strata/internal/stage"
)

// StatusEntry is the latest outcome of one stage for one day. Day is empty
// when the stage failed before reaching any day.
type StatusEntry struct {
	Task      int
	Stage     string
	Day       string
	Status    stage.Status
	ErrorKind string
	Message   string
}

type statusKey struct{ stage, day string }

// StatusTable keeps the per-stage, per-day outcome of a run.
type StatusTable struct {
	mu      sync.Mutex
	entries map[statusKey]StatusEntry
}

// NewStatusTable returns an empty table.
func NewStatusTable() *StatusTable {
	return &StatusTable{entries: make(map[statusKey]StatusEntry)}
}

// Record stores every day outcome of result, and the stage-level error if any.
func (t *StatusTable) Record(task int, result stage.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, d := range result.Days {
		entry := StatusEntry{Task: task, Stage: result.Stage, Day: d.Day, Status: d.Status}
		if d.Err != nil {
			entry.ErrorKind = services.Kind(d.Err)
			entry.Message = d.Err.Error()
		}
		t.entries[statusKey{result.Stage, d.Day}] = entry
	}
	if result.Err != nil {
		t.entries[statusKey{result.Stage, ""}] = StatusEntry{
			Task:      task,
			Stage:     result.Stage,
			Status:    stage.StatusFailed,
			ErrorKind: services.Kind(result.Err),
			Message:   result.Err.Error(),
		}
	}
}

// Lookup returns the entry for stage and day.
func (t *StatusTable) Lookup(stageName, day string) (StatusEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[statusKey{stageName, day}]
	return e, ok
}

// Entries returns all entries ordered by task position then day label.
func (t *StatusTable) Entries() []StatusEntry {
	t.mu.Lock()
	out := make([]StatusEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Task != out[j].Task {
			return out[i].Task < out[j].Task
		}
		if out[i].Stage != out[j].Stage {
			return out[i].Stage < out[j].Stage
		}
		return dayLess(out[i].Day, out[j].Day)
	})
	return out
}

// Failures returns entries whose status is failed.
func (t *StatusTable) Failures() []StatusEntry {
	var out []StatusEntry
	for _, e := range t.Entries() {
		if e.Status == stage.StatusFailed {
			out = append(out, e)
		}
	}
	return out
}

func (t *StatusTable) reset() {
	t.mu.Lock()
	t.entries = make(map[statusKey]StatusEntry)
	t.mu.Unlock()
}

// dayLess orders day_2 before day_10.
func dayLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
