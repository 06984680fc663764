package scheduler

import "strata/internal/stage"

// Event is delivered to listeners on the controller goroutine.
type Event interface {
	eventName() string
}

// TaskCompleted fires after each dispatched task returns.
type TaskCompleted struct {
	RunID  string
	Index  int
	Name   string
	Result stage.Result
}

// CheckpointReached fires when stage logic emits a named milestone.
type CheckpointReached struct {
	RunID string
	Index int
	Task  string
	Name  string
}

// QueueCompleted is the terminal event of every run.
type QueueCompleted struct {
	RunID     string
	Processed int
	Failed    int
	// Dropped counts pending tasks removed by CancelAll, Stop, or a halt.
	Dropped int
	Halted  bool
	Err     error
}

func (TaskCompleted) eventName() string     { return "task_completed" }
func (CheckpointReached) eventName() string { return "checkpoint" }
func (QueueCompleted) eventName() string    { return "queue_completed" }

// EventName returns the stable name of an event for logs and sinks.
func EventName(e Event) string {
	if e == nil {
		return ""
	}
	return e.eventName()
}

// Listener receives scheduler events.
type Listener func(Event)
