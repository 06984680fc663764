package events

import (
	"time"

	"strata/internal/scheduler"
	"strata/internal/services"
	"strata/internal/stage"
)

// DayStatus is one day's outcome inside a task_completed envelope.
type DayStatus struct {
	Day       string `json:"day"`
	Status    string `json:"status"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Envelope is the wire form of a scheduler event.
type Envelope struct {
	Type       string      `json:"type"`
	RunID      string      `json:"run_id"`
	DataDir    string      `json:"data_dir,omitempty"`
	Index      int         `json:"index"`
	Task       string      `json:"task,omitempty"`
	Checkpoint string      `json:"checkpoint,omitempty"`
	Failed     bool        `json:"failed"`
	Days       []DayStatus `json:"days,omitempty"`
	Processed  int         `json:"processed,omitempty"`
	FailedN    int         `json:"failed_tasks,omitempty"`
	Dropped    int         `json:"dropped,omitempty"`
	Halted     bool        `json:"halted,omitempty"`
	Error      string      `json:"error,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// FromEvent converts e into an Envelope stamped with now.
func FromEvent(e scheduler.Event, dataDir string, now time.Time) Envelope {
	env := Envelope{Type: scheduler.EventName(e), DataDir: dataDir, Timestamp: now.UTC()}
	switch ev := e.(type) {
	case scheduler.TaskCompleted:
		env.RunID = ev.RunID
		env.Index = ev.Index
		env.Task = ev.Name
		env.Failed = ev.Result.Failed()
		env.Days = dayStatuses(ev.Result)
		if ev.Result.Err != nil {
			env.Error = ev.Result.Err.Error()
		}
	case scheduler.CheckpointReached:
		env.RunID = ev.RunID
		env.Index = ev.Index
		env.Task = ev.Task
		env.Checkpoint = ev.Name
	case scheduler.QueueCompleted:
		env.RunID = ev.RunID
		env.Processed = ev.Processed
		env.FailedN = ev.Failed
		env.Dropped = ev.Dropped
		env.Halted = ev.Halted
		env.Failed = ev.Failed > 0 || ev.Halted
		if ev.Err != nil {
			env.Error = ev.Err.Error()
		}
	}
	return env
}

func dayStatuses(r stage.Result) []DayStatus {
	out := make([]DayStatus, 0, len(r.Days))
	for _, d := range r.Days {
		ds := DayStatus{Day: d.Day, Status: string(d.Status)}
		if d.Err != nil {
			ds.ErrorKind = services.Kind(d.Err)
			ds.Error = d.Err.Error()
		}
		out = append(out, ds)
	}
	return out
}
