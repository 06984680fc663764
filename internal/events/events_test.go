package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"strata/internal/logging"
	"strata/internal/scheduler"
	"strata/internal/services"
	"strata/internal/stage"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

type failingSink struct{ calls int }

func (s *failingSink) Publish(context.Context, Envelope) error {
	s.calls++
	return errors.New("unreachable")
}

func (s *failingSink) Close() error { return nil }

func TestFromEventTaskCompleted(t *testing.T) {
	result := stage.Result{Stage: "bandpass_filter"}
	result.Record("day_1", stage.StatusSucceeded, nil)
	result.Record("day_2", stage.StatusFailed, services.Wrap(services.ErrExternalOperation, "imaging", "spatial-filter", "", errors.New("exit 1")))
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	env := FromEvent(scheduler.TaskCompleted{RunID: "r1", Index: 1, Name: "bandpass_filter", Result: result}, "/data", now)
	if env.Type != "task_completed" || env.RunID != "r1" || env.Task != "bandpass_filter" || !env.Failed {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if len(env.Days) != 2 || env.Days[1].ErrorKind != "external" || env.Days[0].Status != "succeeded" {
		t.Fatalf("unexpected days %+v", env.Days)
	}
	if !env.Timestamp.Equal(now) {
		t.Fatalf("timestamp = %v", env.Timestamp)
	}
}

func TestFromEventQueueCompleted(t *testing.T) {
	env := FromEvent(scheduler.QueueCompleted{RunID: "r1", Processed: 3, Failed: 1, Dropped: 2}, "", time.Now())
	if env.Type != "queue_completed" || env.Processed != 3 || env.FailedN != 1 || env.Dropped != 2 || !env.Failed {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestKafkaSinkPublishesKeyedJSON(t *testing.T) {
	w := &captureWriter{}
	sink := newKafkaSink(w, "strata.pipeline.events")
	env := FromEvent(scheduler.CheckpointReached{RunID: "run-9", Index: 2, Task: "motion_correct", Name: "motion_correct"}, "/data", time.Now())

	if err := sink.Publish(context.Background(), env); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "run-9" {
		t.Fatalf("key = %q", msg.Key)
	}
	if len(msg.Headers) == 0 || msg.Headers[0].Key != "type" || string(msg.Headers[0].Value) != "checkpoint" {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
	var decoded Envelope
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Checkpoint != "motion_correct" || decoded.Index != 2 {
		t.Fatalf("unexpected payload %+v", decoded)
	}
	if err := sink.Close(); err != nil || !w.closed {
		t.Fatalf("Close: %v closed=%v", err, w.closed)
	}
}

func TestKafkaSinkWrapsWriteError(t *testing.T) {
	sink := newKafkaSink(&captureWriter{err: errors.New("broker down")}, "topic")
	if err := sink.Publish(context.Background(), Envelope{Type: "checkpoint"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewKafkaSinkValidates(t *testing.T) {
	if _, err := NewKafkaSink(nil, "topic", nil); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := NewKafkaSink([]string{"localhost:9092"}, "", nil); err == nil {
		t.Fatal("expected error without topic")
	}
}

func TestListenerSwallowsPublishErrors(t *testing.T) {
	failing := &failingSink{}
	sink := Fanout{NewLogSink(logging.NewNop()), failing}
	listener := Listener(context.Background(), sink, "/data", logging.NewNop())
	listener(scheduler.QueueCompleted{RunID: "r"})
	if failing.calls != 1 {
		t.Fatalf("expected publish attempt, got %d", failing.calls)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
