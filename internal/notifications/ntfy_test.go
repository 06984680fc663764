package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"strata/internal/config"
	"strata/internal/events"
	"strata/internal/notifications"
)

type captured struct {
	title    string
	message  string
	tags     string
	priority string
}

type recorder struct {
	mu   sync.Mutex
	reqs []captured
}

func (r *recorder) all() []captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]captured(nil), r.reqs...)
}

func newServer(t *testing.T, status int) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.reqs = append(rec.reqs, captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestNewSinkDisabledWithoutTopic(t *testing.T) {
	if sink := notifications.NewSink(config.Default().Events); sink != nil {
		t.Fatalf("expected nil sink without topic, got %+v", sink)
	}
}

func TestNtfySinkFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		env            events.Envelope
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "queue completed",
			env:           events.Envelope{Type: "queue_completed", DataDir: "/data/mouse7", Processed: 9},
			expectTitle:   "Strata - Run Complete",
			expectMessage: "mouse7: 9 task(s) processed",
			expectTags:    "strata,queue,completed",
		},
		{
			name:          "queue completed with failures",
			env:           events.Envelope{Type: "queue_completed", DataDir: "/data/mouse7", Processed: 9, FailedN: 2},
			expectTitle:   "Strata - Run Complete (with errors)",
			expectMessage: "mouse7: 9 task(s) processed, 2 with failed days",
			expectTags:    "strata,queue,completed",
		},
		{
			name:           "queue halted",
			env:            events.Envelope{Type: "queue_completed", DataDir: "/data/mouse7", Processed: 1, Halted: true, Error: "operation not found"},
			expectTitle:    "Strata - Run Stopped",
			expectMessage:  "Run on mouse7 stopped after 1 task(s): operation not found",
			expectTags:     "strata,queue,halted",
			expectPriority: "high",
		},
		{
			name: "stage failed",
			env: events.Envelope{
				Type:    "task_completed",
				DataDir: "/data/mouse7",
				Task:    "motion_correct",
				Failed:  true,
				Days:    []events.DayStatus{{Day: "day_1", Status: "succeeded"}, {Day: "day_2", Status: "failed"}},
			},
			expectTitle:    "Strata - Stage Failed",
			expectMessage:  "Motion Correct failed on mouse7 for day_2",
			expectTags:     "strata,error,motion_correct",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, got := newServer(t, http.StatusOK)
			sink := notifications.NewSink(config.Events{NtfyTopic: srv.URL})
			if err := sink.Publish(context.Background(), tc.env); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			reqs := got.all()
			if len(reqs) != 1 {
				t.Fatalf("expected one request, got %d", len(reqs))
			}
			req := reqs[0]
			if req.title != tc.expectTitle || req.message != tc.expectMessage || req.tags != tc.expectTags || req.priority != tc.expectPriority {
				t.Fatalf("unexpected request %+v", req)
			}
		})
	}
}

func TestNtfySinkIgnoresRoutineEvents(t *testing.T) {
	srv, got := newServer(t, http.StatusOK)
	sink := notifications.NewSink(config.Events{NtfyTopic: srv.URL})
	for _, env := range []events.Envelope{
		{Type: "task_completed", Task: "cnmfe"},
		{Type: "checkpoint", Checkpoint: "cnmfe"},
	} {
		if err := sink.Publish(context.Background(), env); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if n := len(got.all()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestNtfySinkReportsHTTPErrors(t *testing.T) {
	srv, _ := newServer(t, http.StatusTooManyRequests)
	sink := notifications.NewSink(config.Events{NtfyTopic: srv.URL})
	if err := sink.Publish(context.Background(), events.Envelope{Type: "queue_completed"}); err == nil {
		t.Fatal("expected error for 429 response")
	}
}
