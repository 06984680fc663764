package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"strata/internal/config"
	"strata/internal/events"
	"strata/internal/stage"
)

const userAgent = "Strata/0.1"

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// NtfySink posts run summaries and stage failures to an ntfy topic.
type NtfySink struct {
	endpoint string
	client   *http.Client
}

// NewSink returns an ntfy sink, or nil when no topic is configured.
func NewSink(cfg config.Events) *NtfySink {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return nil
	}
	timeout := time.Duration(cfg.NtfyRequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NtfySink{endpoint: topic, client: &http.Client{Timeout: timeout}}
}

// Publish sends a notification for queue completion and failed stages.
func (n *NtfySink) Publish(ctx context.Context, env events.Envelope) error {
	data, ok := format(env)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *NtfySink) Close() error { return nil }

func format(env events.Envelope) (payload, bool) {
	dataset := filepath.Base(env.DataDir)
	switch env.Type {
	case "queue_completed":
		if env.Halted || env.Error != "" {
			msg := fmt.Sprintf("Run on %s stopped after %d task(s)", dataset, env.Processed)
			if env.Error != "" {
				msg += ": " + env.Error
			}
			return payload{
				title:    "Strata - Run Stopped",
				message:  msg,
				tags:     []string{"strata", "queue", "halted"},
				priority: "high",
			}, true
		}
		if env.FailedN > 0 {
			return payload{
				title:   "Strata - Run Complete (with errors)",
				message: fmt.Sprintf("%s: %d task(s) processed, %d with failed days", dataset, env.Processed, env.FailedN),
				tags:    []string{"strata", "queue", "completed"},
			}, true
		}
		return payload{
			title:   "Strata - Run Complete",
			message: fmt.Sprintf("%s: %d task(s) processed", dataset, env.Processed),
			tags:    []string{"strata", "queue", "completed"},
		}, true
	case "task_completed":
		if !env.Failed {
			return payload{}, false
		}
		var failed []string
		for _, d := range env.Days {
			if d.Status == string(stage.StatusFailed) {
				failed = append(failed, d.Day)
			}
		}
		msg := fmt.Sprintf("%s failed on %s", stage.Label(env.Task), dataset)
		if len(failed) > 0 {
			msg += " for " + strings.Join(failed, ", ")
		}
		return payload{
			title:    "Strata - Stage Failed",
			message:  msg,
			tags:     []string{"strata", "error", env.Task},
			priority: "high",
		}, true
	default:
		return payload{}, false
	}
}

func (n *NtfySink) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
