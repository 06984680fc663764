// Package stage holds the types shared by pipeline stage objects: per-day
// outcomes, stage results, health records, and the named checkpoint events
// stage logic emits for progress display.
package stage

import "context"

// Checker is implemented by stage objects that can report readiness before a run.
type Checker interface {
	HealthCheck(context.Context) Health
}

// Health is a stage object's readiness. Detail explains a not-ready state.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

func Healthy(name string) Health { return Health{Name: name, Ready: true} }

func Unhealthy(name, detail string) Health { return Health{Name: name, Detail: detail} }

func (h Health) String() string {
	if h.Ready {
		return h.Name + ": ready"
	}
	return h.Name + ": " + h.Detail
}
