package pipeline

import (
	"context"
	"fmt"
	"slices"

	"strata/internal/dropframes"
	"strata/internal/longitudinal"
	"strata/internal/scheduler"
	"strata/internal/services"
	"strata/internal/stage"
	"strata/internal/timeseries"
)

// Target is the object every scheduled operation receives. Stage objects a
// plan does not need stay nil.
type Target struct {
	Timeseries   *timeseries.Timeseries
	Longitudinal *longitudinal.Longitudinal
	DropFrames   *dropframes.DropFrames
}

// HealthChecks runs every configured stage object's health check.
func (t *Target) HealthChecks(ctx context.Context) []stage.Health {
	var out []stage.Health
	if t.Timeseries != nil {
		out = append(out, t.Timeseries.HealthCheck(ctx))
	}
	if t.Longitudinal != nil {
		out = append(out, t.Longitudinal.HealthCheck(ctx))
	}
	if t.DropFrames != nil {
		out = append(out, t.DropFrames.HealthCheck(ctx))
	}
	return out
}

// Argument keys understood by the preprocess operation.
const (
	ArgTemporal = "temporal"
	ArgSpatial  = "spatial"
)

func unavailable(name, object string) stage.Result {
	return stage.Failure(name, services.Wrap(services.ErrConfiguration, "pipeline", "dispatch",
		fmt.Sprintf("%s stages are not configured for this run", object), nil))
}

func onTimeseries(name string, fn func(*timeseries.Timeseries, context.Context) stage.Result) scheduler.Operation[*Target] {
	return func(ctx context.Context, target *Target, _ scheduler.Args) (stage.Result, error) {
		if target.Timeseries == nil {
			return unavailable(name, "timeseries"), nil
		}
		return fn(target.Timeseries, ctx), nil
	}
}

func onLongitudinal(name string, fn func(*longitudinal.Longitudinal, context.Context) stage.Result) scheduler.Operation[*Target] {
	return func(ctx context.Context, target *Target, _ scheduler.Args) (stage.Result, error) {
		if target.Longitudinal == nil {
			return unavailable(name, "longitudinal"), nil
		}
		return fn(target.Longitudinal, ctx), nil
	}
}

func onDropFrames(name string, fn func(*dropframes.DropFrames, context.Context) stage.Result) scheduler.Operation[*Target] {
	return func(ctx context.Context, target *Target, _ scheduler.Args) (stage.Result, error) {
		if target.DropFrames == nil {
			return unavailable(name, "frame drop"), nil
		}
		return fn(target.DropFrames, ctx), nil
	}
}

// NewRegistry returns the closed set of operations a pipeline can schedule.
func NewRegistry() *scheduler.Registry[*Target] {
	reg := scheduler.NewRegistry[*Target]()

	reg.Register(timeseries.OpPreprocess, func(ctx context.Context, target *Target, args scheduler.Args) (stage.Result, error) {
		if target.Timeseries == nil {
			return unavailable(timeseries.OpPreprocess, "timeseries"), nil
		}
		temporal := args.Int(ArgTemporal, 0, 0)
		spatial := args.Int(ArgSpatial, 1, 0)
		return target.Timeseries.Preprocess(ctx, temporal, spatial), nil
	})
	reg.Register(timeseries.OpBandpassFilter, onTimeseries(timeseries.OpBandpassFilter, (*timeseries.Timeseries).BandpassFilter))
	reg.Register(timeseries.OpMeanProjection, onTimeseries(timeseries.OpMeanProjection, (*timeseries.Timeseries).MeanProjection))
	reg.Register(timeseries.OpMotionCorrect, onTimeseries(timeseries.OpMotionCorrect, (*timeseries.Timeseries).MotionCorrect))
	reg.Register(timeseries.OpCNMFe, onTimeseries(timeseries.OpCNMFe, (*timeseries.Timeseries).CNMFe))
	reg.Register(timeseries.OpExportCellSet, onTimeseries(timeseries.OpExportCellSet, (*timeseries.Timeseries).ExportCellSet))
	reg.Register(timeseries.OpEventDetection, onTimeseries(timeseries.OpEventDetection, (*timeseries.Timeseries).EventDetection))
	reg.Register(timeseries.OpDeconvolve, onTimeseries(timeseries.OpDeconvolve, (*timeseries.Timeseries).Deconvolve))
	reg.Register(timeseries.OpExportSpikeEvents, onTimeseries(timeseries.OpExportSpikeEvents, (*timeseries.Timeseries).ExportSpikeEvents))

	reg.Register(longitudinal.OpCalculateDFF, onLongitudinal(longitudinal.OpCalculateDFF, (*longitudinal.Longitudinal).CalculateDFF))
	reg.Register(longitudinal.OpLongitudinalRegistration, onLongitudinal(longitudinal.OpLongitudinalRegistration, (*longitudinal.Longitudinal).Register))
	reg.Register(longitudinal.OpMaxProjection, onLongitudinal(longitudinal.OpMaxProjection, (*longitudinal.Longitudinal).MaxProjection))

	reg.Register(dropframes.OpDropFrames, onDropFrames(dropframes.OpDropFrames, (*dropframes.DropFrames).DropFrames))
	reg.Register(dropframes.OpQuarantineDuplicates, onDropFrames(dropframes.OpQuarantineDuplicates, (*dropframes.DropFrames).QuarantineDuplicates))
	return reg
}

// Step is one planned operation.
type Step struct {
	Name string
	Args scheduler.Args
}

// Steps turns operation names into steps without arguments.
func Steps(names ...string) []Step {
	out := make([]Step, len(names))
	for i, name := range names {
		out[i] = Step{Name: name}
	}
	return out
}

// Timeseries phases.
const (
	PhasePrepare = "prepare"
	PhaseCells   = "cells"
	PhaseEvents  = "events"
	PhaseAll     = "all"
)

// Phases lists the timeseries phases in execution order.
var Phases = []string{PhasePrepare, PhaseCells, PhaseEvents, PhaseAll}

// TimeseriesPlan returns the steps of phase. temporal and spatial feed the
// preprocess step; non-positive values use the configured defaults.
func TimeseriesPlan(phase string, temporal, spatial int) ([]Step, error) {
	ops := timeseries.Operations
	var names []string
	switch phase {
	case PhasePrepare:
		names = ops[:slices.Index(ops, timeseries.OpCNMFe)]
	case PhaseCells:
		names = []string{timeseries.OpCNMFe}
	case PhaseEvents:
		names = ops[slices.Index(ops, timeseries.OpExportCellSet):]
	case PhaseAll, "":
		names = ops
	default:
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "plan",
			fmt.Sprintf("unknown phase %q (want one of %v)", phase, Phases), nil)
	}
	steps := Steps(names...)
	if steps[0].Name == timeseries.OpPreprocess {
		steps[0].Args = scheduler.Args{Keyword: map[string]any{ArgTemporal: temporal, ArgSpatial: spatial}}
	}
	return steps, nil
}

// LongitudinalPlan returns the cross-day registration steps.
func LongitudinalPlan() []Step {
	return Steps(longitudinal.Operations...)
}

// DropFramesPlan returns the frame-drop workflow steps.
func DropFramesPlan() []Step {
	return Steps(dropframes.Operations...)
}
