package preflight

import (
	"context"
	"fmt"

	"strata/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional results are reported but never block a run.
	Optional bool
}

// RunAll executes all applicable preflight checks for dataDir.
func RunAll(ctx context.Context, cfg *config.Config, dataDir string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Data directory", dataDir))
	results = append(results, CheckOutputDirectory("Output directory", cfg.OutputDir(dataDir)))

	for _, dep := range CheckSystemDeps(cfg) {
		r := Result{Name: dep.Name, Passed: dep.Available, Optional: dep.Optional, Detail: dep.Command}
		if !dep.Available {
			r.Detail = fmt.Sprintf("%s (%s)", dep.Detail, dep.Description)
		}
		results = append(results, r)
	}

	if len(cfg.Events.KafkaBrokers) > 0 {
		kafkaResult := CheckKafka(ctx, cfg.Events.KafkaBrokers)
		kafkaResult.Optional = true
		results = append(results, kafkaResult)
	}
	return results
}

// Failures returns the required checks that did not pass.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}
