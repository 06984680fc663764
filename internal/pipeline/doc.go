// Package pipeline wires the stage objects, the scheduler, and the ledger
// into runnable workflows for one data directory.
//
// A Session owns the advisory lock on the output directory and the ledger
// handle. A Runner resolves a plan of named steps through the operation
// registry, drives them with a single-worker scheduler, fans events out to the
// configured sinks, and persists the resulting status table. Inspect offers a
// read-only view of checkpoint state for the status command.
package pipeline
