// Package main hosts the Strata CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration, opens a pipeline
// session for the requested data directory, and renders results as tables.
// Stage logic lives in the internal packages; commands here only plan steps
// and present outcomes.
package main
