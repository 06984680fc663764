// Package preflight provides readiness checks for the filesystem paths and
// external services Strata depends on.
//
// The pipeline runs RunAll before enqueuing any stage; a failed required check
// stops the run before hours of imaging work are wasted. The CLI "strata
// preflight" command renders the same results.
package preflight
