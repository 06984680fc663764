// Package config loads, normalizes, and validates Strata configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// STRATA_IMAGING_BINARY. The Config type centralizes every knob the CLI and
// pipeline need: recording naming rules, stage parameters handed to the
// imaging capability, detector thresholds, and event publication.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
