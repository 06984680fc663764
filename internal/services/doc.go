// Package services defines shared utilities consumed by the pipeline stages
// and the external imaging bridge.
//
// Key responsibilities:
//   - Context helpers that stamp stage names, day labels, run identifiers, and
//     task positions for logging.
//   - Structured error markers plus the Wrap helper so failures can be matched
//     with errors.Is and summarized into status tables.
//
// Use these helpers when wiring new stage logic so operational behaviour stays
// uniform across the pipeline.
package services
