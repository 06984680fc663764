// Package logging builds the slog loggers used by strata.
//
// Console output uses a compact single-line handler that lifts the component,
// day and stage attributes into the line prefix. The log file always receives
// JSON. WithContext tags a logger with the stage, day, run id and task index
// carried on a context.
package logging
