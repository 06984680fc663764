// Package catalog discovers timestamped recordings in a data directory, groups
// them into ordinal day series (day_1, day_2, ...), and derives the per-stage
// output file names that the checkpoint tracker and stage objects consume.
//
// File sets keep a nested per-day shape that always mirrors the catalog:
// names are derived by flattening the day series, applying the stem + suffix
// rename into the output directory, and re-splitting by the original per-day
// counts.
package catalog
