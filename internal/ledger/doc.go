// Package ledger persists pipeline state in a SQLite database inside the
// output directory.
//
// Two kinds of state live here. The frozen catalog (day series, recordings,
// and every derived stage file set) is written once on first build and
// reused on later runs so the day-to-file mapping stays stable; DropCatalog
// is the explicit way to re-derive it. The stage run table records the
// per-stage, per-day outcome of every scheduler run for status reporting.
//
// Checkpoint state is never stored: completion always comes from the output
// directory listing.
package ledger
