// Package sqlite persists analysis runs in a SQLite database.
//
// Each run is one row in forest_runs keyed by a UUID, holding the flat
// results row, the resolved configuration JSON, and the build version.
// Per-step timings and failures go to forest_run_steps. The schema is
// owned by the embedded golang-migrate migrations in migrations/ and is
// brought up to date by Open.
//
// Dependency rule: sqlite may import internal/report for the results row
// type. Analysis packages never import sqlite.
package sqlite
