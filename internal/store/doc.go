// Package store keeps what fieldop produces in a SQLite file: compiled
// kernels and the run log of outer operator calls.
//
// Kernels are content-addressed. A kernel row is keyed by ir.ProgramHash of
// its canonical program, so compiling the same operator twice stores one
// row, and a row edited by hand fails its hash check on read. Only the
// compiled operator is stored; its nested operators are inlined into it.
//
// The run log gets one row per outer call, whichever backend ran it. Rows
// are numbered by the database (seq starts at 1) and always read back in
// seq order. QueryRuns filters them with a queryir predicate, which is how
// `fieldop inspect --where` reaches the log.
//
// The schema lives in schema.sql. Later indexes are added by numbered
// migrations tracked in PRAGMA user_version. The database runs in WAL mode
// so inspect can read while a run is writing.
package store
