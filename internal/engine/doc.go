// Package engine orchestrates program edits end to end: it claims submission
// counters, folds fresh oplists onto the stored snapshot, persists the grown
// histories, and publishes change events.
//
// Writes to one program are serialized by a per-program lock, so folding and
// persisting act as a single-writer loop per program. Reads (Load, Route)
// fold from storage without taking the write lock; SQLite's WAL mode keeps
// them consistent.
package engine
