// Package store is the SQLite-backed persistence collaborator: the durable
// home of per-tlid op histories, per-client submission counters, and user
// data rows.
//
// The core treats persistence as an external service; this package is its
// default implementation. Key properties:
//
//   - Op histories are append-only. Each (program, tlid) row holds the
//     tlid's full causal op sequence as JSON; SaveOplists overwrites whole
//     tlid rows, which is safe because histories only ever grow.
//   - Submission idempotency commits with the data it admits: SaveSubmission
//     bumps each (program, client) counter with a conditional upsert in the
//     same transaction as the histories, so a claim can never outlive a
//     failed write.
//   - Row writes are atomic single-row conditional upserts keyed by
//     (program, table tlid, schema version, user key). Concurrent writers to
//     the same key cannot interleave into duplicate rows; last applicant
//     committed wins.
//   - All list queries carry ORDER BY ... COLLATE BINARY so reads are
//     deterministic across replays.
//
// Database configuration: WAL mode for concurrent reads during writes,
// synchronous=NORMAL, busy_timeout=5000, foreign_keys=ON.
package store
