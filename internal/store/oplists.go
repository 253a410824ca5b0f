package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/tapestry/internal/op"
)

// TLOplist is one tlid's full op history as stored: the causal op sequence,
// the post-fold digest, and whether the toplevel is currently deleted.
type TLOplist struct {
	TLID    op.TLID
	Ops     []op.Op
	Digest  string
	Deleted bool
}

// Claim is an idempotency counter to record alongside a submission's
// histories: the client's new high-water op counter.
type Claim struct {
	ClientID string
	OpCtr    int64
}

// ErrStaleSubmission is returned by SaveSubmission when a claim's counter is
// not strictly newer than the stored one; nothing is written.
var ErrStaleSubmission = errors.New("store: stale submission counter")

// SaveOplists upserts the given per-tlid histories in a single transaction.
// This is the persist-diff write: callers pass only the tlids whose post-fold
// definition changed. Histories are append-only, so overwriting a tlid's row
// with its extended history is safe.
func (s *Store) SaveOplists(ctx context.Context, programID uuid.UUID, diffs []TLOplist) error {
	return s.SaveSubmission(ctx, programID, nil, diffs)
}

// SaveSubmission records an accepted submission: every claimed counter and
// every touched tlid's history commit in one transaction. A crash cannot
// leave a counter advanced with its edits unwritten, so a client retrying
// the same (client, op_ctr) after a failed persist is not filtered as stale.
// A claim that has lost to a newer stored counter rolls back everything and
// returns ErrStaleSubmission.
func (s *Store) SaveSubmission(ctx context.Context, programID uuid.UUID, claims []Claim, diffs []TLOplist) error {
	if len(claims) == 0 && len(diffs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save submission: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, c := range claims {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO client_counters (program_id, client_id, op_ctr)
			VALUES (?, ?, ?)
			ON CONFLICT(program_id, client_id) DO UPDATE SET
				op_ctr = excluded.op_ctr
			WHERE excluded.op_ctr > client_counters.op_ctr
		`, programID.String(), c.ClientID, c.OpCtr)
		if err != nil {
			return fmt.Errorf("save submission: claim %s: %w", c.ClientID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("save submission: claim %s: rows affected: %w", c.ClientID, err)
		}
		if affected == 0 {
			return fmt.Errorf("save submission: client %s op_ctr %d: %w", c.ClientID, c.OpCtr, ErrStaleSubmission)
		}
	}

	for _, diff := range diffs {
		opsJSON, err := op.MarshalOps(diff.Ops)
		if err != nil {
			return fmt.Errorf("save submission: tlid %d: %w", diff.TLID, err)
		}

		deleted := 0
		if diff.Deleted {
			deleted = 1
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO toplevel_oplists (program_id, tlid, ops, digest, deleted)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(program_id, tlid) DO UPDATE SET
				ops = excluded.ops,
				digest = excluded.digest,
				deleted = excluded.deleted
		`, programID.String(), int64(diff.TLID), string(opsJSON), diff.Digest, deleted)
		if err != nil {
			return fmt.Errorf("save submission: tlid %d: %w", diff.TLID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save submission: commit: %w", err)
	}
	return nil
}

// LoadOplists returns op histories for a program in deterministic order
// (tlid ascending). A nil tlids slice loads every tlid. Histories of deleted
// toplevels are included only when includeDeleted is set.
func (s *Store) LoadOplists(ctx context.Context, programID uuid.UUID, tlids []op.TLID, includeDeleted bool) ([]TLOplist, error) {
	query := `
		SELECT tlid, ops, digest, deleted
		FROM toplevel_oplists
		WHERE program_id = ?
	`
	args := []any{programID.String()}

	if !includeDeleted {
		query += " AND deleted = 0"
	}
	if tlids != nil {
		placeholders := make([]string, len(tlids))
		for i, id := range tlids {
			placeholders[i] = "?"
			args = append(args, int64(id))
		}
		query += " AND tlid IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY tlid ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load oplists: %w", err)
	}
	defer rows.Close()

	var out []TLOplist
	for rows.Next() {
		var (
			tlid    int64
			opsJSON string
			digest  string
			deleted int
		)
		if err := rows.Scan(&tlid, &opsJSON, &digest, &deleted); err != nil {
			return nil, fmt.Errorf("load oplists: scan: %w", err)
		}

		ops, err := op.UnmarshalOps([]byte(opsJSON))
		if err != nil {
			return nil, fmt.Errorf("load oplists: tlid %d: %w", tlid, err)
		}

		out = append(out, TLOplist{
			TLID:    op.TLID(tlid),
			Ops:     ops,
			Digest:  digest,
			Deleted: deleted != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load oplists: iterate: %w", err)
	}

	if out == nil {
		out = []TLOplist{}
	}
	return out, nil
}

// IsLatestSubmission reports whether opCtr is strictly newer than the last
// accepted counter for the client. Read-only; the counter only advances via
// SaveSubmission, in the same transaction as the histories it admits.
func (s *Store) IsLatestSubmission(ctx context.Context, programID uuid.UUID, clientID string, opCtr int64) (bool, error) {
	var stored int64
	err := s.db.QueryRowContext(ctx, `
		SELECT op_ctr FROM client_counters
		WHERE program_id = ? AND client_id = ?
	`, programID.String(), clientID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("is latest submission: %w", err)
	}
	return opCtr > stored, nil
}
