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

// ErrDuplicateKey is returned by InsertRow without upsert when the user key
// already holds a row at the table's current version.
var ErrDuplicateKey = errors.New("store: row key already exists")

// RowKey addresses one table's row namespace: rows are scoped to a program,
// a table tlid, and the table's schema version at write time.
type RowKey struct {
	Program uuid.UUID
	Table   op.TLID
	Version int
}

// StoredRow is one persisted user data row.
type StoredRow struct {
	Key  string
	ID   uuid.UUID
	Data []byte
}

// InsertRow persists a row under the user key. With upsert the write is a
// single atomic conditional upsert - concurrent writers to the same key
// resolve to last-applicant-committed-wins, never duplicate rows. Without
// upsert, an occupied key returns ErrDuplicateKey.
func (s *Store) InsertRow(ctx context.Context, key RowKey, userKey string, id uuid.UUID, data []byte, upsert bool) error {
	if upsert {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO user_data (id, program_id, table_tlid, user_version, key, data)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(program_id, table_tlid, user_version, key) DO UPDATE SET
				id = excluded.id,
				data = excluded.data
		`, id.String(), key.Program.String(), int64(key.Table), key.Version, userKey, string(data))
		if err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
		return nil
	}

	// ON CONFLICT DO NOTHING plus a rows-affected check distinguishes the
	// duplicate-key case without parsing driver errors.
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO user_data (id, program_id, table_tlid, user_version, key, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(program_id, table_tlid, user_version, key) DO NOTHING
	`, id.String(), key.Program.String(), int64(key.Table), key.Version, userKey, string(data))
	if err != nil {
		return fmt.Errorf("insert row: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert row: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("insert row %q: %w", userKey, ErrDuplicateKey)
	}
	return nil
}

// GetRow fetches one row by user key. found=false when the key is empty.
func (s *Store) GetRow(ctx context.Context, key RowKey, userKey string) (row StoredRow, found bool, err error) {
	var idStr, data string
	err = s.db.QueryRowContext(ctx, `
		SELECT id, data FROM user_data
		WHERE program_id = ? AND table_tlid = ? AND user_version = ? AND key = ?
	`, key.Program.String(), int64(key.Table), key.Version, userKey).Scan(&idStr, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRow{}, false, nil
	}
	if err != nil {
		return StoredRow{}, false, fmt.Errorf("get row: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return StoredRow{}, false, fmt.Errorf("get row: parse id: %w", err)
	}
	return StoredRow{Key: userKey, ID: id, Data: []byte(data)}, true, nil
}

// GetRows fetches the rows for the given user keys. Missing keys are simply
// absent from the result. Deterministic ordering: key ascending, binary
// collation.
func (s *Store) GetRows(ctx context.Context, key RowKey, userKeys []string) ([]StoredRow, error) {
	if len(userKeys) == 0 {
		return []StoredRow{}, nil
	}

	placeholders := make([]string, len(userKeys))
	args := []any{key.Program.String(), int64(key.Table), key.Version}
	for i, k := range userKeys {
		placeholders[i] = "?"
		args = append(args, k)
	}

	query := `
		SELECT key, id, data FROM user_data
		WHERE program_id = ? AND table_tlid = ? AND user_version = ?
		AND key IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY key COLLATE BINARY ASC
	`
	return s.queryRows(ctx, query, args...)
}

// AllRows returns every row in the table's namespace, deterministically
// ordered by key.
func (s *Store) AllRows(ctx context.Context, key RowKey) ([]StoredRow, error) {
	return s.queryRows(ctx, `
		SELECT key, id, data FROM user_data
		WHERE program_id = ? AND table_tlid = ? AND user_version = ?
		ORDER BY key COLLATE BINARY ASC
	`, key.Program.String(), int64(key.Table), key.Version)
}

func (s *Store) queryRows(ctx context.Context, query string, args ...any) ([]StoredRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out []StoredRow
	for rows.Next() {
		var userKey, idStr, data string
		if err := rows.Scan(&userKey, &idStr, &data); err != nil {
			return nil, fmt.Errorf("query rows: scan: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("query rows: parse id: %w", err)
		}
		out = append(out, StoredRow{Key: userKey, ID: id, Data: []byte(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query rows: iterate: %w", err)
	}

	if out == nil {
		out = []StoredRow{}
	}
	return out, nil
}

// DeleteRow removes one row. Hard delete; tombstoning is not this layer's
// concern.
func (s *Store) DeleteRow(ctx context.Context, key RowKey, userKey string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM user_data
		WHERE program_id = ? AND table_tlid = ? AND user_version = ? AND key = ?
	`, key.Program.String(), int64(key.Table), key.Version, userKey)
	if err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	return nil
}

// DeleteAllRows clears the table's row namespace at the given version.
func (s *Store) DeleteAllRows(ctx context.Context, key RowKey) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM user_data
		WHERE program_id = ? AND table_tlid = ? AND user_version = ?
	`, key.Program.String(), int64(key.Table), key.Version)
	if err != nil {
		return fmt.Errorf("delete all rows: %w", err)
	}
	return nil
}

// CountRows returns the number of rows at the table's version.
func (s *Store) CountRows(ctx context.Context, key RowKey) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_data
		WHERE program_id = ? AND table_tlid = ? AND user_version = ?
	`, key.Program.String(), int64(key.Table), key.Version).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return count, nil
}

// HasRows reports whether the table holds at least one row at the version.
// Drives the schema lock: a table with rows cannot change columns without a
// migration.
func (s *Store) HasRows(ctx context.Context, key RowKey) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM user_data
		WHERE program_id = ? AND table_tlid = ? AND user_version = ?
		LIMIT 1
	`, key.Program.String(), int64(key.Table), key.Version).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has rows: %w", err)
	}
	return true, nil
}
