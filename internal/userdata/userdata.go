// Package userdata is the typed data store layered on a program's live
// canvas. Rows are validated against the table's current schema before they
// touch storage, so the persisted shape always matches what the editor shows.
//
// Validation resolves columns by their current names. Because the fold layer
// tracks columns by stable identity, a renamed column keeps its rows: the
// same stored field simply validates under the new name on the next write.
package userdata

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/roach88/tapestry/internal/canvas"
	"github.com/roach88/tapestry/internal/op"
	"github.com/roach88/tapestry/internal/schema"
	"github.com/roach88/tapestry/internal/store"
	"github.com/roach88/tapestry/internal/value"
)

// legacyIDField is stripped from incoming rows before validation. Old
// clients included the storage row id as an ordinary field.
const legacyIDField = "id"

// RowStore is the persistence surface userdata needs. *store.Store
// satisfies it.
type RowStore interface {
	InsertRow(ctx context.Context, key store.RowKey, userKey string, id uuid.UUID, data []byte, upsert bool) error
	GetRow(ctx context.Context, key store.RowKey, userKey string) (store.StoredRow, bool, error)
	GetRows(ctx context.Context, key store.RowKey, userKeys []string) ([]store.StoredRow, error)
	AllRows(ctx context.Context, key store.RowKey) ([]store.StoredRow, error)
	DeleteRow(ctx context.Context, key store.RowKey, userKey string) error
	DeleteAllRows(ctx context.Context, key store.RowKey) error
	CountRows(ctx context.Context, key store.RowKey) (int64, error)
	HasRows(ctx context.Context, key store.RowKey) (bool, error)
}

// Row is one decoded user data row.
type Row struct {
	Key   string
	ID    uuid.UUID
	Value value.Obj
}

// Store validates and persists rows for one program's tables.
type Store struct {
	program uuid.UUID
	rows    RowStore
}

// New returns a Store scoped to the given program.
func New(program uuid.UUID, rows RowStore) *Store {
	return &Store{program: program, rows: rows}
}

func (s *Store) key(t canvas.LiveTable) store.RowKey {
	return store.RowKey{Program: s.program, Table: t.TLID, Version: t.DB.Version}
}

// Set validates row against the table's schema and persists it under
// userKey with a fresh row id. With upsert an occupied key is replaced;
// without it the write fails with store.ErrDuplicateKey.
func (s *Store) Set(ctx context.Context, t canvas.LiveTable, userKey string, row value.Obj, upsert bool) (uuid.UUID, error) {
	clean, err := ValidateRow(t.DB, row)
	if err != nil {
		return uuid.Nil, err
	}
	data, err := value.EncodeRow(clean)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	if err := s.rows.InsertRow(ctx, s.key(t), userKey, id, data, upsert); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Get fetches one row by user key. found=false when the key holds nothing
// at the table's current version.
func (s *Store) Get(ctx context.Context, t canvas.LiveTable, userKey string) (value.Obj, bool, error) {
	stored, found, err := s.rows.GetRow(ctx, s.key(t), userKey)
	if err != nil || !found {
		return nil, false, err
	}
	obj, err := value.DecodeRow(stored.Data)
	if err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

// GetMany fetches the rows for the given user keys, omitting keys that hold
// nothing. Rows come back in stable byte order of their keys.
func (s *Store) GetMany(ctx context.Context, t canvas.LiveTable, userKeys []string) ([]Row, error) {
	stored, err := s.rows.GetRows(ctx, s.key(t), userKeys)
	if err != nil {
		return nil, err
	}
	return decodeRows(stored)
}

// GetAll fetches every row in the table at its current version, in stable
// byte order of their keys.
func (s *Store) GetAll(ctx context.Context, t canvas.LiveTable) ([]Row, error) {
	stored, err := s.rows.AllRows(ctx, s.key(t))
	if err != nil {
		return nil, err
	}
	return decodeRows(stored)
}

// Delete removes the row under userKey. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, t canvas.LiveTable, userKey string) error {
	return s.rows.DeleteRow(ctx, s.key(t), userKey)
}

// DeleteAll removes every row in the table at its current version.
func (s *Store) DeleteAll(ctx context.Context, t canvas.LiveTable) error {
	return s.rows.DeleteAllRows(ctx, s.key(t))
}

// Count returns the number of rows in the table at its current version.
func (s *Store) Count(ctx context.Context, t canvas.LiveTable) (int64, error) {
	return s.rows.CountRows(ctx, s.key(t))
}

// UnlockedTables returns the canvas's live tables that hold no rows at
// their current version. Tables with data are locked: the editor must not
// reshape a schema that rows already depend on.
func (s *Store) UnlockedTables(ctx context.Context, c *canvas.Canvas) ([]canvas.LiveTable, error) {
	var out []canvas.LiveTable
	for _, t := range c.Tables() {
		has, err := s.rows.HasRows(ctx, s.key(t))
		if err != nil {
			return nil, err
		}
		if !has {
			out = append(out, t)
		}
	}
	return out, nil
}

// TableByTLID resolves a live table on the canvas, or an UNKNOWN_TABLE
// schema error.
func TableByTLID(c *canvas.Canvas, id op.TLID) (canvas.LiveTable, error) {
	db := c.TableFor(id)
	if db == nil {
		return canvas.LiveTable{}, newUnknownTableError(strconv.FormatInt(int64(id), 10))
	}
	return canvas.LiveTable{TLID: id, DB: db}, nil
}

// TableByName resolves a live table by its current name.
func TableByName(c *canvas.Canvas, name string) (canvas.LiveTable, error) {
	id, db := c.TableByName(name)
	if db == nil {
		return canvas.LiveTable{}, newUnknownTableError(name)
	}
	return canvas.LiveTable{TLID: id, DB: db}, nil
}

// ValidateRow checks row against the table's live schema and returns the
// row that should be persisted. The field name set must exactly match the
// complete columns; each value's kind must be one the column type accepts.
// A legacy "id" field is dropped before checking, but only when the schema
// itself has no "id" column. Null is storable in every column.
func ValidateRow(db *schema.DB, row value.Obj) (value.Obj, error) {
	clean := make(value.Obj, len(row))
	for name, v := range row {
		if name == legacyIDField && db.ColByName(legacyIDField) == nil {
			continue
		}
		clean[name] = v
	}

	for name, v := range clean {
		col := db.ColByName(name)
		if col == nil {
			return nil, newUnknownFieldError(db.Name, name)
		}
		if !col.Type.Accepts(v.Kind()) {
			return nil, newTypeMismatchError(db.Name, name, col.Type, v.Kind())
		}
	}
	for _, name := range db.ColumnNames() {
		if _, ok := clean[name]; !ok {
			return nil, newMissingFieldError(db.Name, name)
		}
	}
	return clean, nil
}

func decodeRows(stored []store.StoredRow) ([]Row, error) {
	out := make([]Row, 0, len(stored))
	for _, r := range stored {
		obj, err := value.DecodeRow(r.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, Row{Key: r.Key, ID: r.ID, Value: obj})
	}
	return out, nil
}
