// Package schema models user data table definitions.
//
// A column's identity is NOT its name. Each column carries two generated
// identity UUIDs - one for its name slot, one for its type slot - assigned
// when the column is added and never changed afterwards. Rename and retype
// edits address a column by identity, so rows written before a rename remain
// attributable to the same logical column under its new name.
package schema

import (
	"github.com/google/uuid"

	"github.com/roach88/tapestry/internal/value"
)

// ColType is the declared type of a table column.
type ColType string

const (
	TInt      ColType = "Int"
	TFloat    ColType = "Float"
	TStr      ColType = "Str"
	TBool     ColType = "Bool"
	TDatetime ColType = "Datetime"
	TList     ColType = "List"
	TUUID     ColType = "UUID"
	TObj      ColType = "Obj"
)

// ValidColTypes lists every declared type a column may hold.
var ValidColTypes = []ColType{TInt, TFloat, TStr, TBool, TDatetime, TList, TUUID, TObj}

// IsValid reports whether t is a known column type.
func (t ColType) IsValid() bool {
	for _, v := range ValidColTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Accepts reports whether a value of the given runtime kind may be stored in
// a column of this declared type. Explicit null is accepted by every column
// to tolerate rows written mid-migration.
func (t ColType) Accepts(k value.Kind) bool {
	if k == value.KindNull {
		return true
	}
	switch t {
	case TInt:
		return k == value.KindInt
	case TFloat:
		return k == value.KindFloat
	case TStr:
		return k == value.KindStr
	case TBool:
		return k == value.KindBool
	case TDatetime:
		return k == value.KindDatetime
	case TList:
		return k == value.KindList
	case TUUID:
		return k == value.KindUUID
	case TObj:
		return k == value.KindObj
	default:
		return false
	}
}

// Column is one column of a table definition.
//
// NameID and TypeID are the column's stable identity; Name and Type are its
// current, freely editable display values. A column added but not yet named
// or typed has empty Name/Type - such columns are incomplete and excluded
// from row validation until both slots are filled.
type Column struct {
	NameID uuid.UUID `json:"name_id"`
	TypeID uuid.UUID `json:"type_id"`
	Name   string    `json:"name"`
	Type   ColType   `json:"type"`
}

// Complete reports whether the column has both a name and a valid type.
func (c Column) Complete() bool {
	return c.Name != "" && c.Type.IsValid()
}

// Migration marks an in-flight schema change on a locked table. Rows keep
// writing at the current version until the migration commits; execution
// mechanics live outside this core.
type Migration struct {
	TargetVersion int `json:"target_version"`
}

// DB is a user data table definition embedded in a program snapshot.
type DB struct {
	Name             string     `json:"name"`
	Version          int        `json:"version"`
	Cols             []Column   `json:"cols"`
	PendingMigration *Migration `json:"pending_migration,omitempty"`
}

// Clone returns a deep copy. Fold steps mutate definitions in place, so
// snapshots hand out clones to keep prior snapshots immutable.
func (db *DB) Clone() *DB {
	if db == nil {
		return nil
	}
	cp := *db
	cp.Cols = make([]Column, len(db.Cols))
	copy(cp.Cols, db.Cols)
	if db.PendingMigration != nil {
		m := *db.PendingMigration
		cp.PendingMigration = &m
	}
	return &cp
}

// ColByNameID finds a column by its name identity. Returns nil if no column
// carries that identity - callers treat that as a tolerated no-op per the
// fold's malformed-op policy.
func (db *DB) ColByNameID(id uuid.UUID) *Column {
	for i := range db.Cols {
		if db.Cols[i].NameID == id {
			return &db.Cols[i]
		}
	}
	return nil
}

// ColByTypeID finds a column by its type identity.
func (db *DB) ColByTypeID(id uuid.UUID) *Column {
	for i := range db.Cols {
		if db.Cols[i].TypeID == id {
			return &db.Cols[i]
		}
	}
	return nil
}

// ColByName finds a complete column by its current display name.
func (db *DB) ColByName(name string) *Column {
	for i := range db.Cols {
		if db.Cols[i].Complete() && db.Cols[i].Name == name {
			return &db.Cols[i]
		}
	}
	return nil
}

// AddCol appends a blank column with the given identities.
func (db *DB) AddCol(nameID, typeID uuid.UUID) {
	db.Cols = append(db.Cols, Column{NameID: nameID, TypeID: typeID})
}

// DeleteCol removes the column with the given name identity.
// Unknown identities are a no-op.
func (db *DB) DeleteCol(nameID uuid.UUID) {
	for i := range db.Cols {
		if db.Cols[i].NameID == nameID {
			db.Cols = append(db.Cols[:i], db.Cols[i+1:]...)
			return
		}
	}
}

// ColumnNames returns the current names of all complete columns, in column
// order. This is the name set rows are validated against.
func (db *DB) ColumnNames() []string {
	names := make([]string, 0, len(db.Cols))
	for _, c := range db.Cols {
		if c.Complete() {
			names = append(names, c.Name)
		}
	}
	return names
}
