// Package op defines the structural edits that make up a program's history.
//
// A program is never stored as source text. It is the left-fold of an
// append-only log of Ops, each addressed to one toplevel definition by its
// tlid. Op is a sealed variant type in the same style as value.Value: the
// concrete edit kinds in this file are the only implementations.
package op

import (
	"github.com/google/uuid"

	"github.com/roach88/tapestry/internal/schema"
)

// TLID is the stable identity of one toplevel definition (handler, table,
// function, or type). Assigned once at creation, never reused. 63-bit so it
// survives JSON consumers that only have float64 integers up to 2^53 - the
// generator keeps to the positive int64 range and storage treats it opaquely.
type TLID int64

// Space is the trigger category of a handler.
type Space string

const (
	SpaceHTTP   Space = "HTTP"
	SpaceCron   Space = "CRON"
	SpaceWorker Space = "WORKER"
	SpaceREPL   Space = "REPL"
	// SpaceOther covers legacy handlers with an unrecognized space. They are
	// kept in the snapshot but never routed.
	SpaceOther Space = "OTHER"
)

// Pos is a toplevel's position on the editor canvas. Moves that do not
// change it are structurally valid but produce no persisted diff.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Handler is an event handler definition. For HTTP handlers Route is a
// slash-delimited template (literal and :variable segments) and Method the
// HTTP verb; other spaces are triggered by Name.
type Handler struct {
	Name   string `json:"name"`
	Space  Space  `json:"space"`
	Route  string `json:"route,omitempty"`
	Method string `json:"method,omitempty"`
	// Code is the handler body, opaque to this core. The expression
	// interpreter that runs it is an external collaborator.
	Code string `json:"code"`
}

// Function is a user-defined function.
type Function struct {
	Name   string   `json:"name"`
	Params []string `json:"params"`
	Code   string   `json:"code"`
}

// NamedField is one field of a user-defined record type.
type NamedField struct {
	Name string         `json:"name"`
	Type schema.ColType `json:"type"`
}

// TypeDef is a user-defined record type.
type TypeDef struct {
	Name   string       `json:"name"`
	Fields []NamedField `json:"fields"`
}

// Op is one structural edit targeting a tlid.
//
// HasEffect classifies whether the op changes program state. Savepoints are
// pure markers; everything else is effectful. Whether an effectful op
// actually changed anything (a move to the same position, a rename against a
// missing identity) is decided after folding by the canonical-bytes diff,
// which gates persistence and notification.
type Op interface {
	TLID() TLID
	HasEffect() bool
	op() // sealed
}

// CreateDB creates a new data table.
type CreateDB struct {
	ID   TLID   `json:"tlid"`
	Name string `json:"name"`
}

// RenameDB renames an existing data table.
type RenameDB struct {
	ID   TLID   `json:"tlid"`
	Name string `json:"name"`
}

// AddDBCol appends a blank column carrying fresh identity ids. The ids are
// generated by the client at edit time so the fold stays deterministic.
type AddDBCol struct {
	ID     TLID      `json:"tlid"`
	NameID uuid.UUID `json:"name_id"`
	TypeID uuid.UUID `json:"type_id"`
}

// SetDBColName names (or renames) the column whose name identity matches.
type SetDBColName struct {
	ID     TLID      `json:"tlid"`
	NameID uuid.UUID `json:"name_id"`
	Name   string    `json:"name"`
}

// SetDBColType types (or retypes) the column whose type identity matches.
type SetDBColType struct {
	ID     TLID           `json:"tlid"`
	TypeID uuid.UUID      `json:"type_id"`
	Type   schema.ColType `json:"type"`
}

// DeleteDBCol removes the column whose name identity matches.
type DeleteDBCol struct {
	ID     TLID      `json:"tlid"`
	NameID uuid.UUID `json:"name_id"`
}

// CreateDBMigration begins a schema migration on a locked table, targeting
// the next schema version.
type CreateDBMigration struct {
	ID TLID `json:"tlid"`
}

// SetHandler defines or redefines a handler.
type SetHandler struct {
	ID      TLID    `json:"tlid"`
	Handler Handler `json:"handler"`
}

// SetFunction defines or redefines a user function.
type SetFunction struct {
	ID       TLID     `json:"tlid"`
	Function Function `json:"function"`
}

// SetType defines or redefines a user type.
type SetType struct {
	ID   TLID    `json:"tlid"`
	Type TypeDef `json:"type"`
}

// MoveTL repositions a toplevel on the editor canvas.
type MoveTL struct {
	ID  TLID `json:"tlid"`
	Pos Pos  `json:"pos"`
}

// DeleteTL moves a toplevel from the live set to the deleted set. The
// definition is preserved for undo and reference display.
type DeleteTL struct {
	ID TLID `json:"tlid"`
}

// DeleteFunction deletes a user function.
type DeleteFunction struct {
	ID TLID `json:"tlid"`
}

// DeleteType deletes a user type.
type DeleteType struct {
	ID TLID `json:"tlid"`
}

// Savepoint marks an undo boundary. It never changes state.
type Savepoint struct {
	ID TLID `json:"tlid"`
}

// UndoTL reverts the most recent effectful op applied to the tlid.
type UndoTL struct {
	ID TLID `json:"tlid"`
}

// RedoTL reverses the most recent UndoTL for the tlid.
type RedoTL struct {
	ID TLID `json:"tlid"`
}

func (o CreateDB) TLID() TLID          { return o.ID }
func (o RenameDB) TLID() TLID          { return o.ID }
func (o AddDBCol) TLID() TLID          { return o.ID }
func (o SetDBColName) TLID() TLID      { return o.ID }
func (o SetDBColType) TLID() TLID      { return o.ID }
func (o DeleteDBCol) TLID() TLID       { return o.ID }
func (o CreateDBMigration) TLID() TLID { return o.ID }
func (o SetHandler) TLID() TLID        { return o.ID }
func (o SetFunction) TLID() TLID       { return o.ID }
func (o SetType) TLID() TLID           { return o.ID }
func (o MoveTL) TLID() TLID            { return o.ID }
func (o DeleteTL) TLID() TLID          { return o.ID }
func (o DeleteFunction) TLID() TLID    { return o.ID }
func (o DeleteType) TLID() TLID        { return o.ID }
func (o Savepoint) TLID() TLID         { return o.ID }
func (o UndoTL) TLID() TLID            { return o.ID }
func (o RedoTL) TLID() TLID            { return o.ID }

func (CreateDB) HasEffect() bool          { return true }
func (RenameDB) HasEffect() bool          { return true }
func (AddDBCol) HasEffect() bool          { return true }
func (SetDBColName) HasEffect() bool      { return true }
func (SetDBColType) HasEffect() bool      { return true }
func (DeleteDBCol) HasEffect() bool       { return true }
func (CreateDBMigration) HasEffect() bool { return true }
func (SetHandler) HasEffect() bool        { return true }
func (SetFunction) HasEffect() bool       { return true }
func (SetType) HasEffect() bool           { return true }
func (MoveTL) HasEffect() bool            { return true }
func (DeleteTL) HasEffect() bool          { return true }
func (DeleteFunction) HasEffect() bool    { return true }
func (DeleteType) HasEffect() bool        { return true }
func (Savepoint) HasEffect() bool         { return false }
func (UndoTL) HasEffect() bool            { return true }
func (RedoTL) HasEffect() bool            { return true }

func (CreateDB) op()          {}
func (RenameDB) op()          {}
func (AddDBCol) op()          {}
func (SetDBColName) op()      {}
func (SetDBColType) op()      {}
func (DeleteDBCol) op()       {}
func (CreateDBMigration) op() {}
func (SetHandler) op()        {}
func (SetFunction) op()       {}
func (SetType) op()           {}
func (MoveTL) op()            {}
func (DeleteTL) op()          {}
func (DeleteFunction) op()    {}
func (DeleteType) op()        {}
func (Savepoint) op()         {}
func (UndoTL) op()            {}
func (RedoTL) op()            {}

// IsCursorOp reports whether the op manipulates the undo/redo cursor rather
// than editing a definition directly. Cursor ops and savepoints are excluded
// from the effectful subsequence the cursor indexes into.
func IsCursorOp(o Op) bool {
	switch o.(type) {
	case UndoTL, RedoTL:
		return true
	default:
		return false
	}
}
