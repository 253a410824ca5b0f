package canvas

import (
	"fmt"

	"github.com/roach88/tapestry/internal/op"
	"github.com/roach88/tapestry/internal/schema"
)

// Warning codes for tolerated malformed ops.
const (
	WarnMissingToplevel = "missing_toplevel"
	WarnWrongKind       = "wrong_kind"
	WarnUnknownColumn   = "unknown_column_identity"
	WarnInvalidColType  = "invalid_column_type"
)

// Warning records a malformed op the fold tolerated as a no-op. The fold
// itself never fails on bad history; a permanently bad log shows up only as
// failing downstream expectations. Warnings make that visible without making
// it fatal.
type Warning struct {
	TLID   op.TLID
	Code   string
	Detail string
}

func (w Warning) String() string {
	return fmt.Sprintf("tlid %d: %s (%s)", w.TLID, w.Code, w.Detail)
}

// FoldError is returned in strict mode when the fold hit malformed ops.
type FoldError struct {
	Warnings []Warning
}

func (e *FoldError) Error() string {
	if len(e.Warnings) == 1 {
		w := e.Warnings[0]
		return fmt.Sprintf("fold: malformed op on tlid %d: %s (%s)", w.TLID, w.Code, w.Detail)
	}
	return fmt.Sprintf("fold: %d malformed ops tolerated", len(e.Warnings))
}

// Result is the outcome of one fold.
type Result struct {
	Canvas *Canvas
	// Changed lists the tlids whose materialized definition differs from the
	// prior snapshot, in sorted order. This is the persist-diff: only these
	// need writing, and notification fires only if it is non-empty and at
	// least one applied op was effectful.
	Changed []op.TLID
	// Warnings are the malformed ops tolerated across the touched tlids.
	Warnings []Warning
}

type config struct {
	strict bool
}

// Option configures a fold.
type Option func(*config)

// WithStrict makes malformed ops an error instead of a tolerated no-op.
// The default mirrors the permissive behavior clients depend on; strict mode
// exists for tests and offline verification.
func WithStrict() Option {
	return func(c *config) { c.strict = true }
}

// Fold applies oplists, already filtered for staleness and sorted in causal
// order, on top of a prior snapshot. The prior snapshot is never mutated.
//
// Folding the same ordered history always yields the same canvas, and
// folding in causal-ordered chunks associates:
// Fold(Fold(nil, H1), H2) == Fold(nil, H1++H2).
func Fold(prior *Canvas, lists []op.Oplist, opts ...Option) (*Result, error) {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}

	next := prior.Clone()

	// Record pre-fold digests for every touched tlid, then extend histories.
	touched := make(map[op.TLID]bool)
	var order []op.TLID
	for _, list := range lists {
		for _, o := range list.Ops {
			id := o.TLID()
			if !touched[id] {
				touched[id] = true
				order = append(order, id)
			}
			next.history[id] = append(next.history[id], o)
		}
	}

	before := make(map[op.TLID]string, len(order))
	for _, id := range order {
		before[id] = prior.digestState(id)
	}

	var warnings []Warning
	for _, id := range order {
		warnings = append(warnings, next.rematerialize(id)...)
	}

	if cfg.strict && len(warnings) > 0 {
		return nil, &FoldError{Warnings: warnings}
	}

	var changed []op.TLID
	for _, id := range next.TLIDs() {
		if !touched[id] {
			continue
		}
		if next.digestState(id) != before[id] {
			changed = append(changed, id)
		}
	}

	return &Result{Canvas: next, Changed: changed, Warnings: warnings}, nil
}

// digestState folds liveness into the digest so that delete/revive count as
// changes even when the definition bytes are identical.
func (c *Canvas) digestState(id op.TLID) string {
	if c == nil {
		return ""
	}
	if tl, ok := c.Live[id]; ok {
		return "live:" + tl.Digest()
	}
	if tl, ok := c.Deleted[id]; ok {
		return "deleted:" + tl.Digest()
	}
	return ""
}

// rematerialize rebuilds one tlid's entry from its full history and installs
// it in the live or deleted map.
func (c *Canvas) rematerialize(id op.TLID) []Warning {
	tl, deleted, warnings := materialize(id, c.history[id])
	delete(c.Live, id)
	delete(c.Deleted, id)
	switch {
	case tl == nil:
		// Ops against a tlid that was never created, or whose creation was
		// undone. Structurally tolerated.
	case deleted:
		c.Deleted[id] = tl
	default:
		c.Live[id] = tl
	}
	return warnings
}

// materialize folds one tlid's op history into a definition.
//
// Undo/redo is a cursor into the effectful-op subsequence: undo decrements,
// redo increments, both bounded; a fresh edit while undone discards the
// redoable tail, exactly like an editor history. The history itself is never
// rewritten - only the cursor moves, and the definition is the fold of the
// ops before it.
func materialize(id op.TLID, history []op.Op) (*Toplevel, bool, []Warning) {
	var applied []op.Op
	cursor := 0

	for _, o := range history {
		switch o.(type) {
		case op.UndoTL:
			if cursor > 0 {
				cursor--
			}
		case op.RedoTL:
			if cursor < len(applied) {
				cursor++
			}
		case op.Savepoint:
			// Marker only.
		default:
			applied = applied[:cursor]
			applied = append(applied, o)
			cursor = len(applied)
		}
	}

	state := &tlState{id: id}
	for _, o := range applied[:cursor] {
		state.apply(o)
	}
	return state.tl, state.deleted, state.warnings
}

type tlState struct {
	id       op.TLID
	tl       *Toplevel
	deleted  bool
	warnings []Warning
}

func (s *tlState) warn(code, format string, args ...any) {
	s.warnings = append(s.warnings, Warning{
		TLID:   s.id,
		Code:   code,
		Detail: fmt.Sprintf(format, args...),
	})
}

// db returns the current table definition, or nil with a warning when the
// op does not address a table. A deleted table stays deleted: column and
// name edits mutate the preserved definition in place, and only a fresh
// create moves the tlid back to the live mapping.
func (s *tlState) db(opName string) *schema.DB {
	if s.tl == nil {
		s.warn(WarnMissingToplevel, "%s targets tlid with no definition", opName)
		return nil
	}
	if s.tl.DB == nil {
		s.warn(WarnWrongKind, "%s targets a non-table toplevel", opName)
		return nil
	}
	return s.tl.DB
}

func (s *tlState) apply(o op.Op) {
	switch v := o.(type) {
	case op.CreateDB:
		pos := op.Pos{}
		if s.tl != nil {
			pos = s.tl.Pos
		}
		s.tl = &Toplevel{DB: &schema.DB{Name: v.Name}, Pos: pos}
		s.deleted = false

	case op.RenameDB:
		if db := s.db("rename_db"); db != nil {
			db.Name = v.Name
		}

	case op.AddDBCol:
		if db := s.db("add_db_col"); db != nil {
			db.AddCol(v.NameID, v.TypeID)
		}

	case op.SetDBColName:
		if db := s.db("set_db_col_name"); db != nil {
			col := db.ColByNameID(v.NameID)
			if col == nil {
				s.warn(WarnUnknownColumn, "no column with name identity %s", v.NameID)
				return
			}
			col.Name = v.Name
		}

	case op.SetDBColType:
		if db := s.db("set_db_col_type"); db != nil {
			if !v.Type.IsValid() {
				s.warn(WarnInvalidColType, "unknown column type %q", v.Type)
				return
			}
			col := db.ColByTypeID(v.TypeID)
			if col == nil {
				s.warn(WarnUnknownColumn, "no column with type identity %s", v.TypeID)
				return
			}
			col.Type = v.Type
		}

	case op.DeleteDBCol:
		if db := s.db("delete_db_col"); db != nil {
			if db.ColByNameID(v.NameID) == nil {
				s.warn(WarnUnknownColumn, "no column with name identity %s", v.NameID)
				return
			}
			db.DeleteCol(v.NameID)
		}

	case op.CreateDBMigration:
		if db := s.db("create_db_migration"); db != nil {
			if db.PendingMigration == nil {
				db.PendingMigration = &schema.Migration{TargetVersion: db.Version + 1}
			}
		}

	case op.SetHandler:
		h := v.Handler
		pos := op.Pos{}
		if s.tl != nil {
			pos = s.tl.Pos
		}
		s.tl = &Toplevel{Handler: &h, Pos: pos}
		s.deleted = false

	case op.SetFunction:
		f := v.Function
		pos := op.Pos{}
		if s.tl != nil {
			pos = s.tl.Pos
		}
		s.tl = &Toplevel{Function: &f, Pos: pos}
		s.deleted = false

	case op.SetType:
		ty := v.Type
		pos := op.Pos{}
		if s.tl != nil {
			pos = s.tl.Pos
		}
		s.tl = &Toplevel{Type: &ty, Pos: pos}
		s.deleted = false

	case op.MoveTL:
		if s.tl == nil {
			s.warn(WarnMissingToplevel, "move_tl targets tlid with no definition")
			return
		}
		s.tl.Pos = v.Pos

	case op.DeleteTL:
		if s.tl == nil {
			s.warn(WarnMissingToplevel, "delete_tl targets tlid with no definition")
			return
		}
		s.deleted = true

	case op.DeleteFunction:
		if s.tl == nil || s.tl.Function == nil {
			s.warn(WarnWrongKind, "delete_function targets tlid without a function")
			return
		}
		s.deleted = true

	case op.DeleteType:
		if s.tl == nil || s.tl.Type == nil {
			s.warn(WarnWrongKind, "delete_type targets tlid without a type")
			return
		}
		s.deleted = true
	}
}

// IsLatest is the idempotency predicate consumed from the persistence
// collaborator: it reports whether opCtr is strictly newer than the last
// accepted counter for the client.
type IsLatest func(clientID string, opCtr int64) bool

// FilterStale drops oplists whose submission counter is not strictly newer
// than the last accepted counter for their client, including duplicates
// within the batch itself. Stale submissions are filtered, not errors: the
// caller proceeds with the fresh subset. Lists without idempotency metadata
// (empty client id) always pass.
func FilterStale(lists []op.Oplist, isLatest IsLatest) (fresh []op.Oplist, dropped int) {
	maxSeen := make(map[string]int64)
	for _, list := range lists {
		if list.ClientID == "" {
			fresh = append(fresh, list)
			continue
		}
		if seen, ok := maxSeen[list.ClientID]; ok && list.OpCtr <= seen {
			dropped++
			continue
		}
		if isLatest != nil && !isLatest(list.ClientID, list.OpCtr) {
			dropped++
			continue
		}
		maxSeen[list.ClientID] = list.OpCtr
		fresh = append(fresh, list)
	}
	return fresh, dropped
}
