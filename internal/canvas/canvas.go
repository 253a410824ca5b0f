// Package canvas reconstructs program snapshots from operation histories.
//
// A Canvas is never the source of truth: it is the left-fold of every
// accepted oplist, re-derivable at any time from the full history. The fold
// is deterministic and side-effect free; persistence and notification hang
// off the diff it reports, never off the fold itself.
package canvas

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/roach88/tapestry/internal/op"
	"github.com/roach88/tapestry/internal/schema"
)

// Domain prefix for toplevel digests. Versioned so the digest algorithm can
// be migrated without colliding with old values.
const domainToplevel = "tapestry/toplevel/v1"

// Toplevel is one live or deleted definition. Exactly one of the pointer
// fields is set.
type Toplevel struct {
	Handler  *op.Handler  `json:"handler,omitempty"`
	DB       *schema.DB   `json:"db,omitempty"`
	Function *op.Function `json:"function,omitempty"`
	Type     *op.TypeDef  `json:"type,omitempty"`
	Pos      op.Pos       `json:"pos"`
}

// Clone returns a deep copy.
func (tl *Toplevel) Clone() *Toplevel {
	if tl == nil {
		return nil
	}
	cp := &Toplevel{Pos: tl.Pos}
	if tl.Handler != nil {
		h := *tl.Handler
		cp.Handler = &h
	}
	if tl.DB != nil {
		cp.DB = tl.DB.Clone()
	}
	if tl.Function != nil {
		f := *tl.Function
		f.Params = append([]string(nil), tl.Function.Params...)
		cp.Function = &f
	}
	if tl.Type != nil {
		ty := *tl.Type
		ty.Fields = append([]op.NamedField(nil), tl.Type.Fields...)
		cp.Type = &ty
	}
	return cp
}

// Digest returns a domain-separated SHA-256 over the toplevel's serialized
// form. Two structurally equal definitions always digest identically, which
// is what the persist-diff compares.
func (tl *Toplevel) Digest() string {
	data, err := json.Marshal(tl)
	if err != nil {
		// Toplevel contains only marshalable fields; this cannot happen for
		// values built by the fold.
		panic("canvas: toplevel digest: " + err.Error())
	}
	h := sha256.New()
	h.Write([]byte(domainToplevel))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Canvas is a reconstructed program snapshot: live definitions, deleted
// definitions (preserved for undo and reference display), and the per-tlid
// op histories they were folded from.
type Canvas struct {
	Live    map[op.TLID]*Toplevel
	Deleted map[op.TLID]*Toplevel

	history map[op.TLID][]op.Op
}

// New returns an empty canvas.
func New() *Canvas {
	return &Canvas{
		Live:    make(map[op.TLID]*Toplevel),
		Deleted: make(map[op.TLID]*Toplevel),
		history: make(map[op.TLID][]op.Op),
	}
}

// Clone returns a deep copy. Fold never mutates its prior snapshot; it
// clones and works on the copy.
func (c *Canvas) Clone() *Canvas {
	if c == nil {
		return New()
	}
	cp := &Canvas{
		Live:    make(map[op.TLID]*Toplevel, len(c.Live)),
		Deleted: make(map[op.TLID]*Toplevel, len(c.Deleted)),
		history: make(map[op.TLID][]op.Op, len(c.history)),
	}
	for id, tl := range c.Live {
		cp.Live[id] = tl.Clone()
	}
	for id, tl := range c.Deleted {
		cp.Deleted[id] = tl.Clone()
	}
	for id, ops := range c.history {
		cp.history[id] = append([]op.Op(nil), ops...)
	}
	return cp
}

// HistoryFor returns the tlid's full op history in causal order. The
// returned slice is shared; callers must not mutate it.
func (c *Canvas) HistoryFor(id op.TLID) []op.Op {
	return c.history[id]
}

// TLIDs returns every tlid the canvas has history for, sorted for
// deterministic iteration.
func (c *Canvas) TLIDs() []op.TLID {
	ids := make([]op.TLID, 0, len(c.history))
	for id := range c.history {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LiveHandler pairs a live handler with its tlid.
type LiveHandler struct {
	TLID    op.TLID
	Handler *op.Handler
}

// HTTPHandlers returns the live HTTP-space handlers, sorted by tlid.
// Other spaces are triggered by name, not path, and never routed.
func (c *Canvas) HTTPHandlers() []LiveHandler {
	var out []LiveHandler
	for id, tl := range c.Live {
		if tl.Handler != nil && tl.Handler.Space == op.SpaceHTTP {
			out = append(out, LiveHandler{TLID: id, Handler: tl.Handler})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TLID < out[j].TLID })
	return out
}

// LiveTable pairs a live data table with its tlid.
type LiveTable struct {
	TLID op.TLID
	DB   *schema.DB
}

// Tables returns the live data tables, sorted by tlid.
func (c *Canvas) Tables() []LiveTable {
	var out []LiveTable
	for id, tl := range c.Live {
		if tl.DB != nil {
			out = append(out, LiveTable{TLID: id, DB: tl.DB})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TLID < out[j].TLID })
	return out
}

// TableFor returns the live table definition for a tlid, or nil.
func (c *Canvas) TableFor(id op.TLID) *schema.DB {
	if tl, ok := c.Live[id]; ok && tl.DB != nil {
		return tl.DB
	}
	return nil
}

// TableByName returns the live table with the given name, or nil.
func (c *Canvas) TableByName(name string) (op.TLID, *schema.DB) {
	for _, lt := range c.Tables() {
		if lt.DB.Name == name {
			return lt.TLID, lt.DB
		}
	}
	return 0, nil
}
