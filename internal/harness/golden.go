package harness

import (
	"encoding/json"
	"fmt"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tapestry/internal/canvas"
	"github.com/roach88/tapestry/internal/op"
)

// Snapshot is the golden-file rendering of a scenario result. Field order
// and map key order are fixed so byte comparison is meaningful.
type Snapshot struct {
	Scenario  string          `json:"scenario"`
	Dropped   int             `json:"dropped,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
	Toplevels []TLSnapshot    `json:"toplevels"`
	Routes    []RouteSnapshot `json:"routes,omitempty"`
}

// TLSnapshot renders one toplevel, live or deleted.
type TLSnapshot struct {
	TLID    int64    `json:"tlid"`
	Kind    string   `json:"kind"`
	Name    string   `json:"name"`
	Deleted bool     `json:"deleted,omitempty"`
	Route   string   `json:"route,omitempty"`
	Method  string   `json:"method,omitempty"`
	Columns []string `json:"columns,omitempty"`
}

// RouteSnapshot renders one route check outcome.
type RouteSnapshot struct {
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	TLID      int64             `json:"tlid,omitempty"`
	Bindings  map[string]string `json:"bindings,omitempty"`
	Ambiguous bool              `json:"ambiguous,omitempty"`
}

// RunWithGolden runs the scenario and compares its snapshot against
// testdata/golden/{name}.golden. Regenerate goldens with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) {
	t.Helper()

	result, err := Run(s)
	if err != nil {
		t.Fatalf("scenario %s failed: %v", s.Name, err)
	}

	data, err := json.MarshalIndent(BuildSnapshot(s.Name, result), "", "  ")
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, data)
}

// BuildSnapshot renders a result deterministically: toplevels sorted by
// tlid, deleted ones after live ones are interleaved in the same order.
func BuildSnapshot(name string, result *Result) Snapshot {
	snap := Snapshot{Scenario: name, Dropped: result.Dropped}

	for _, w := range result.Warnings {
		snap.Warnings = append(snap.Warnings, w.String())
	}

	snap.Toplevels = []TLSnapshot{}
	for _, id := range sortedTLIDs(result.Canvas) {
		if tl, ok := result.Canvas.Live[id]; ok {
			snap.Toplevels = append(snap.Toplevels, renderToplevel(id, tl, false))
		} else if tl, ok := result.Canvas.Deleted[id]; ok {
			snap.Toplevels = append(snap.Toplevels, renderToplevel(id, tl, true))
		}
	}

	for _, rr := range result.Routes {
		rs := RouteSnapshot{Method: rr.Method, Path: rr.Path, Ambiguous: rr.Ambiguous}
		if rr.Match != nil {
			rs.TLID = int64(rr.Match.TLID)
			rs.Bindings = rr.Match.Bindings
		}
		snap.Routes = append(snap.Routes, rs)
	}
	return snap
}

func sortedTLIDs(c *canvas.Canvas) []op.TLID {
	seen := make(map[op.TLID]bool)
	var ids []op.TLID
	for id := range c.Live {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range c.Deleted {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func renderToplevel(id op.TLID, tl *canvas.Toplevel, deleted bool) TLSnapshot {
	snap := TLSnapshot{TLID: int64(id), Deleted: deleted}
	switch {
	case tl.Handler != nil:
		snap.Kind = "handler"
		snap.Name = tl.Handler.Name
		snap.Route = tl.Handler.Route
		snap.Method = tl.Handler.Method
	case tl.DB != nil:
		snap.Kind = "db"
		snap.Name = tl.DB.Name
		for _, col := range tl.DB.Cols {
			if col.Complete() {
				snap.Columns = append(snap.Columns, fmt.Sprintf("%s %s", col.Name, col.Type))
			}
		}
	case tl.Function != nil:
		snap.Kind = "function"
		snap.Name = tl.Function.Name
	case tl.Type != nil:
		snap.Kind = "type"
		snap.Name = tl.Type.Name
	}
	return snap
}
