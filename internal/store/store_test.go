package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/roach88/tapestry/internal/op"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := openTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Errorf("journal_mode: %v", err)
	}
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Errorf("foreign_keys: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	second.Close()
}

func TestSaveLoadOplists_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	program := uuid.New()

	diffs := []TLOplist{
		{TLID: 2, Ops: []op.Op{op.SetHandler{ID: 2, Handler: op.Handler{
			Name: "h", Space: op.SpaceHTTP, Route: "/x", Method: "GET",
		}}}, Digest: "d2"},
		{TLID: 1, Ops: []op.Op{op.CreateDB{ID: 1, Name: "users"}}, Digest: "d1"},
	}
	if err := s.SaveOplists(ctx, program, diffs); err != nil {
		t.Fatalf("SaveOplists() failed: %v", err)
	}

	loaded, err := s.LoadOplists(ctx, program, nil, false)
	if err != nil {
		t.Fatalf("LoadOplists() failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d oplists, want 2", len(loaded))
	}
	if loaded[0].TLID != 1 || loaded[1].TLID != 2 {
		t.Errorf("oplists not ordered by tlid: %v, %v", loaded[0].TLID, loaded[1].TLID)
	}
	if loaded[0].Digest != "d1" {
		t.Errorf("digest = %q, want %q", loaded[0].Digest, "d1")
	}
	if len(loaded[0].Ops) != 1 {
		t.Fatalf("tlid 1 has %d ops, want 1", len(loaded[0].Ops))
	}
	if created, ok := loaded[0].Ops[0].(op.CreateDB); !ok || created.Name != "users" {
		t.Errorf("tlid 1 op = %#v, want CreateDB users", loaded[0].Ops[0])
	}
}

func TestSaveOplists_UpsertExtendsHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	program := uuid.New()

	history := []op.Op{op.CreateDB{ID: 1, Name: "users"}}
	if err := s.SaveOplists(ctx, program, []TLOplist{{TLID: 1, Ops: history}}); err != nil {
		t.Fatalf("SaveOplists() failed: %v", err)
	}

	history = append(history, op.RenameDB{ID: 1, Name: "accounts"})
	if err := s.SaveOplists(ctx, program, []TLOplist{{TLID: 1, Ops: history}}); err != nil {
		t.Fatalf("second SaveOplists() failed: %v", err)
	}

	loaded, err := s.LoadOplists(ctx, program, []op.TLID{1}, false)
	if err != nil {
		t.Fatalf("LoadOplists() failed: %v", err)
	}
	if len(loaded) != 1 || len(loaded[0].Ops) != 2 {
		t.Fatalf("history not extended: %+v", loaded)
	}
}

func TestLoadOplists_DeletedFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	program := uuid.New()

	diffs := []TLOplist{
		{TLID: 1, Ops: []op.Op{op.CreateDB{ID: 1, Name: "live"}}},
		{TLID: 2, Ops: []op.Op{op.CreateDB{ID: 2, Name: "gone"}, op.DeleteTL{ID: 2}}, Deleted: true},
	}
	if err := s.SaveOplists(ctx, program, diffs); err != nil {
		t.Fatalf("SaveOplists() failed: %v", err)
	}

	visible, err := s.LoadOplists(ctx, program, nil, false)
	if err != nil {
		t.Fatalf("LoadOplists() failed: %v", err)
	}
	if len(visible) != 1 || visible[0].TLID != 1 {
		t.Errorf("visible = %+v, want only tlid 1", visible)
	}

	all, err := s.LoadOplists(ctx, program, nil, true)
	if err != nil {
		t.Fatalf("LoadOplists(includeDeleted) failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all = %+v, want both tlids", all)
	}
}

func TestLoadOplists_ScopedToProgram(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	programA, programB := uuid.New(), uuid.New()
	if err := s.SaveOplists(ctx, programA, []TLOplist{
		{TLID: 1, Ops: []op.Op{op.CreateDB{ID: 1, Name: "a"}}},
	}); err != nil {
		t.Fatalf("SaveOplists() failed: %v", err)
	}

	loaded, err := s.LoadOplists(ctx, programB, nil, true)
	if err != nil {
		t.Fatalf("LoadOplists() failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("program B sees %d oplists, want 0", len(loaded))
	}
}

func TestSaveSubmission_MonotonicCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	program := uuid.New()

	claim := func(client string, ctr int64) error {
		return s.SaveSubmission(ctx, program, []Claim{{ClientID: client, OpCtr: ctr}}, nil)
	}

	if err := claim("client-a", 1); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	// Same counter again: stale.
	if err := claim("client-a", 1); !errors.Is(err, ErrStaleSubmission) {
		t.Errorf("replayed counter: err = %v, want ErrStaleSubmission", err)
	}

	// Lower counter: stale.
	if err := claim("client-a", 0); !errors.Is(err, ErrStaleSubmission) {
		t.Errorf("older counter: err = %v, want ErrStaleSubmission", err)
	}

	// Strictly newer: accepted.
	if err := claim("client-a", 5); err != nil {
		t.Errorf("newer counter rejected: %v", err)
	}

	// Other clients are independent.
	if err := claim("client-b", 1); err != nil {
		t.Errorf("other client's counter should be independent: %v", err)
	}
}

func TestSaveSubmission_StaleClaimWritesNothing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	program := uuid.New()

	if err := s.SaveSubmission(ctx, program, []Claim{{ClientID: "client-a", OpCtr: 2}}, nil); err != nil {
		t.Fatalf("SaveSubmission() failed: %v", err)
	}

	// Claim and histories share one transaction: a losing claim must roll
	// the histories back too.
	err := s.SaveSubmission(ctx, program,
		[]Claim{{ClientID: "client-a", OpCtr: 2}},
		[]TLOplist{{TLID: 1, Ops: []op.Op{op.CreateDB{ID: 1, Name: "users"}}, Digest: "d1"}})
	if !errors.Is(err, ErrStaleSubmission) {
		t.Fatalf("err = %v, want ErrStaleSubmission", err)
	}

	loaded, err := s.LoadOplists(ctx, program, nil, true)
	if err != nil {
		t.Fatalf("LoadOplists() failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("stale submission persisted %d oplists, want 0", len(loaded))
	}
}

func TestIsLatestSubmission(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	program := uuid.New()

	latest, err := s.IsLatestSubmission(ctx, program, "client-a", 1)
	if err != nil {
		t.Fatalf("IsLatestSubmission() failed: %v", err)
	}
	if !latest {
		t.Error("unknown client: any counter is latest")
	}

	if err := s.SaveSubmission(ctx, program, []Claim{{ClientID: "client-a", OpCtr: 3}}, nil); err != nil {
		t.Fatalf("SaveSubmission() failed: %v", err)
	}

	if latest, _ = s.IsLatestSubmission(ctx, program, "client-a", 3); latest {
		t.Error("equal counter is not latest")
	}
	if latest, _ = s.IsLatestSubmission(ctx, program, "client-a", 4); !latest {
		t.Error("newer counter is latest")
	}
}
