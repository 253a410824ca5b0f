package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/roach88/tapestry/internal/op"
)

func testRowKey() RowKey {
	return RowKey{Program: uuid.New(), Table: op.TLID(42), Version: 0}
}

func TestInsertRow_DuplicateKeyRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := testRowKey()

	if err := s.InsertRow(ctx, key, "alice", uuid.New(), []byte(`{"age":{"k":"int","v":30}}`), false); err != nil {
		t.Fatalf("InsertRow() failed: %v", err)
	}

	err := s.InsertRow(ctx, key, "alice", uuid.New(), []byte(`{"age":{"k":"int","v":31}}`), false)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("second insert: err = %v, want ErrDuplicateKey", err)
	}

	// The original row is untouched.
	row, found, err := s.GetRow(ctx, key, "alice")
	if err != nil || !found {
		t.Fatalf("GetRow() = %v, found=%v", err, found)
	}
	if string(row.Data) != `{"age":{"k":"int","v":30}}` {
		t.Errorf("data overwritten: %s", row.Data)
	}
}

func TestInsertRow_UpsertReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := testRowKey()

	first := uuid.New()
	if err := s.InsertRow(ctx, key, "alice", first, []byte(`{"age":{"k":"int","v":30}}`), true); err != nil {
		t.Fatalf("InsertRow() failed: %v", err)
	}
	if err := s.InsertRow(ctx, key, "alice", uuid.New(), []byte(`{"age":{"k":"int","v":31}}`), true); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	row, found, err := s.GetRow(ctx, key, "alice")
	if err != nil || !found {
		t.Fatalf("GetRow() = %v, found=%v", err, found)
	}
	if string(row.Data) != `{"age":{"k":"int","v":31}}` {
		t.Errorf("upsert did not replace data: %s", row.Data)
	}
	if row.ID == first {
		t.Error("upsert should assign the new row id")
	}
}

func TestGetRow_Missing(t *testing.T) {
	s := openTestStore(t)

	_, found, err := s.GetRow(context.Background(), testRowKey(), "nobody")
	if err != nil {
		t.Fatalf("GetRow() failed: %v", err)
	}
	if found {
		t.Error("found should be false for a missing key")
	}
}

func TestGetRows_SubsetAndOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := testRowKey()

	for _, k := range []string{"b", "a", "c"} {
		if err := s.InsertRow(ctx, key, k, uuid.New(), []byte(`{}`), false); err != nil {
			t.Fatalf("InsertRow(%q) failed: %v", k, err)
		}
	}

	rows, err := s.GetRows(ctx, key, []string{"c", "a", "missing"})
	if err != nil {
		t.Fatalf("GetRows() failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Key != "a" || rows[1].Key != "c" {
		t.Errorf("rows not in key order: %q, %q", rows[0].Key, rows[1].Key)
	}

	all, err := s.AllRows(ctx, key)
	if err != nil {
		t.Fatalf("AllRows() failed: %v", err)
	}
	if len(all) != 3 || all[0].Key != "a" || all[2].Key != "c" {
		t.Errorf("AllRows order wrong: %+v", all)
	}
}

func TestRows_VersionPartitioning(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v0 := testRowKey()
	v1 := v0
	v1.Version = 1

	if err := s.InsertRow(ctx, v0, "alice", uuid.New(), []byte(`{}`), false); err != nil {
		t.Fatalf("InsertRow() failed: %v", err)
	}

	// Same user key at a different schema version is a distinct row.
	if err := s.InsertRow(ctx, v1, "alice", uuid.New(), []byte(`{}`), false); err != nil {
		t.Fatalf("InsertRow() at v1 failed: %v", err)
	}

	n, err := s.CountRows(ctx, v0)
	if err != nil {
		t.Fatalf("CountRows() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("v0 count = %d, want 1", n)
	}
}

func TestDeleteRow_HardDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := testRowKey()

	if err := s.InsertRow(ctx, key, "alice", uuid.New(), []byte(`{}`), false); err != nil {
		t.Fatalf("InsertRow() failed: %v", err)
	}
	if err := s.DeleteRow(ctx, key, "alice"); err != nil {
		t.Fatalf("DeleteRow() failed: %v", err)
	}

	_, found, err := s.GetRow(ctx, key, "alice")
	if err != nil {
		t.Fatalf("GetRow() failed: %v", err)
	}
	if found {
		t.Error("row still visible after delete")
	}

	// The key can be reused after a delete.
	if err := s.InsertRow(ctx, key, "alice", uuid.New(), []byte(`{}`), false); err != nil {
		t.Errorf("reinsert after delete failed: %v", err)
	}
}

func TestDeleteAllRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := testRowKey()
	other := testRowKey()

	for _, k := range []string{"a", "b"} {
		if err := s.InsertRow(ctx, key, k, uuid.New(), []byte(`{}`), false); err != nil {
			t.Fatalf("InsertRow(%q) failed: %v", k, err)
		}
	}
	if err := s.InsertRow(ctx, other, "a", uuid.New(), []byte(`{}`), false); err != nil {
		t.Fatalf("InsertRow() failed: %v", err)
	}

	if err := s.DeleteAllRows(ctx, key); err != nil {
		t.Fatalf("DeleteAllRows() failed: %v", err)
	}

	has, err := s.HasRows(ctx, key)
	if err != nil {
		t.Fatalf("HasRows() failed: %v", err)
	}
	if has {
		t.Error("table should be empty after DeleteAllRows")
	}

	// Other tables are untouched.
	if has, _ = s.HasRows(ctx, other); !has {
		t.Error("DeleteAllRows leaked into another table")
	}
}

func TestCountAndHasRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := testRowKey()

	has, err := s.HasRows(ctx, key)
	if err != nil {
		t.Fatalf("HasRows() failed: %v", err)
	}
	if has {
		t.Error("fresh table should report no rows")
	}

	if err := s.InsertRow(ctx, key, "a", uuid.New(), []byte(`{}`), false); err != nil {
		t.Fatalf("InsertRow() failed: %v", err)
	}

	n, err := s.CountRows(ctx, key)
	if err != nil {
		t.Fatalf("CountRows() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	if has, _ = s.HasRows(ctx, key); !has {
		t.Error("HasRows should report true after an insert")
	}
}
