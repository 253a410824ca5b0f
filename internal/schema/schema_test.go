package schema

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tapestry/internal/value"
)

func TestColType_Accepts(t *testing.T) {
	cases := []struct {
		col  ColType
		kind value.Kind
		want bool
	}{
		{TInt, value.KindInt, true},
		{TInt, value.KindFloat, false},
		{TFloat, value.KindFloat, true},
		{TStr, value.KindStr, true},
		{TStr, value.KindInt, false},
		{TBool, value.KindBool, true},
		{TDatetime, value.KindDatetime, true},
		{TDatetime, value.KindStr, false},
		{TList, value.KindList, true},
		{TUUID, value.KindUUID, true},
		{TObj, value.KindObj, true},
		{TObj, value.KindList, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.col.Accepts(tc.kind),
			"%s accepts %s", tc.col, tc.kind)
	}
}

func TestColType_AnyColumnAcceptsNull(t *testing.T) {
	for _, col := range ValidColTypes {
		assert.True(t, col.Accepts(value.KindNull), "%s must accept null", col)
	}
}

func TestDB_RenameByIdentity(t *testing.T) {
	nameID := uuid.New()
	typeID := uuid.New()

	db := &DB{Name: "users"}
	db.AddCol(nameID, typeID)

	col := db.ColByNameID(nameID)
	require.NotNil(t, col)
	col.Name = "email"
	col.Type = TStr

	// Rename addresses the identity, not the current name.
	db.ColByNameID(nameID).Name = "contact_email"

	assert.Nil(t, db.ColByName("email"))
	renamed := db.ColByName("contact_email")
	require.NotNil(t, renamed)
	assert.Equal(t, nameID, renamed.NameID, "identity survives rename")
}

func TestDB_IncompleteColumnsExcludedFromNames(t *testing.T) {
	db := &DB{Name: "orders"}
	db.AddCol(uuid.New(), uuid.New()) // blank, never named

	nameID := uuid.New()
	db.AddCol(nameID, uuid.New())
	db.ColByNameID(nameID).Name = "total"
	db.ColByNameID(nameID).Type = TInt

	assert.Equal(t, []string{"total"}, db.ColumnNames())
}

func TestDB_DeleteCol(t *testing.T) {
	db := &DB{Name: "t"}
	keep := uuid.New()
	drop := uuid.New()
	db.AddCol(keep, uuid.New())
	db.AddCol(drop, uuid.New())

	db.DeleteCol(drop)
	assert.Len(t, db.Cols, 1)
	assert.NotNil(t, db.ColByNameID(keep))

	// Unknown identity is a no-op.
	db.DeleteCol(uuid.New())
	assert.Len(t, db.Cols, 1)
}

func TestDB_CloneIsDeep(t *testing.T) {
	nameID := uuid.New()
	db := &DB{Name: "t", Version: 1}
	db.AddCol(nameID, uuid.New())

	cp := db.Clone()
	cp.ColByNameID(nameID).Name = "changed"

	assert.Empty(t, db.Cols[0].Name, "mutating the clone must not touch the original")
}
