package op

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tapestry/internal/schema"
)

func TestHasEffect(t *testing.T) {
	assert.False(t, Savepoint{ID: 1}.HasEffect(), "savepoint is the no-effect marker")
	assert.True(t, CreateDB{ID: 1, Name: "users"}.HasEffect())
	assert.True(t, MoveTL{ID: 1, Pos: Pos{X: 1, Y: 2}}.HasEffect())
	assert.True(t, UndoTL{ID: 1}.HasEffect())
}

func TestIsCursorOp(t *testing.T) {
	assert.True(t, IsCursorOp(UndoTL{ID: 1}))
	assert.True(t, IsCursorOp(RedoTL{ID: 1}))
	assert.False(t, IsCursorOp(Savepoint{ID: 1}))
	assert.False(t, IsCursorOp(DeleteTL{ID: 1}))
}

func TestMarshalOp_Discriminator(t *testing.T) {
	data, err := MarshalOp(CreateDB{ID: 7, Name: "users"})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "create_db", m["op"])
	assert.Equal(t, "users", m["name"])
	assert.Equal(t, float64(7), m["tlid"])
}

func TestOpRoundTrip_AllVariants(t *testing.T) {
	nameID := uuid.New()
	typeID := uuid.New()

	ops := []Op{
		CreateDB{ID: 1, Name: "users"},
		RenameDB{ID: 1, Name: "accounts"},
		AddDBCol{ID: 1, NameID: nameID, TypeID: typeID},
		SetDBColName{ID: 1, NameID: nameID, Name: "email"},
		SetDBColType{ID: 1, TypeID: typeID, Type: schema.TStr},
		DeleteDBCol{ID: 1, NameID: nameID},
		CreateDBMigration{ID: 1},
		SetHandler{ID: 2, Handler: Handler{
			Name: "getUser", Space: SpaceHTTP, Route: "/user/:id", Method: "GET", Code: "req.id",
		}},
		SetFunction{ID: 3, Function: Function{Name: "double", Params: []string{"x"}, Code: "x * 2"}},
		SetType{ID: 4, Type: TypeDef{Name: "Point", Fields: []NamedField{{Name: "x", Type: schema.TInt}}}},
		MoveTL{ID: 2, Pos: Pos{X: 10, Y: 20}},
		DeleteTL{ID: 2},
		DeleteFunction{ID: 3},
		DeleteType{ID: 4},
		Savepoint{ID: 1},
		UndoTL{ID: 1},
		RedoTL{ID: 1},
	}

	data, err := MarshalOps(ops)
	require.NoError(t, err)

	decoded, err := UnmarshalOps(data)
	require.NoError(t, err)
	require.Len(t, decoded, len(ops))

	for i := range ops {
		assert.Equal(t, ops[i], decoded[i], "variant %T", ops[i])
	}
}

func TestUnmarshalOp_UnknownKind(t *testing.T) {
	_, err := UnmarshalOp([]byte(`{"op":"explode","tlid":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestOplist_JSONRoundTrip(t *testing.T) {
	list := Oplist{
		ClientID: "client-a",
		OpCtr:    3,
		Ops: []Op{
			CreateDB{ID: 1, Name: "users"},
			Savepoint{ID: 1},
		},
	}

	data, err := json.Marshal(list)
	require.NoError(t, err)

	var decoded Oplist
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, list, decoded)
}

func TestOplist_TLIDs(t *testing.T) {
	list := Oplist{Ops: []Op{
		CreateDB{ID: 5, Name: "a"},
		SetHandler{ID: 9, Handler: Handler{Name: "h", Space: SpaceREPL}},
		RenameDB{ID: 5, Name: "b"},
	}}
	assert.Equal(t, []TLID{5, 9}, list.TLIDs())
}

func TestOplist_HasEffect(t *testing.T) {
	assert.False(t, Oplist{Ops: []Op{Savepoint{ID: 1}}}.HasEffect())
	assert.True(t, Oplist{Ops: []Op{Savepoint{ID: 1}, DeleteTL{ID: 1}}}.HasEffect())
	assert.False(t, Oplist{}.HasEffect())
}
