package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tapestry/internal/canvas"
	"github.com/roach88/tapestry/internal/op"
)

func buildCanvas(t *testing.T, handlers map[op.TLID]op.Handler) *canvas.Canvas {
	t.Helper()
	var lists []op.Oplist
	for id, h := range handlers {
		lists = append(lists, op.Oplist{Ops: []op.Op{op.SetHandler{ID: id, Handler: h}}})
	}
	res, err := canvas.Fold(nil, lists)
	require.NoError(t, err)
	return res.Canvas
}

func httpHandler(route, method string) op.Handler {
	return op.Handler{Name: route, Space: op.SpaceHTTP, Route: route, Method: method}
}

func TestDispatch_SingleMatch(t *testing.T) {
	c := buildCanvas(t, map[op.TLID]op.Handler{
		1: httpHandler("/user/:id", "GET"),
		2: httpHandler("/health", "GET"),
	})

	m, err := Dispatch(c, "GET", "/user/42")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, op.TLID(1), m.TLID)
	assert.Equal(t, map[string]string{"id": "42"}, m.Bindings)
}

func TestDispatch_MethodFilter(t *testing.T) {
	c := buildCanvas(t, map[op.TLID]op.Handler{
		1: httpHandler("/thing", "GET"),
		2: httpHandler("/thing", "POST"),
	})

	m, err := Dispatch(c, "post", "/thing")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, op.TLID(2), m.TLID, "method compare is case-insensitive")
}

func TestDispatch_NoMatch(t *testing.T) {
	c := buildCanvas(t, map[op.TLID]op.Handler{1: httpHandler("/a", "GET")})

	m, err := Dispatch(c, "GET", "/b")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestDispatch_SpecificityPicksLiteral(t *testing.T) {
	c := buildCanvas(t, map[op.TLID]op.Handler{
		1: httpHandler("/:foo", "GET"),
		2: httpHandler("/a", "GET"),
	})

	m, err := Dispatch(c, "GET", "/a")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, op.TLID(2), m.TLID)
}

func TestDispatch_Ambiguous(t *testing.T) {
	c := buildCanvas(t, map[op.TLID]op.Handler{
		1: httpHandler("/:first/:second", "GET"),
		2: httpHandler("/:foo/:bar", "GET"),
	})

	m, err := Dispatch(c, "GET", "/a/b")
	assert.Nil(t, m)

	var ambiguous *AmbiguousRouteError
	require.ErrorAs(t, err, &ambiguous)
	assert.Len(t, ambiguous.Candidates, 2)
}

func TestDispatch_NonHTTPSpacesNeverRoute(t *testing.T) {
	c := buildCanvas(t, map[op.TLID]op.Handler{
		1: {Name: "daily", Space: op.SpaceCron},
		2: {Name: "jobs", Space: op.SpaceWorker},
	})

	m, err := Dispatch(c, "GET", "/daily")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestDispatch_DeletedHandlerNotRouted(t *testing.T) {
	res, err := canvas.Fold(nil, []op.Oplist{
		{Ops: []op.Op{op.SetHandler{ID: 1, Handler: httpHandler("/gone", "GET")}}},
		{Ops: []op.Op{op.DeleteTL{ID: 1}}},
	})
	require.NoError(t, err)

	m, err := Dispatch(res.Canvas, "GET", "/gone")
	require.NoError(t, err)
	assert.Nil(t, m)
}
