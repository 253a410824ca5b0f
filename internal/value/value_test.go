package value

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	u := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")

	cases := []struct {
		v    Value
		kind Kind
	}{
		{Null{}, KindNull},
		{Int(42), KindInt},
		{Float(3.5), KindFloat},
		{Str("hello"), KindStr},
		{Bool(true), KindBool},
		{NewDatetime(time.Now()), KindDatetime},
		{UUID(u), KindUUID},
		{List{Int(1)}, KindList},
		{Obj{"a": Int(1)}, KindObj},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.kind, tc.v.Kind())
	}
}

func TestEncodeDecode_RoundTripPreservesKinds(t *testing.T) {
	u := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	row := Obj{
		"count":   Int(5),
		"ratio":   Float(0.25),
		"name":    Str("widget"),
		"active":  Bool(true),
		"created": NewDatetime(when),
		"owner":   UUID(u),
		"tags":    List{Str("a"), Str("b")},
		"meta":    Obj{"nested": Null{}},
	}

	data, err := EncodeRow(row)
	require.NoError(t, err)

	decoded, err := DecodeRow(data)
	require.NoError(t, err)

	require.True(t, Equal(row, decoded), "round-trip must preserve structure")

	// The critical distinction: Int(5) must come back as Int, not Float.
	assert.Equal(t, KindInt, decoded["count"].Kind())
	assert.Equal(t, KindFloat, decoded["ratio"].Kind())
	assert.Equal(t, KindDatetime, decoded["created"].Kind())
	assert.Equal(t, KindUUID, decoded["owner"].Kind())
}

func TestDecodeJSON_RejectsUnknownKind(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"k":"complex","v":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestCanonical_Deterministic(t *testing.T) {
	obj := Obj{
		"b": Int(2),
		"a": Str("x"),
		"c": List{Bool(false), Null{}},
	}

	first, err := Canonical(obj)
	require.NoError(t, err)
	second, err := Canonical(obj)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, `{"a":"x","b":2,"c":[false,null]}`, string(first))
}

func TestCanonical_NoHTMLEscaping(t *testing.T) {
	data, err := Canonical(Str("<a>&</a>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a>&</a>"`, string(data))
}

func TestCanonical_NFCNormalization(t *testing.T) {
	// U+0065 U+0301 (e + combining acute) normalizes to U+00E9.
	decomposed := Str("café")
	composed := Str("café")

	a, err := Canonical(decomposed)
	require.NoError(t, err)
	b, err := Canonical(composed)
	require.NoError(t, err)

	assert.Equal(t, b, a, "NFC normalization must make both forms identical")
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int(1), Int(1)))
	assert.False(t, Equal(Int(1), Float(1)), "kind mismatch is never equal")
	assert.True(t, Equal(Obj{"a": List{Int(1)}}, Obj{"a": List{Int(1)}}))
	assert.False(t, Equal(Obj{"a": Int(1)}, Obj{"b": Int(1)}))

	est := time.FixedZone("EST", -5*3600)
	utc := time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC)
	assert.True(t, Equal(NewDatetime(utc), NewDatetime(utc.In(est))),
		"datetimes compare as instants")
}
