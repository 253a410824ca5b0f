// Package value defines the typed runtime values stored in user data rows.
//
// Value is a sealed interface: only the variants in this file implement it.
// Unlike wire-level JSON, every scalar keeps its declared kind across a
// round-trip - an integer never silently becomes a float, a datetime never
// degrades to a string. See codec.go for the tagged serialization that
// preserves this.
package value

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the runtime kind of a Value.
type Kind string

const (
	KindNull     Kind = "null"
	KindInt      Kind = "int"
	KindFloat    Kind = "float"
	KindStr      Kind = "str"
	KindBool     Kind = "bool"
	KindDatetime Kind = "datetime"
	KindUUID     Kind = "uuid"
	KindList     Kind = "list"
	KindObj      Kind = "obj"
)

// Value is a sealed interface over the runtime value variants.
// Only Null, Int, Float, Str, Bool, Datetime, UUID, List, and Obj implement it.
type Value interface {
	Kind() Kind
	value() // sealed
}

// Null is an explicit null. Any column accepts it regardless of declared type.
type Null struct{}

func (Null) value()     {}
func (Null) Kind() Kind { return KindNull }

// Int is a 64-bit integer value.
type Int int64

func (Int) value()     {}
func (Int) Kind() Kind { return KindInt }

// Float is a 64-bit floating point value.
type Float float64

func (Float) value()     {}
func (Float) Kind() Kind { return KindFloat }

// Str is a string value.
type Str string

func (Str) value()     {}
func (Str) Kind() Kind { return KindStr }

// Bool is a boolean value.
type Bool bool

func (Bool) value()     {}
func (Bool) Kind() Kind { return KindBool }

// Datetime is an instant in time. Stored and compared in UTC.
type Datetime time.Time

func (Datetime) value()     {}
func (Datetime) Kind() Kind { return KindDatetime }

// Time returns the underlying time.Time in UTC.
func (d Datetime) Time() time.Time { return time.Time(d).UTC() }

// UUID is an RFC 4122 UUID value.
type UUID uuid.UUID

func (UUID) value()     {}
func (UUID) Kind() Kind { return KindUUID }

// String returns the hyphenated form.
func (u UUID) String() string { return uuid.UUID(u).String() }

// List is an ordered sequence of values.
type List []Value

func (List) value()     {}
func (List) Kind() Kind { return KindList }

// Obj is a mapping from field name to value (dictionary / record shaped).
// Use SortedKeys for deterministic iteration.
type Obj map[string]Value

func (Obj) value()     {}
func (Obj) Kind() Kind { return KindObj }

// NewDatetime builds a Datetime normalized to UTC.
func NewDatetime(t time.Time) Datetime { return Datetime(t.UTC()) }

// NewUUID builds a UUID value from a parsed uuid.
func NewUUID(u uuid.UUID) UUID { return UUID(u) }

// Equal reports deep equality of two values, comparing kind and content.
// Datetimes compare as instants; lists and objects compare element-wise.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Null:
		return true
	case Int:
		return av == b.(Int)
	case Float:
		return av == b.(Float)
	case Str:
		return av == b.(Str)
	case Bool:
		return av == b.(Bool)
	case Datetime:
		return av.Time().Equal(b.(Datetime).Time())
	case UUID:
		return av == b.(UUID)
	case List:
		bv := b.(List)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Obj:
		bv := b.(Obj)
		if len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			ov, ok := bv[k]
			if !ok || !Equal(v, ov) {
				return false
			}
		}
		return true
	}
	return false
}
