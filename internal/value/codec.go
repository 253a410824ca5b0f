package value

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// The storage codec serializes values as a tagged union so that every kind
// survives a round-trip. A bare JSON number cannot distinguish Int from
// Float, and a bare string cannot distinguish Str from Datetime or UUID, so
// each value is wrapped as {"k": <kind>, "v": <payload>}.

type taggedValue struct {
	K Kind            `json:"k"`
	V json.RawMessage `json:"v,omitempty"`
}

// EncodeJSON serializes a value with kind tags preserved.
func EncodeJSON(v Value) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("encode value: nil Value (use Null{})")
	}

	var payload any
	switch val := v.(type) {
	case Null:
		return json.Marshal(taggedValue{K: KindNull})
	case Int:
		payload = int64(val)
	case Float:
		payload = float64(val)
	case Str:
		payload = string(val)
	case Bool:
		payload = bool(val)
	case Datetime:
		payload = val.Time().Format(time.RFC3339Nano)
	case UUID:
		payload = val.String()
	case List:
		elems := make([]json.RawMessage, len(val))
		for i, elem := range val {
			data, err := EncodeJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			elems[i] = data
		}
		payload = elems
	case Obj:
		fields := make(map[string]json.RawMessage, len(val))
		for k, elem := range val {
			data, err := EncodeJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("obj[%q]: %w", k, err)
			}
			fields[k] = data
		}
		payload = fields
	default:
		return nil, fmt.Errorf("encode value: unknown variant %T", v)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taggedValue{K: v.Kind(), V: raw})
}

// DecodeJSON deserializes a tagged value produced by EncodeJSON.
func DecodeJSON(data []byte) (Value, error) {
	var tagged taggedValue
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return decodeTagged(tagged)
}

func decodeTagged(tagged taggedValue) (Value, error) {
	switch tagged.K {
	case KindNull:
		return Null{}, nil
	case KindInt:
		var n int64
		if err := json.Unmarshal(tagged.V, &n); err != nil {
			return nil, fmt.Errorf("decode int: %w", err)
		}
		return Int(n), nil
	case KindFloat:
		var f float64
		if err := json.Unmarshal(tagged.V, &f); err != nil {
			return nil, fmt.Errorf("decode float: %w", err)
		}
		return Float(f), nil
	case KindStr:
		var s string
		if err := json.Unmarshal(tagged.V, &s); err != nil {
			return nil, fmt.Errorf("decode str: %w", err)
		}
		return Str(s), nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(tagged.V, &b); err != nil {
			return nil, fmt.Errorf("decode bool: %w", err)
		}
		return Bool(b), nil
	case KindDatetime:
		var s string
		if err := json.Unmarshal(tagged.V, &s); err != nil {
			return nil, fmt.Errorf("decode datetime: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("decode datetime %q: %w", s, err)
		}
		return NewDatetime(t), nil
	case KindUUID:
		var s string
		if err := json.Unmarshal(tagged.V, &s); err != nil {
			return nil, fmt.Errorf("decode uuid: %w", err)
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("decode uuid %q: %w", s, err)
		}
		return UUID(u), nil
	case KindList:
		var elems []json.RawMessage
		if err := json.Unmarshal(tagged.V, &elems); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		list := make(List, len(elems))
		for i, raw := range elems {
			elem, err := DecodeJSON(raw)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = elem
		}
		return list, nil
	case KindObj:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(tagged.V, &fields); err != nil {
			return nil, fmt.Errorf("decode obj: %w", err)
		}
		obj := make(Obj, len(fields))
		for k, raw := range fields {
			elem, err := DecodeJSON(raw)
			if err != nil {
				return nil, fmt.Errorf("obj[%q]: %w", k, err)
			}
			obj[k] = elem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("decode value: unknown kind %q", tagged.K)
	}
}

// EncodeRow serializes a whole row (column name -> value) with kind tags.
func EncodeRow(row Obj) ([]byte, error) {
	return EncodeJSON(row)
}

// DecodeRow deserializes a row produced by EncodeRow.
func DecodeRow(data []byte) (Obj, error) {
	v, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(Obj)
	if !ok {
		return nil, fmt.Errorf("decode row: expected obj, got %s", v.Kind())
	}
	return obj, nil
}
