package op

import (
	"encoding/json"
	"fmt"
)

// Ops serialize as a tagged union: the concrete variant's fields plus an
// "op" discriminator, e.g. {"op":"create_db","tlid":1,"name":"users"}.
// This is the storage format for the oplist log, so it must stay stable.

const (
	kindCreateDB          = "create_db"
	kindRenameDB          = "rename_db"
	kindAddDBCol          = "add_db_col"
	kindSetDBColName      = "set_db_col_name"
	kindSetDBColType      = "set_db_col_type"
	kindDeleteDBCol       = "delete_db_col"
	kindCreateDBMigration = "create_db_migration"
	kindSetHandler        = "set_handler"
	kindSetFunction       = "set_function"
	kindSetType           = "set_type"
	kindMoveTL            = "move_tl"
	kindDeleteTL          = "delete_tl"
	kindDeleteFunction    = "delete_function"
	kindDeleteType        = "delete_type"
	kindSavepoint         = "savepoint"
	kindUndoTL            = "undo_tl"
	kindRedoTL            = "redo_tl"
)

func opKind(o Op) (string, error) {
	switch o.(type) {
	case CreateDB:
		return kindCreateDB, nil
	case RenameDB:
		return kindRenameDB, nil
	case AddDBCol:
		return kindAddDBCol, nil
	case SetDBColName:
		return kindSetDBColName, nil
	case SetDBColType:
		return kindSetDBColType, nil
	case DeleteDBCol:
		return kindDeleteDBCol, nil
	case CreateDBMigration:
		return kindCreateDBMigration, nil
	case SetHandler:
		return kindSetHandler, nil
	case SetFunction:
		return kindSetFunction, nil
	case SetType:
		return kindSetType, nil
	case MoveTL:
		return kindMoveTL, nil
	case DeleteTL:
		return kindDeleteTL, nil
	case DeleteFunction:
		return kindDeleteFunction, nil
	case DeleteType:
		return kindDeleteType, nil
	case Savepoint:
		return kindSavepoint, nil
	case UndoTL:
		return kindUndoTL, nil
	case RedoTL:
		return kindRedoTL, nil
	default:
		return "", fmt.Errorf("marshal op: unknown variant %T", o)
	}
}

// MarshalOp serializes one op with its discriminator.
func MarshalOp(o Op) ([]byte, error) {
	kind, err := opKind(o)
	if err != nil {
		return nil, err
	}

	fields, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal op %s: %w", kind, err)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(fields, &m); err != nil {
		return nil, fmt.Errorf("marshal op %s: %w", kind, err)
	}
	m["op"] = json.RawMessage(fmt.Sprintf("%q", kind))
	return json.Marshal(m)
}

// UnmarshalOp deserializes one tagged op.
func UnmarshalOp(data []byte) (Op, error) {
	var envelope struct {
		Kind string `json:"op"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal op: %w", err)
	}

	decode := func(target Op) (Op, error) {
		// target is passed by value; unmarshal into an addressable copy.
		switch t := target.(type) {
		case CreateDB:
			err := json.Unmarshal(data, &t)
			return t, err
		case RenameDB:
			err := json.Unmarshal(data, &t)
			return t, err
		case AddDBCol:
			err := json.Unmarshal(data, &t)
			return t, err
		case SetDBColName:
			err := json.Unmarshal(data, &t)
			return t, err
		case SetDBColType:
			err := json.Unmarshal(data, &t)
			return t, err
		case DeleteDBCol:
			err := json.Unmarshal(data, &t)
			return t, err
		case CreateDBMigration:
			err := json.Unmarshal(data, &t)
			return t, err
		case SetHandler:
			err := json.Unmarshal(data, &t)
			return t, err
		case SetFunction:
			err := json.Unmarshal(data, &t)
			return t, err
		case SetType:
			err := json.Unmarshal(data, &t)
			return t, err
		case MoveTL:
			err := json.Unmarshal(data, &t)
			return t, err
		case DeleteTL:
			err := json.Unmarshal(data, &t)
			return t, err
		case DeleteFunction:
			err := json.Unmarshal(data, &t)
			return t, err
		case DeleteType:
			err := json.Unmarshal(data, &t)
			return t, err
		case Savepoint:
			err := json.Unmarshal(data, &t)
			return t, err
		case UndoTL:
			err := json.Unmarshal(data, &t)
			return t, err
		case RedoTL:
			err := json.Unmarshal(data, &t)
			return t, err
		default:
			return nil, fmt.Errorf("unmarshal op: unknown variant %T", target)
		}
	}

	var zero Op
	switch envelope.Kind {
	case kindCreateDB:
		zero = CreateDB{}
	case kindRenameDB:
		zero = RenameDB{}
	case kindAddDBCol:
		zero = AddDBCol{}
	case kindSetDBColName:
		zero = SetDBColName{}
	case kindSetDBColType:
		zero = SetDBColType{}
	case kindDeleteDBCol:
		zero = DeleteDBCol{}
	case kindCreateDBMigration:
		zero = CreateDBMigration{}
	case kindSetHandler:
		zero = SetHandler{}
	case kindSetFunction:
		zero = SetFunction{}
	case kindSetType:
		zero = SetType{}
	case kindMoveTL:
		zero = MoveTL{}
	case kindDeleteTL:
		zero = DeleteTL{}
	case kindDeleteFunction:
		zero = DeleteFunction{}
	case kindDeleteType:
		zero = DeleteType{}
	case kindSavepoint:
		zero = Savepoint{}
	case kindUndoTL:
		zero = UndoTL{}
	case kindRedoTL:
		zero = RedoTL{}
	default:
		return nil, fmt.Errorf("unmarshal op: unknown kind %q", envelope.Kind)
	}

	decoded, err := decode(zero)
	if err != nil {
		return nil, fmt.Errorf("unmarshal op %s: %w", envelope.Kind, err)
	}
	return decoded, nil
}

// MarshalOps serializes a slice of ops as a JSON array.
func MarshalOps(ops []Op) ([]byte, error) {
	raw := make([]json.RawMessage, len(ops))
	for i, o := range ops {
		data, err := MarshalOp(o)
		if err != nil {
			return nil, fmt.Errorf("ops[%d]: %w", i, err)
		}
		raw[i] = data
	}
	return json.Marshal(raw)
}

// UnmarshalOps deserializes a JSON array of tagged ops.
func UnmarshalOps(data []byte) ([]Op, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal ops: %w", err)
	}
	ops := make([]Op, len(raw))
	for i, r := range raw {
		o, err := UnmarshalOp(r)
		if err != nil {
			return nil, fmt.Errorf("ops[%d]: %w", i, err)
		}
		ops[i] = o
	}
	return ops, nil
}

// MarshalJSON implements json.Marshaler for Oplist, tagging each op.
func (l Oplist) MarshalJSON() ([]byte, error) {
	ops, err := MarshalOps(l.Ops)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		ClientID string          `json:"client_id"`
		OpCtr    int64           `json:"op_ctr"`
		Ops      json.RawMessage `json:"ops"`
	}{l.ClientID, l.OpCtr, ops})
}

// UnmarshalJSON implements json.Unmarshaler for Oplist.
func (l *Oplist) UnmarshalJSON(data []byte) error {
	var raw struct {
		ClientID string          `json:"client_id"`
		OpCtr    int64           `json:"op_ctr"`
		Ops      json.RawMessage `json:"ops"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal oplist: %w", err)
	}
	ops, err := UnmarshalOps(raw.Ops)
	if err != nil {
		return fmt.Errorf("unmarshal oplist: %w", err)
	}
	l.ClientID = raw.ClientID
	l.OpCtr = raw.OpCtr
	l.Ops = ops
	return nil
}
