package userdata

import (
	"errors"
	"fmt"

	"github.com/roach88/tapestry/internal/schema"
	"github.com/roach88/tapestry/internal/value"
)

// SchemaError reports a row that does not satisfy its table's live schema.
// Every code carries the table name; field-level codes also name the column.
type SchemaError struct {
	// Code identifies the violation category.
	Code SchemaErrorCode

	// Message is a human-readable description.
	Message string

	// Table is the table's current name.
	Table string

	// Column names the offending field (for field-level codes).
	Column string

	// Expected is the column's declared type (for type mismatches).
	Expected schema.ColType

	// Actual is the kind the row supplied (for type mismatches).
	Actual value.Kind
}

// SchemaErrorCode categorizes schema violations.
type SchemaErrorCode string

const (
	// ErrCodeUnknownField indicates the row carries a field no live column declares.
	ErrCodeUnknownField SchemaErrorCode = "UNKNOWN_FIELD"

	// ErrCodeMissingField indicates a live column the row does not populate.
	ErrCodeMissingField SchemaErrorCode = "MISSING_FIELD"

	// ErrCodeTypeMismatch indicates a field whose value kind the column rejects.
	ErrCodeTypeMismatch SchemaErrorCode = "TYPE_MISMATCH"

	// ErrCodeUnknownTable indicates the canvas has no live table under that tlid.
	ErrCodeUnknownTable SchemaErrorCode = "UNKNOWN_TABLE"
)

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: %s (table=%s, column=%s)", e.Code, e.Message, e.Table, e.Column)
	}
	return fmt.Sprintf("%s: %s (table=%s)", e.Code, e.Message, e.Table)
}

// IsSchemaError reports whether err is (or wraps) a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

func newUnknownFieldError(table, column string) *SchemaError {
	return &SchemaError{
		Code:    ErrCodeUnknownField,
		Message: "row field has no matching column",
		Table:   table,
		Column:  column,
	}
}

func newMissingFieldError(table, column string) *SchemaError {
	return &SchemaError{
		Code:    ErrCodeMissingField,
		Message: "row does not populate column",
		Table:   table,
		Column:  column,
	}
}

func newTypeMismatchError(table, column string, expected schema.ColType, actual value.Kind) *SchemaError {
	return &SchemaError{
		Code:     ErrCodeTypeMismatch,
		Message:  fmt.Sprintf("column holds %s, row supplies %s", expected, actual),
		Table:    table,
		Column:   column,
		Expected: expected,
		Actual:   actual,
	}
}

func newUnknownTableError(table string) *SchemaError {
	return &SchemaError{
		Code:    ErrCodeUnknownTable,
		Message: "no live table",
		Table:   table,
	}
}
