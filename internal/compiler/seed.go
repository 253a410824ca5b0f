// Package compiler lowers declarative CUE program seeds into oplists. A
// seed describes the tables, handlers, and functions a program should start
// with; compiling it yields the edit history that, folded onto an empty
// canvas, produces that program.
package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/google/uuid"

	"github.com/roach88/tapestry/internal/op"
	"github.com/roach88/tapestry/internal/schema"
)

// NextTLID allocates toplevel ids for the compiled ops. Production callers
// pass a random allocator; tests pass a sequential one for stable output.
type NextTLID func() op.TLID

// CompileSeed parses a CUE value holding a program seed and lowers it into
// one oplist per toplevel, in source order. The expected shape:
//
//	tables: users: cols: {
//		name: "Str"
//		age:  "Int"
//	}
//	handlers: get_user: {
//		space:  "HTTP"
//		route:  "/user/:id"
//		method: "GET"
//		code:   "..."
//	}
//	functions: greet: {
//		params: ["name"]
//		code: "..."
//	}
func CompileSeed(v cue.Value, next NextTLID) ([]op.Oplist, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	var lists []op.Oplist

	tables, err := compileTables(v, next)
	if err != nil {
		return nil, err
	}
	lists = append(lists, tables...)

	handlers, err := compileHandlers(v, next)
	if err != nil {
		return nil, err
	}
	lists = append(lists, handlers...)

	functions, err := compileFunctions(v, next)
	if err != nil {
		return nil, err
	}
	lists = append(lists, functions...)

	if len(lists) == 0 {
		return nil, &CompileError{
			Field:   "seed",
			Message: "seed declares no tables, handlers, or functions",
			Pos:     v.Pos(),
		}
	}
	return lists, nil
}

// CompileSeedFile loads and compiles a seed from a .cue file.
func CompileSeedFile(path string, next NextTLID) ([]op.Oplist, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return CompileSeedString(string(src), next)
}

// CompileSeedString compiles a seed from CUE source text.
func CompileSeedString(src string, next NextTLID) ([]op.Oplist, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	return CompileSeed(v, next)
}

// compileTables lowers each tables entry into a create plus column ops.
// Column identities are minted here; the seed never names them.
func compileTables(v cue.Value, next NextTLID) ([]op.Oplist, error) {
	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return nil, nil
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var lists []op.Oplist
	for iter.Next() {
		name := iter.Selector().Unquoted()
		id := next()
		ops := []op.Op{op.CreateDB{ID: id, Name: name}}

		colsVal := iter.Value().LookupPath(cue.ParsePath("cols"))
		if colsVal.Exists() {
			colIter, err := colsVal.Fields()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for colIter.Next() {
				colName := colIter.Selector().Unquoted()
				typeStr, err := colIter.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				colType := schema.ColType(typeStr)
				if !colType.IsValid() {
					return nil, &CompileError{
						Field:   fmt.Sprintf("tables.%s.cols.%s", name, colName),
						Message: fmt.Sprintf("unknown column type %q", typeStr),
						Pos:     colIter.Value().Pos(),
					}
				}
				nameID, typeID := uuid.New(), uuid.New()
				ops = append(ops,
					op.AddDBCol{ID: id, NameID: nameID, TypeID: typeID},
					op.SetDBColName{ID: id, NameID: nameID, Name: colName},
					op.SetDBColType{ID: id, TypeID: typeID, Type: colType},
				)
			}
		}
		lists = append(lists, op.Oplist{Ops: ops})
	}
	return lists, nil
}

func compileHandlers(v cue.Value, next NextTLID) ([]op.Oplist, error) {
	handlersVal := v.LookupPath(cue.ParsePath("handlers"))
	if !handlersVal.Exists() {
		return nil, nil
	}

	iter, err := handlersVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var lists []op.Oplist
	for iter.Next() {
		name := iter.Selector().Unquoted()
		h := op.Handler{Name: name}

		hv := iter.Value()
		space, err := stringField(hv, "space")
		if err != nil {
			return nil, err
		}
		h.Space = parseSpace(space)
		if h.Space == op.SpaceHTTP {
			if h.Route, err = stringField(hv, "route"); err != nil {
				return nil, err
			}
			if h.Method, err = stringField(hv, "method"); err != nil {
				return nil, err
			}
			if h.Route == "" || h.Method == "" {
				return nil, &CompileError{
					Field:   fmt.Sprintf("handlers.%s", name),
					Message: "HTTP handlers need route and method",
					Pos:     hv.Pos(),
				}
			}
		}
		if h.Code, err = stringField(hv, "code"); err != nil {
			return nil, err
		}

		lists = append(lists, op.Oplist{Ops: []op.Op{
			op.SetHandler{ID: next(), Handler: h},
		}})
	}
	return lists, nil
}

func compileFunctions(v cue.Value, next NextTLID) ([]op.Oplist, error) {
	functionsVal := v.LookupPath(cue.ParsePath("functions"))
	if !functionsVal.Exists() {
		return nil, nil
	}

	iter, err := functionsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var lists []op.Oplist
	for iter.Next() {
		fn := op.Function{Name: iter.Selector().Unquoted()}

		fv := iter.Value()
		if fn.Code, err = stringField(fv, "code"); err != nil {
			return nil, err
		}

		paramsVal := fv.LookupPath(cue.ParsePath("params"))
		if paramsVal.Exists() {
			paramIter, err := paramsVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for paramIter.Next() {
				p, err := paramIter.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				fn.Params = append(fn.Params, p)
			}
		}

		lists = append(lists, op.Oplist{Ops: []op.Op{
			op.SetFunction{ID: next(), Function: fn},
		}})
	}
	return lists, nil
}

// stringField reads an optional string field, empty when absent.
func stringField(v cue.Value, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func parseSpace(s string) op.Space {
	switch op.Space(s) {
	case op.SpaceHTTP, op.SpaceCron, op.SpaceWorker, op.SpaceREPL:
		return op.Space(s)
	default:
		return op.SpaceOther
	}
}

// CompileError represents a seed compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return firstErr
}
