package harness

import (
	"errors"
	"fmt"

	"github.com/roach88/tapestry/internal/canvas"
	"github.com/roach88/tapestry/internal/dispatch"
	"github.com/roach88/tapestry/internal/op"
)

// Result holds the outcome of running a scenario.
type Result struct {
	// Canvas is the folded program after the last step.
	Canvas *canvas.Canvas

	// Dropped counts the steps filtered out as stale.
	Dropped int

	// Warnings accumulates the malformed-op warnings across steps.
	Warnings []canvas.Warning

	// Routes holds one outcome per scenario route check, in order.
	Routes []RouteResult
}

// RouteResult is the dispatch outcome for one route check.
type RouteResult struct {
	Method    string
	Path      string
	Match     *dispatch.Match
	Ambiguous bool
}

// Run folds the scenario's steps in order, applying the same staleness
// filtering the engine would, then evaluates the route checks.
func Run(s *Scenario) (*Result, error) {
	result := &Result{Canvas: canvas.New()}

	// In-memory submission counters stand in for the store's.
	counters := make(map[string]int64)

	for i, step := range s.Steps {
		list, err := step.Oplist()
		if err != nil {
			return nil, fmt.Errorf("scenario %s step %d: %w", s.Name, i, err)
		}

		fresh, dropped := canvas.FilterStale([]op.Oplist{list}, func(clientID string, opCtr int64) bool {
			if opCtr <= counters[clientID] {
				return false
			}
			counters[clientID] = opCtr
			return true
		})
		result.Dropped += dropped
		if len(fresh) == 0 {
			continue
		}

		res, err := canvas.Fold(result.Canvas, fresh)
		if err != nil {
			return nil, fmt.Errorf("scenario %s step %d: %w", s.Name, i, err)
		}
		result.Canvas = res.Canvas
		result.Warnings = append(result.Warnings, res.Warnings...)
	}

	for _, check := range s.Routes {
		rr := RouteResult{Method: check.Method, Path: check.Path}
		m, err := dispatch.Dispatch(result.Canvas, check.Method, check.Path)
		var ambiguous *dispatch.AmbiguousRouteError
		switch {
		case errors.As(err, &ambiguous):
			rr.Ambiguous = true
		case err != nil:
			return nil, fmt.Errorf("scenario %s route %s %s: %w", s.Name, check.Method, check.Path, err)
		default:
			rr.Match = m
		}
		result.Routes = append(result.Routes, rr)
	}

	return result, nil
}
