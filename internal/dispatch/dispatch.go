// Package dispatch resolves which handler, if any, serves a request.
//
// It is glue: the snapshot comes from the canvas fold, the matching from the
// route package. Only HTTP-space handlers participate; workers, crons and
// REPLs are triggered by name, never by path.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/roach88/tapestry/internal/canvas"
	"github.com/roach88/tapestry/internal/op"
	"github.com/roach88/tapestry/internal/route"
)

// Match is a successfully resolved route.
type Match struct {
	TLID     op.TLID
	Handler  *op.Handler
	Bindings map[string]string
}

// AmbiguousRouteError reports that more than one handler is maximally
// specific for the path. It is a caller-facing condition, never resolved
// arbitrarily here.
type AmbiguousRouteError struct {
	Method     string
	Path       string
	Candidates []canvas.LiveHandler
}

func (e *AmbiguousRouteError) Error() string {
	routes := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		routes[i] = c.Handler.Route
	}
	return fmt.Sprintf("ambiguous route: %s %s matches %s",
		e.Method, e.Path, strings.Join(routes, ", "))
}

// Dispatch answers which live HTTP handler serves method+path.
//
// Returns (nil, nil) when no handler matches, and *AmbiguousRouteError when
// several equally specific handlers do.
func Dispatch(c *canvas.Canvas, method, path string) (*Match, error) {
	method = strings.ToUpper(method)

	// Method filter plus the loose pre-filter; precise matching and ranking
	// happen inside the specificity resolver.
	var candidates []canvas.LiveHandler
	for _, lh := range c.HTTPHandlers() {
		if !strings.EqualFold(lh.Handler.Method, method) {
			continue
		}
		if route.LooselyMatches(lh.Handler.Route, path) {
			candidates = append(candidates, lh)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	templates := make([]string, len(candidates))
	for i, c := range candidates {
		templates[i] = c.Handler.Route
	}

	winners := route.MostSpecific(path, templates)
	switch len(winners) {
	case 0:
		return nil, nil
	case 1:
		winner := candidates[winners[0]]
		bindings, ok := route.MatchPath(winner.Handler.Route, path)
		if !ok {
			// MostSpecific only returns precise matches, so this is a bug in
			// the resolver, reported rather than thrown.
			return nil, fmt.Errorf("dispatch: winner %q does not match %q", winner.Handler.Route, path)
		}
		return &Match{TLID: winner.TLID, Handler: winner.Handler, Bindings: bindings}, nil
	default:
		ambiguous := make([]canvas.LiveHandler, len(winners))
		for i, w := range winners {
			ambiguous[i] = candidates[w]
		}
		return nil, &AmbiguousRouteError{Method: method, Path: path, Candidates: ambiguous}
	}
}
