// Package route matches request paths against user-defined URL templates.
//
// A template is a slash-delimited sequence of segments, each a literal or a
// :name variable. A trailing variable is greedy: it captures the remainder of
// the path including subsequent slashes. Everything here is a pure function
// over strings; no state, no I/O.
package route

import "strings"

// segments splits a template or path on "/", dropping empty segments so that
// leading and trailing slashes do not count.
func segments(s string) []string {
	parts := strings.Split(s, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isVariable(seg string) bool {
	return strings.HasPrefix(seg, ":")
}

// ExtractVariables returns the template's variable names in order.
func ExtractVariables(template string) []string {
	var names []string
	for _, seg := range segments(template) {
		if isVariable(seg) {
			names = append(names, strings.TrimPrefix(seg, ":"))
		}
	}
	return names
}

// MatchPath matches a concrete request path against a template, binding
// variable segments. Returns nil, false on any mismatch.
//
// The path may only be longer than the template when the template's final
// segment is a variable - it then captures every remaining path segment
// joined by "/". A literal mismatch at any position fails the whole match,
// even if some wildcard interpretation could have absorbed it.
func MatchPath(template, path string) (map[string]string, bool) {
	tsegs := segments(template)
	psegs := segments(path)

	if len(psegs) < len(tsegs) {
		return nil, false
	}
	if len(psegs) > len(tsegs) {
		if len(tsegs) == 0 || !isVariable(tsegs[len(tsegs)-1]) {
			return nil, false
		}
	}

	bindings := make(map[string]string)
	for i, tseg := range tsegs {
		if !isVariable(tseg) {
			if tseg != psegs[i] {
				return nil, false
			}
			continue
		}
		name := strings.TrimPrefix(tseg, ":")
		if i == len(tsegs)-1 {
			bindings[name] = strings.Join(psegs[i:], "/")
		} else {
			bindings[name] = psegs[i]
		}
	}
	return bindings, true
}

// LooselyMatches is the coarse membership pre-filter: every variable segment
// is treated as a "%" wildcard that may match a single segment or the rest of
// the path, mirroring a SQL LIKE over the request path. Precise matching and
// specificity ranking run only on templates that pass this.
func LooselyMatches(template, path string) bool {
	tsegs := segments(template)
	pattern := make([]string, len(tsegs))
	for i, seg := range tsegs {
		if isVariable(seg) {
			pattern[i] = "%"
		} else {
			pattern[i] = seg
		}
	}
	return likeMatch("/"+strings.Join(pattern, "/"), "/"+strings.Join(segments(path), "/"))
}

// likeMatch implements SQL LIKE with "%" as the only wildcard. "%" matches
// any run of characters, separators included.
func likeMatch(pattern, s string) bool {
	chunks := strings.Split(pattern, "%")
	if len(chunks) == 1 {
		return pattern == s
	}

	// Anchored prefix.
	if !strings.HasPrefix(s, chunks[0]) {
		return false
	}
	s = s[len(chunks[0]):]

	// Anchored suffix.
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(s, last) {
		return false
	}
	s = s[:len(s)-len(last)]

	// Middle chunks match greedily left to right.
	for _, chunk := range chunks[1 : len(chunks)-1] {
		if chunk == "" {
			continue
		}
		idx := strings.Index(s, chunk)
		if idx < 0 {
			return false
		}
		s = s[idx+len(chunk):]
	}
	return true
}
