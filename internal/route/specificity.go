package route

// Specificity ranking: when several templates structurally match one path,
// the winner is decided in two steps.
//
//  1. Longer templates dominate: only the group with the greatest segment
//     count survives. A shorter template is reachable only when no longer
//     one matches.
//  2. Within that group, templates are compared segment by segment, left to
//     right: a literal beats a variable at the earliest differing position.
//     "/a/b/:c" therefore beats "/a/:b/c" beats "/:a/b/c".
//
// Templates still tied after both steps are a genuine ambiguity - e.g.
// "/a/:b/c" vs "/a/b/:c" cannot both be written, but "/:x/:y" vs "/:a/:b"
// can - and the full tied set is returned for the caller to surface.

// MostSpecific returns the indexes of the templates that should serve path:
// precise-match filtering first, then the ranking above. The result preserves
// the input order of templates. An empty result means nothing matched; more
// than one index means the route is ambiguous.
func MostSpecific(path string, templates []string) []int {
	// Step 1: discard templates that fail the precise matcher.
	var matched []int
	for i, tpl := range templates {
		if _, ok := MatchPath(tpl, path); ok {
			matched = append(matched, i)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	// Step 2: only the greatest segment count can win.
	maxLen := 0
	for _, i := range matched {
		if n := len(segments(templates[i])); n > maxLen {
			maxLen = n
		}
	}
	var longest []int
	for _, i := range matched {
		if len(segments(templates[i])) == maxLen {
			longest = append(longest, i)
		}
	}

	// Step 3: position-wise literal-over-variable ranking.
	best := literalMask(templates[longest[0]])
	winners := []int{longest[0]}
	for _, i := range longest[1:] {
		mask := literalMask(templates[i])
		switch compareMasks(mask, best) {
		case 1:
			best = mask
			winners = winners[:0]
			winners = append(winners, i)
		case 0:
			winners = append(winners, i)
		}
	}
	return winners
}

// literalMask maps a template's segments to true for literals.
func literalMask(template string) []bool {
	segs := segments(template)
	mask := make([]bool, len(segs))
	for i, seg := range segs {
		mask[i] = !isVariable(seg)
	}
	return mask
}

// compareMasks orders two equal-length masks: at the earliest position the
// masks differ, the literal wins.
func compareMasks(a, b []bool) int {
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if a[i] {
			return 1
		}
		return -1
	}
	return 0
}
