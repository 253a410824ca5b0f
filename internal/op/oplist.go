package op

// Oplist is an ordered batch of ops submitted together by one client.
//
// ClientID identifies the submitting client instance and OpCtr is that
// client's monotonically increasing submission counter. Together they give
// the idempotency key: a resubmission whose counter is not strictly newer
// than the last accepted counter for the client is stale and must be
// filtered before folding, never applied.
type Oplist struct {
	ClientID string `json:"client_id"`
	OpCtr    int64  `json:"op_ctr"`
	Ops      []Op   `json:"ops"`
}

// TLIDs returns the distinct tlids touched by the oplist, in first-seen order.
func (l Oplist) TLIDs() []TLID {
	seen := make(map[TLID]bool, len(l.Ops))
	var out []TLID
	for _, o := range l.Ops {
		if !seen[o.TLID()] {
			seen[o.TLID()] = true
			out = append(out, o.TLID())
		}
	}
	return out
}

// HasEffect reports whether any op in the list is effectful.
func (l Oplist) HasEffect() bool {
	for _, o := range l.Ops {
		if o.HasEffect() {
			return true
		}
	}
	return false
}
