package testutil

import (
	"sync"

	"github.com/roach88/tapestry/internal/op"
)

// TLIDSource is a thread-safe sequential toplevel id allocator for tests.
//
// Production callers mint random tlids; tests use this so compiled seeds and
// golden snapshots come out byte-identical run to run.
type TLIDSource struct {
	mu   sync.Mutex
	next int64
}

// NewTLIDSource creates a source whose first Next() returns 1.
func NewTLIDSource() *TLIDSource {
	return &TLIDSource{}
}

// Next allocates the next tlid.
func (s *TLIDSource) Next() op.TLID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return op.TLID(s.next)
}

// Current returns the most recently allocated tlid without advancing.
func (s *TLIDSource) Current() op.TLID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return op.TLID(s.next)
}

// Reset rewinds the source so the next call to Next() returns 1 again.
func (s *TLIDSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = 0
}
