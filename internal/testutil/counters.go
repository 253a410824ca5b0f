package testutil

import "sync"

// SubmissionCounters hands out strictly increasing submission counters per
// client id, the way a well-behaved editor client would.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SubmissionCounters struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewSubmissionCounters creates an empty counter set. For every client the
// first Next() returns 1.
func NewSubmissionCounters() *SubmissionCounters {
	return &SubmissionCounters{counters: make(map[string]int64)}
}

// Next increments and returns the counter for clientID.
func (c *SubmissionCounters) Next(clientID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[clientID]++
	return c.counters[clientID]
}

// Current returns clientID's counter without incrementing, 0 if the client
// has never submitted.
func (c *SubmissionCounters) Current(clientID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[clientID]
}
