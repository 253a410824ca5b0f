package testutil

import (
	"sync"
	"testing"
)

func TestTLIDSource_Sequential(t *testing.T) {
	s := NewTLIDSource()
	for want := int64(1); want <= 3; want++ {
		if got := s.Next(); int64(got) != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}
	if got := s.Current(); int64(got) != 3 {
		t.Errorf("Current() = %d, want 3", got)
	}

	s.Reset()
	if got := s.Next(); int64(got) != 1 {
		t.Errorf("Next() after Reset = %d, want 1", got)
	}
}

func TestTLIDSource_ConcurrentUnique(t *testing.T) {
	s := NewTLIDSource()
	const n = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := int64(s.Next())
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("duplicate tlid %d", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()
}

func TestSubmissionCounters_PerClient(t *testing.T) {
	c := NewSubmissionCounters()

	if got := c.Next("a"); got != 1 {
		t.Errorf("first counter = %d, want 1", got)
	}
	if got := c.Next("a"); got != 2 {
		t.Errorf("second counter = %d, want 2", got)
	}
	if got := c.Next("b"); got != 1 {
		t.Errorf("other client's counter = %d, want 1", got)
	}
	if got := c.Current("a"); got != 2 {
		t.Errorf("Current(a) = %d, want 2", got)
	}
	if got := c.Current("nobody"); got != 0 {
		t.Errorf("Current(nobody) = %d, want 0", got)
	}
}
