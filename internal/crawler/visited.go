package crawler

import (
	"sort"
	"sync"
)

// VisitedSet records every URL that has been enqueued.
// Add is an atomic test-and-insert, which is what keeps concurrent workers
// from enqueueing the same URL twice.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// Add inserts u and reports whether it was absent.
func (v *VisitedSet) Add(u string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.urls[u]; ok {
		return false
	}
	v.urls[u] = struct{}{}
	return true
}

// Contains reports whether u has been added.
func (v *VisitedSet) Contains(u string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.urls[u]
	return ok
}

// Len returns the number of URLs in the set.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.urls)
}

// Sorted returns the members in lexical order.
func (v *VisitedSet) Sorted() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.urls))
	for u := range v.urls {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
