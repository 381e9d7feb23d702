package cache

import (
	"hash/fnv"
	"sync"
)

// stripedLocks is a small fixed-size stripe of mutexes indexed by hash(key),
// so per-key operations (promotion, delete, set) serialize without the
// contention of a single global lock (spec.md §4.1).
type stripedLocks struct {
	mus []sync.Mutex
}

func newStripedLocks(n int) *stripedLocks {
	return &stripedLocks{mus: make([]sync.Mutex, n)}
}

func (s *stripedLocks) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % len(s.mus)
}

// lock acquires the stripe for key and returns a function to release it.
func (s *stripedLocks) lock(key string) func() {
	idx := s.index(key)
	if idx < 0 {
		idx += len(s.mus)
	}
	s.mus[idx].Lock()
	return s.mus[idx].Unlock
}
