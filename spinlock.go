package kvcollate

import (
	"runtime"
	"sync/atomic"
)

// spinLock is a minimal mutual-exclusion primitive for brief critical
// sections: pushing or popping a handle from an object pool.
// Contention is expected to last a single handle copy, so avoiding the
// kernel hand-off latency of sync.Mutex is worth the busy-poll. There is
// no ecosystem library for this: a real spin lock is a low-level
// primitive normally hand-built directly on sync/atomic, never wrapped
// behind a dependency (see DESIGN.md).
//
// The zero value is an unlocked spinLock.
type spinLock struct {
	locked atomic.Bool
}

// lock spins until it acquires the lock. Failing to acquire never blocks
// on I/O or any other resource; it only retries the compare-and-swap.
func (s *spinLock) lock() {
	for !s.locked.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// unlock releases the lock. The caller must hold it.
func (s *spinLock) unlock() {
	s.locked.Store(false)
}
