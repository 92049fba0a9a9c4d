package kvcollate

import "sync/atomic"

// objectPool is a thread-safe LIFO stack of handles of type T. Ordering
// of elements across operations carries no semantic meaning for
// callers; LIFO is simply what a slice-backed stack gives for free
// under the spin lock.
type objectPool[T any] struct {
	lock  spinLock
	items []T
	count atomic.Int64
}

// push adds t to the pool. The size counter is incremented before the
// lock is released, so a concurrent fetch's fast-path empty check never
// observes a stale "empty" pool for an element already appended under
// the lock.
func (p *objectPool[T]) push(t T) {
	p.lock.lock()
	p.items = append(p.items, t)
	p.count.Add(1)
	p.lock.unlock()
}

// empty reports whether the pool currently holds no elements. The result
// may be stale under concurrent use but never reports empty when an
// element was pushed before the call and not yet popped by any fetch.
func (p *objectPool[T]) empty() bool {
	return p.count.Load() == 0
}

// size returns the current element count. May be stale but never
// underflows below zero.
func (p *objectPool[T]) size() int64 {
	return p.count.Load()
}

// fetch pops the most recently pushed element into *out and reports
// true, or reports false if the pool was empty. The fast-path empty
// check avoids taking the spin lock in the common case where the pool
// has nothing to offer.
func (p *objectPool[T]) fetch(out *T) bool {
	if p.empty() {
		return false
	}

	p.lock.lock()
	defer p.lock.unlock()

	n := len(p.items)
	if n == 0 {
		return false
	}

	*out = p.items[n-1]
	p.items = p.items[:n-1]
	p.count.Add(-1)
	return true
}
