package kvcollate

// stagingBuffer is a resizable ordered sequence of pairs with a
// pre-reserved capacity. It is either free (empty, owned by the pool)
// or full (non-empty, owned transitively by whichever producer checked
// it out, then by the mapper until drained).
type stagingBuffer struct {
	pairs []Pair
}

// newStagingBuffer allocates a staging buffer with the given pre-reserved
// capacity. The backing array is never reallocated smaller; clear keeps
// it and only resets the length.
func newStagingBuffer(capacity int) *stagingBuffer {
	return &stagingBuffer{pairs: make([]Pair, 0, capacity)}
}

// Append adds a pair to the buffer. The caller must hold exclusive
// access to the buffer (i.e. it must have been checked out via
// Collator.GetBuffer and not yet returned).
func (b *stagingBuffer) Append(p Pair) {
	b.pairs = append(b.pairs, p)
}

// Len returns the number of pairs currently in the buffer.
func (b *stagingBuffer) Len() int {
	return len(b.pairs)
}

// clear empties the buffer while retaining its backing array's capacity.
func (b *stagingBuffer) clear() {
	b.pairs = b.pairs[:0]
}
