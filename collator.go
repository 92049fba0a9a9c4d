package kvcollate

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	kverrors "github.com/arrowstream/kvcollate/errors"
)

// state is the Collator's lifecycle: Open -> Closed -> Collated ->
// Iterated -> Destroyed. Transitions are one-way.
type state int

const (
	stateOpen state = iota
	stateClosed
	stateCollated
	stateIterated
	stateDestroyed
)

// Collator accepts (key, value) pairs from many concurrent producers,
// hash-partitions them onto disk via a background mapper goroutine, and
// — once CloseDepositStream and Collate have run — exposes a
// key-grouped iterator over the sorted result.
type Collator struct {
	mu         sync.Mutex
	state      state
	cfg        *config
	workPrefix string

	partitions []*partitionWriter
	pool       bufferPool
	bufCount   int

	streamIncoming atomic.Bool
	mapperDone     chan error
	mapperJoined   bool
}

// New constructs a Collator. workPrefix is the path prefix for the P
// partition files, created at <workPrefix>.<p>.part. bufCount is the
// size of the buffer pool; it should be at least twice the number of
// concurrent producers so producers are rarely throttled waiting on
// GetBuffer.
//
// New pre-reserves P per-partition buffers at capacity T, opens P
// output files, allocates bufCount staging buffers into the free set,
// and spawns the mapper goroutine.
func New(workPrefix string, bufCount int, opts ...Option) (*Collator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if !isPowerOfTwo(cfg.partitions) {
		return nil, kverrors.ErrInvalidPartitionCount
	}
	if cfg.threshold <= 0 {
		return nil, kverrors.ErrInvalidThreshold
	}
	if bufCount <= 0 {
		return nil, kverrors.ErrInvalidBufferCount
	}

	c := &Collator{
		cfg:        cfg,
		workPrefix: workPrefix,
		bufCount:   bufCount,
		mapperDone: make(chan error, 1),
	}
	c.streamIncoming.Store(true)

	c.partitions = make([]*partitionWriter, cfg.partitions)
	for p := 0; p < cfg.partitions; p++ {
		pw, err := newPartitionWriter(p, partitionPath(workPrefix, p), cfg.threshold)
		if err != nil {
			c.closePartitionsBestEffort(p)
			return nil, err
		}
		c.partitions[p] = pw
	}

	for i := 0; i < bufCount; i++ {
		c.pool.returnFree(newStagingBuffer(cfg.threshold))
	}

	go func() {
		c.mapperDone <- c.runMapperRecovered()
	}()

	return c, nil
}

// runMapperRecovered runs the mapper and turns a panic into
// ErrMapperNotJoinable instead of letting it crash the process, mirroring
// how Collate recovers a collation worker panic.
func (c *Collator) runMapperRecovered() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", kverrors.ErrMapperNotJoinable, r)
		}
	}()
	return c.runMapper()
}

func partitionPath(workPrefix string, p int) string {
	return fmt.Sprintf("%s.%d.part", workPrefix, p)
}

func (c *Collator) closePartitionsBestEffort(upTo int) {
	for p := 0; p < upTo; p++ {
		_ = c.partitions[p].close()
		_ = os.Remove(c.partitions[p].path)
	}
}

// GetBuffer spin-waits until a free staging buffer is available and
// returns it. The caller must eventually pass the same buffer to
// ReturnBuffer; after that call the caller must not access it again.
//
// Unbounded spin is acceptable because producers only transiently
// outnumber the mapper's drain rate when bufCount is sized sensibly
// relative to the producer count.
func (c *Collator) GetBuffer() *stagingBuffer {
	var buf *stagingBuffer
	for !c.pool.fetchFree(&buf) {
		// busy-poll: contention is expected to be brief and I/O-free
	}
	return buf
}

// ReturnBuffer hands a filled buffer to the mapper. After this call the
// caller must not access b.
func (c *Collator) ReturnBuffer(b *stagingBuffer) {
	c.pool.returnFull(b)
}

// CloseDepositStream signals that no more buffers will be returned,
// joins the mapper, flushes any non-empty partition buffer, and closes
// every partition file handle.
//
// A mapper panic is recovered in the mapper goroutine itself (see
// runMapperRecovered) and surfaces here as ErrMapperNotJoinable once
// the join completes, the same way Collate reports a collation worker
// panic.
func (c *Collator) CloseDepositStream() error {
	c.mu.Lock()
	if c.state != stateOpen {
		c.mu.Unlock()
		return kverrors.ErrAlreadyClosed
	}
	c.state = stateClosed
	c.mu.Unlock()

	c.streamIncoming.Store(false)

	mapperErr := <-c.mapperDone
	c.mapperJoined = true
	if mapperErr != nil {
		return mapperErr
	}

	for _, pw := range c.partitions {
		if err := pw.flush(); err != nil {
			return err
		}
		pw.buf = nil // release the in-memory buffer's capacity
		if err := pw.close(); err != nil {
			return fmt.Errorf("close partition %d: %w", pw.id, err)
		}
		pw.file = nil
	}

	return nil
}

// Begin returns a new iterator positioned before the first pair of the
// collection. Collate must have already run; Begin may be called any
// number of times afterward to hand out independent iterators, e.g. one
// per goroutine driving a batched Read loop.
func (c *Collator) Begin() (*Iterator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateCollated && c.state != stateIterated {
		return nil, kverrors.ErrNotCollated
	}
	c.state = stateIterated
	return newIterator(c.workPrefix, len(c.partitions), c.cfg.readBufferSize), nil
}

// End returns an at-end iterator for comparison against an iterator
// produced by Begin.
func (c *Collator) End() *Iterator {
	return endIterator()
}

// Destroy releases the Collator's resources and removes every partition
// file. It requires the mapper to have joined and every pool buffer to
// be free; calling it with outstanding buffers or a live mapper is a
// usage error, returned here as ErrDestroyedWithState instead of
// aborting the process.
func (c *Collator) Destroy() error {
	c.mu.Lock()
	if c.state == stateDestroyed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if !c.mapperJoined || c.pool.fullCount() != 0 || c.pool.freeCount() != int64(c.bufCount) {
		return kverrors.ErrDestroyedWithState
	}

	c.mu.Lock()
	c.state = stateDestroyed
	c.mu.Unlock()

	var firstErr error
	for _, pw := range c.partitions {
		if pw.file != nil {
			_ = pw.close()
		}
		if err := os.Remove(pw.path); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: partition %d: %v", kverrors.ErrPartitionRemove, pw.id, err)
		}
	}
	return firstErr
}
