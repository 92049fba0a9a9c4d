// Package errors defines all exported error sentinels for the kvcollate
// library. This is the single source of truth for error values, so
// errors.Is checks work the same way whether the caller imports this
// package directly or receives a wrapped error back from kvcollate.
package errors

import "errors"

// Construction errors.
var (
	ErrInvalidPartitionCount = errors.New("kvcollate: partition count must be a power of two")
	ErrInvalidBufferCount    = errors.New("kvcollate: buffer count must be positive")
	ErrInvalidThreshold      = errors.New("kvcollate: partition threshold must be positive")
	ErrInvalidWorkerCount    = errors.New("kvcollate: worker count must be positive")
)

// Lifecycle errors: returned when a Collator method runs out of order
// against its one-way state machine.
var (
	ErrAlreadyClosed      = errors.New("kvcollate: deposit stream already closed")
	ErrNotClosed          = errors.New("kvcollate: collate called before close_deposit_stream")
	ErrAlreadyCollated    = errors.New("kvcollate: collate already performed")
	ErrNotCollated        = errors.New("kvcollate: iteration requested before collate")
	ErrDestroyedWithState = errors.New("kvcollate: destroy called with outstanding buffers or a live mapper")
)

// Fatal-IO: partition write/read/stat/remove failures.
var (
	ErrPartitionWrite  = errors.New("kvcollate: short write to partition file")
	ErrPartitionRead   = errors.New("kvcollate: short read from partition file")
	ErrPartitionStat   = errors.New("kvcollate: failed to stat partition file")
	ErrPartitionRemove = errors.New("kvcollate: failed to remove partition file")
	ErrChecksumFailed  = errors.New("kvcollate: partition checksum mismatch")
)

// Fatal-Thread: mapper/worker non-joinability.
var (
	ErrMapperNotJoinable = errors.New("kvcollate: mapper goroutine did not join")
	ErrWorkerNotJoinable = errors.New("kvcollate: collation worker did not join")
)

// Fatal-Misuse: caller violated a documented usage constraint.
var (
	ErrIteratorCopyInUse = errors.New("kvcollate: cannot copy an iterator that has begun reading")
)
