package kvcollate

import (
	"encoding/binary"
	"fmt"
	"os"

	kverrors "github.com/arrowstream/kvcollate/errors"
	"github.com/cespare/xxhash/v2"
	mmap "github.com/edsrzf/mmap-go"
)

// Iterator is a sequential cursor over a collated collection, exposing
// both a key-grouped scalar read and a thread-safe batched raw read.
// The two modes share the same underlying file-advance logic and
// cursor (partitionID, pos) but keep independent in-memory buffers. A
// partition's pair data is consumed straight out of a read-only memory
// mapping of the whole file, opened once per partition and never read
// through a file handle again — no per-call read(2) and no throwaway
// byte-slice allocation on every Read.
type Iterator struct {
	workPrefix    string
	numPartitions int
	readBufSize   int // buf_sz, in pairs

	file        *os.File
	mapping     mmap.MMap
	partitionID int
	curDataLen  int64 // bytes of pair data in the currently open mapping, excluding the checksum trailer
	curDataPos  int64 // bytes already consumed from the currently open mapping
	pos         uint64
	atEnd       bool
	initialized bool // true once the scalar path has performed its lazy setup
	err         error // sticky first error; see Err

	scalarBuf  []Pair
	scalarFill int
	scalarIdx  int

	lock spinLock // guards Read against concurrent batched callers
}

// newIterator returns a begin-iterator: not at-end, no file handle yet.
// No I/O happens until the caller dereferences it via Key, Current, or
// calls Read.
func newIterator(workPrefix string, numPartitions, readBufSize int) *Iterator {
	return &Iterator{
		workPrefix:    workPrefix,
		numPartitions: numPartitions,
		readBufSize:   readBufSize,
	}
}

// endIterator returns a canonical at-end iterator for comparison.
func endIterator() *Iterator {
	return &Iterator{atEnd: true}
}

// Equal reports whether it and other represent the same cursor
// position. Comparing forces both sides to perform their lazy initial
// load, so that comparing a freshly-collated collection's Begin and End
// correctly reflects whether any pair exists without requiring the
// caller to dereference first.
func (it *Iterator) Equal(other *Iterator) bool {
	_ = it.ensureScalarLoaded()
	_ = other.ensureScalarLoaded()

	if it.atEnd || other.atEnd || it.file == nil || other.file == nil {
		return it.atEnd == other.atEnd && it.file == nil && other.file == nil
	}
	return it.file == other.file && it.pos == other.pos
}

// ensureScalarLoaded performs the lazy initialization a fresh iterator
// needs before its first dereference: open partition 0, allocate the
// read buffer, and ensure at least one pair is loaded. A no-op after
// the first call. Any error (including a checksum mismatch) is
// recorded as the iterator's sticky error, retrievable via Err, and the
// iterator is forced to at-end so traversal halts instead of handing
// back scrambled pairs.
func (it *Iterator) ensureScalarLoaded() error {
	if it.initialized {
		return it.err
	}
	it.initialized = true
	if it.atEnd {
		return nil
	}

	it.scalarBuf = make([]Pair, it.readBufSize)

	if err := it.openNextPartition(); err != nil {
		it.err, it.atEnd = err, true
		return err
	}
	if it.atEnd {
		return nil
	}
	if err := it.fillScalarBuffer(); err != nil {
		it.err, it.atEnd = err, true
		return err
	}
	return nil
}

// Err returns the first error this iterator encountered, if any — a
// stat failure, a truncated mapping, or a checksum mismatch. Safe to
// call at any point; most useful after a traversal loop ends early.
func (it *Iterator) Err() error {
	return it.err
}

// openNextPartition advances the shared cursor to the next partition
// with data, starting at partitionID, skipping zero-length partitions,
// memory-mapping the file it settles on and validating its checksum
// trailer. Sets atEnd if no further partition holds data.
func (it *Iterator) openNextPartition() error {
	for it.partitionID < it.numPartitions {
		path := partitionPath(it.workPrefix, it.partitionID)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %v", kverrors.ErrPartitionRead, err)
		}

		info, err := f.Stat()
		if err != nil {
			f.Close()
			return fmt.Errorf("%w: %v", kverrors.ErrPartitionStat, err)
		}
		size := info.Size()
		if size == 0 {
			f.Close()
			it.partitionID++
			continue
		}

		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			f.Close()
			return fmt.Errorf("%w: mmap: %v", kverrors.ErrPartitionRead, err)
		}
		fadviseSequential(int(f.Fd()), 0, size)
		madviseSequential(m)

		dataLen := size - checksumTrailerSize
		if err := verifyPartitionChecksum(m, dataLen); err != nil {
			m.Unmap()
			f.Close()
			return err
		}

		it.file = f
		it.mapping = m
		it.curDataLen = dataLen
		it.curDataPos = 0
		return nil
	}

	it.atEnd = true
	it.file = nil
	it.mapping = nil
	return nil
}

// verifyPartitionChecksum validates the checksum trailer a collation
// worker appended after sorting, lazily, the first time this iterator
// opens the given partition file, against the already-mapped bytes m.
func verifyPartitionChecksum(m mmap.MMap, dataLen int64) error {
	if dataLen < 0 || int64(len(m)) < dataLen+checksumTrailerSize {
		return fmt.Errorf("%w: truncated partition file", kverrors.ErrChecksumFailed)
	}

	trailer := m[dataLen:]
	wantSum := binary.LittleEndian.Uint64(trailer[0:8])
	wantCount := binary.LittleEndian.Uint32(trailer[8:12])
	if int64(wantCount)*pairSize != dataLen {
		return kverrors.ErrChecksumFailed
	}
	if xxhash.Sum64(m[:dataLen]) != wantSum {
		return kverrors.ErrChecksumFailed
	}
	return nil
}

// closeCurrentFile unmaps and closes the shared file handle, if any.
func (it *Iterator) closeCurrentFile() {
	if it.mapping != nil {
		_ = it.mapping.Unmap()
		it.mapping = nil
	}
	if it.file != nil {
		_ = it.file.Close()
		it.file = nil
	}
}

// decodeFromCurrent decodes up to maxPairs pairs directly out of the
// currently open mapping into dst, bounded by the remaining
// (trailer-excluded) data, and advances curDataPos. Returns 0 once the
// current mapping's data has been fully consumed.
func (it *Iterator) decodeFromCurrent(maxPairs int, dst []Pair) int {
	remaining := int((it.curDataLen - it.curDataPos) / pairSize)
	if remaining <= 0 {
		return 0
	}
	n := maxPairs
	if n > remaining {
		n = remaining
	}
	for i := 0; i < n; i++ {
		dst[i] = decodePair(it.mapping[it.curDataPos+int64(i)*pairSize:])
	}
	it.curDataPos += int64(n) * pairSize
	return n
}

// fillScalarBuffer implements the internal advance shared by Key and
// Next: when the scalar buffer is exhausted, decode up to the
// configured read-ahead count of pairs from the current mapping; if
// zero were available, close the file and move to the next partition;
// if partitions are exhausted, set at-end.
func (it *Iterator) fillScalarBuffer() error {
	for {
		n := it.decodeFromCurrent(it.readBufSize, it.scalarBuf)
		if n == 0 {
			it.closeCurrentFile()
			it.partitionID++
			if err := it.openNextPartition(); err != nil {
				return err
			}
			if it.atEnd {
				it.scalarFill = 0
				it.scalarIdx = 0
				return nil
			}
			continue
		}

		it.scalarFill = n
		it.scalarIdx = 0
		return nil
	}
}

// Key returns the current pair's key, lazily loading the iterator on
// first use.
func (it *Iterator) Key() uint64 {
	_ = it.ensureScalarLoaded()
	if it.atEnd {
		return 0
	}
	return it.scalarBuf[it.scalarIdx].Key
}

// Current returns the full current pair: a key-value collator's
// consumer almost always wants the value too, and exposing it costs
// nothing extra here.
func (it *Iterator) Current() Pair {
	_ = it.ensureScalarLoaded()
	if it.atEnd {
		return Pair{}
	}
	return it.scalarBuf[it.scalarIdx]
}

// AtEnd reports whether the iterator has been exhausted.
func (it *Iterator) AtEnd() bool {
	_ = it.ensureScalarLoaded()
	return it.atEnd
}

// Next advances past every pair sharing the current key, stopping at
// the first differing key or at-end. Returns the receiver for
// chaining.
func (it *Iterator) Next() *Iterator {
	if err := it.ensureScalarLoaded(); err != nil || it.atEnd {
		return it
	}

	currentKey := it.scalarBuf[it.scalarIdx].Key
	for {
		it.scalarIdx++
		it.pos++

		if it.scalarIdx >= it.scalarFill {
			if err := it.fillScalarBuffer(); err != nil {
				it.err, it.atEnd = err, true
				return it
			}
			if it.atEnd {
				return it
			}
		}

		if it.scalarBuf[it.scalarIdx].Key != currentKey {
			return it
		}
	}
}

// Read performs a thread-safe batched raw read of up to len(out) pairs.
// It returns the number of pairs read, which is 0 once the collection
// is exhausted, and never returns more than len(out). Pairs are
// decoded straight out of the current partition's mapping; no
// intermediate byte buffer is allocated.
func (it *Iterator) Read(out []Pair) (int, error) {
	it.lock.lock()
	defer it.lock.unlock()

	if len(out) == 0 {
		return 0, nil
	}

	if it.file == nil && !it.atEnd {
		if err := it.openNextPartition(); err != nil {
			it.err = err
			return 0, err
		}
	}

	for {
		if it.atEnd {
			return 0, nil
		}

		n := it.decodeFromCurrent(len(out), out)
		if n == 0 {
			it.closeCurrentFile()
			it.partitionID++
			if err := it.openNextPartition(); err != nil {
				it.err = err
				return 0, err
			}
			continue
		}

		it.pos += uint64(n)
		return n, nil
	}
}

// Clone copies an iterator that has not yet begun reading. Copying an
// iterator that already has an open file handle or an allocated scalar
// buffer fails (returned as an error rather than aborting the
// process).
func (it *Iterator) Clone() (*Iterator, error) {
	if it.file != nil || it.mapping != nil || it.scalarBuf != nil {
		return nil, kverrors.ErrIteratorCopyInUse
	}
	clone := *it
	return &clone, nil
}

// Close releases the iterator's mapping, file handle, and read buffer.
// Safe to call multiple times.
func (it *Iterator) Close() error {
	it.closeCurrentFile()
	it.scalarBuf = nil
	return nil
}
