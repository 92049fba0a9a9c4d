package kvcollate

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	kverrors "github.com/arrowstream/kvcollate/errors"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

// checksumTrailerSize is the size of the per-partition trailer appended
// after collation: an 8-byte xxHash64 checksum of the sorted pair
// bytes, followed by a 4-byte pair count.
const checksumTrailerSize = 12

// Collate transforms every on-disk partition from unsorted to sorted.
// It launches workerCount workers that together cover every partition
// exactly once via stride assignment, then blocks until all workers
// finish.
//
// A worker's own return value — an I/O sentinel from a stat/read/
// remove/write failure — propagates unwrapped, so callers can
// errors.Is against e.g. kverrors.ErrPartitionRead directly.
// ErrWorkerNotJoinable is reserved for a worker goroutine that did not
// return normally at all (recovered here from a panic, since Go has no
// non-joinable-thread condition short of one).
func (c *Collator) Collate(workerCount int) error {
	c.mu.Lock()
	switch c.state {
	case stateOpen:
		c.mu.Unlock()
		return kverrors.ErrNotClosed
	case stateClosed:
		// proceed
	default:
		c.mu.Unlock()
		return kverrors.ErrAlreadyCollated
	}
	if workerCount <= 0 {
		c.mu.Unlock()
		return kverrors.ErrInvalidWorkerCount
	}
	c.state = stateCollated
	c.mu.Unlock()

	var g errgroup.Group
	for w := 0; w < workerCount; w++ {
		w := w
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: worker %d: %v", kverrors.ErrWorkerNotJoinable, w, r)
				}
			}()
			return c.collateStride(w, workerCount)
		})
	}
	return g.Wait()
}

// collateStride sorts and rewrites every partition assigned to worker w
// under stride assignment w, w+workerCount, w+2*workerCount, ... — no
// shared queue, no locking. rawBuf is allocated once, sized to this
// worker's largest assigned partition, and reused across every
// partition it processes.
func (c *Collator) collateStride(w, workerCount int) error {
	maxLen, err := c.maxAssignedPartitionSize(w, workerCount)
	if err != nil {
		return err
	}
	rawBuf := make([]byte, maxLen)

	for pid := w; pid < len(c.partitions); pid += workerCount {
		rawBuf, err = c.collatePartition(pid, rawBuf)
		if err != nil {
			return err
		}
	}
	return nil
}

// maxAssignedPartitionSize stats every partition assigned to worker w and
// returns the largest byte length, so the worker can allocate a single
// reusable raw buffer up front.
func (c *Collator) maxAssignedPartitionSize(w, workerCount int) (int64, error) {
	var maxLen int64
	for pid := w; pid < len(c.partitions); pid += workerCount {
		info, err := os.Stat(c.partitions[pid].path)
		if err != nil {
			return 0, fmt.Errorf("%w: partition %d: %v", kverrors.ErrPartitionStat, pid, err)
		}
		if info.Size() > maxLen {
			maxLen = info.Size()
		}
	}
	return maxLen, nil
}

// collatePartition sorts and rewrites a single partition file in place,
// using rawBuf as scratch space. It returns rawBuf — possibly grown, if
// this partition somehow exceeded the size maxAssignedPartitionSize
// observed for it — so the caller keeps reusing the same backing array
// for the rest of its assigned partitions.
func (c *Collator) collatePartition(pid int, rawBuf []byte) ([]byte, error) {
	path := c.partitions[pid].path

	info, err := os.Stat(path)
	if err != nil {
		return rawBuf, fmt.Errorf("%w: partition %d: %v", kverrors.ErrPartitionStat, pid, err)
	}
	length := info.Size()
	if length == 0 {
		// Nothing to sort; leave the zero-length file as-is.
		return rawBuf, nil
	}

	pairs, rawBuf, err := readPartitionPairs(path, length, rawBuf)
	if err != nil {
		return rawBuf, err
	}

	sort.Slice(pairs, func(i, j int) bool { return lessPair(pairs[i], pairs[j]) })

	// Remove the existing file before rewriting: overwriting a persisted
	// inode can stall on background flush on some local filesystems;
	// unlinking first and creating a fresh inode sidesteps that stall.
	if err := os.Remove(path); err != nil {
		return rawBuf, fmt.Errorf("%w: partition %d: %v", kverrors.ErrPartitionRemove, pid, err)
	}

	return rawBuf, writeSortedPartition(path, pid, pairs)
}

// readPartitionPairs reads the whole file at path into rawBuf — growing
// it if a partition unexpectedly exceeds the worker's pre-sized
// allocation — and reinterprets the bytes as pairs. It returns the
// (possibly grown) rawBuf so the caller can keep reusing it for this
// worker's remaining partitions.
func readPartitionPairs(path string, length int64, rawBuf []byte) ([]Pair, []byte, error) {
	if int64(len(rawBuf)) < length {
		rawBuf = make([]byte, length)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, rawBuf, fmt.Errorf("%w: %v", kverrors.ErrPartitionRead, err)
	}
	defer f.Close()

	fadviseSequential(int(f.Fd()), 0, length)

	if _, err := io.ReadFull(f, rawBuf[:length]); err != nil {
		return nil, rawBuf, fmt.Errorf("%w: %v", kverrors.ErrPartitionRead, err)
	}

	numPairs := int(length) / pairSize
	pairs := make([]Pair, numPairs)
	for i := 0; i < numPairs; i++ {
		pairs[i] = decodePair(rawBuf[i*pairSize:])
	}
	return pairs, rawBuf, nil
}

// writeSortedPartition opens a fresh output file at path and writes the
// sorted byte range in one call, followed by a checksum trailer.
func writeSortedPartition(path string, pid int, pairs []Pair) error {
	raw := make([]byte, len(pairs)*pairSize+checksumTrailerSize)
	for i, p := range pairs {
		encodePair(raw[i*pairSize:], p)
	}
	sum := xxhash.Sum64(raw[:len(pairs)*pairSize])
	trailer := raw[len(pairs)*pairSize:]
	binary.LittleEndian.PutUint64(trailer[0:8], sum)
	binary.LittleEndian.PutUint32(trailer[8:12], uint32(len(pairs)))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: partition %d: %v", kverrors.ErrPartitionWrite, pid, err)
	}
	defer f.Close()

	if err := fallocateFile(f, int64(len(raw))); err != nil {
		return fmt.Errorf("%w: partition %d: %v", kverrors.ErrPartitionWrite, pid, err)
	}

	n, err := f.WriteAt(raw, 0)
	if err != nil {
		return fmt.Errorf("%w: partition %d: %v", kverrors.ErrPartitionWrite, pid, err)
	}
	if n != len(raw) {
		return fmt.Errorf("%w: partition %d: wrote %d of %d bytes", kverrors.ErrPartitionWrite, pid, n, len(raw))
	}
	return nil
}
