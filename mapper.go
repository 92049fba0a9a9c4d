package kvcollate

import (
	"fmt"
	"os"

	kverrors "github.com/arrowstream/kvcollate/errors"
)

// partitionWriter owns one partition's in-memory buffer and append-only
// disk file. It is mutated only by the mapper goroutine during the
// Open state — exactly one writer for the lifetime of the file.
type partitionWriter struct {
	id   int
	buf  *stagingBuffer
	file *os.File
	path string
}

func newPartitionWriter(id int, path string, threshold int) (*partitionWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create partition file %s: %w", path, err)
	}
	return &partitionWriter{
		id:   id,
		buf:  newStagingBuffer(threshold),
		file: f,
		path: path,
	}, nil
}

// flush writes the raw byte range of the in-memory buffer to the
// partition file and clears the buffer, retaining its capacity.
func (w *partitionWriter) flush() error {
	if w.buf.Len() == 0 {
		return nil
	}

	raw := make([]byte, w.buf.Len()*pairSize)
	for i, p := range w.buf.pairs {
		encodePair(raw[i*pairSize:], p)
	}

	n, err := w.file.Write(raw)
	if err != nil {
		return fmt.Errorf("%w: partition %d: %v", kverrors.ErrPartitionWrite, w.id, err)
	}
	if n != len(raw) {
		return fmt.Errorf("%w: partition %d: wrote %d of %d bytes", kverrors.ErrPartitionWrite, w.id, n, len(raw))
	}

	w.buf.clear()
	return nil
}

func (w *partitionWriter) close() error {
	return w.file.Close()
}

// runMapper is the background mapping goroutine. It drains full
// buffers, routes every pair to its partition's in-memory buffer,
// flushing a partition when its buffer reaches the configured
// threshold, and returns each drained buffer to the free set.
//
// Busy-polling is deliberate: the mapper's work (hash + append) is
// CPU-bound, and the handshake latency to producers must stay below
// their own refill latency.
func (c *Collator) runMapper() error {
	var buf *stagingBuffer
	mask := uint64(len(c.partitions) - 1)

	for c.streamIncoming.Load() || !c.pool.full.empty() {
		if !c.pool.fetchFull(&buf) {
			continue
		}

		for _, p := range buf.pairs {
			pid := c.cfg.hasher(p.Key) & mask
			pw := c.partitions[int(pid)]
			pw.buf.Append(p)
			if pw.buf.Len() == c.cfg.threshold {
				if err := pw.flush(); err != nil {
					return err
				}
			}
		}

		buf.clear()
		c.pool.returnFree(buf)
	}

	return nil
}
