//go:build linux

package kvcollate

import "golang.org/x/sys/unix"

// madviseSequential hints to the kernel that an mmap'd region will be
// read sequentially, enabling readahead. Applied when the iterator maps
// a partition file it will scan start-to-end.
// Best-effort: errors are silently ignored.
func madviseSequential(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
}
