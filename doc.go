// Package kvcollate implements an external-memory key-value collator: a
// library that accepts (key, value) pairs from many concurrent producers,
// hash-partitions them onto disk, sorts each partition in parallel, and
// exposes a key-grouped iterator over the result.
//
// The pipeline has three stages: a buffer pool recycles staging buffers
// between producers and a single mapper goroutine, the mapper routes
// incoming pairs onto per-partition files in the background, and a
// parallel collation stage sorts each partition once deposits are done.
//
// # Basic usage
//
//	c, err := kvcollate.New("/tmp/work", 8)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	buf := c.GetBuffer()
//	buf.Append(kvcollate.Pair{Key: 42, Value: 7})
//	c.ReturnBuffer(buf)
//
//	if err := c.CloseDepositStream(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Collate(4); err != nil {
//	    log.Fatal(err)
//	}
//
//	it, err := c.Begin()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for end := c.End(); !it.Equal(end); it = it.Next() {
//	    fmt.Println(it.Key())
//	}
//
//	if err := c.Destroy(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Package structure
//
//   - Public API: collator.go (New, GetBuffer, ReturnBuffer,
//     CloseDepositStream, Begin, End, Destroy) and collate_workers.go
//     (Collate)
//   - Configuration: options.go (Option, With* functions)
//   - Concurrency primitives: spinlock.go, objectpool.go, bufferpool.go
//   - Pipeline internals: buffer.go (staging buffers), mapper.go (mapper
//     goroutine, partition writer, flush), collate_workers.go (stride-
//     sharded parallel sort)
//   - Iteration: iterator.go
//   - Hashing: hasher.go (Hasher, IdentityHasher, XXHashHasher,
//     Murmur3Hasher, HashBytes)
//   - Platform I/O: fallocate_*.go, fadvise_*.go, madvise_*.go
package kvcollate
