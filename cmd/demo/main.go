// Demo is a trivial driver for the kvcollate collator: it spawns a handful
// of producer goroutines, deposits random pairs, closes the deposit
// stream, collates the partitions in parallel, and prints a summary of
// the key-grouped result.
//
// Usage:
//
//	go run ./cmd/demo -producers 4 -per-producer 50000 -workers 4
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arrowstream/kvcollate"
)

func main() {
	producersFlag := flag.Int("producers", 4, "number of concurrent producer goroutines")
	perProducerFlag := flag.Int("per-producer", 50_000, "pairs deposited by each producer")
	bufCountFlag := flag.Int("bufs", 8, "buffer pool size")
	workersFlag := flag.Int("workers", 4, "collation worker count")
	flag.Parse()

	tmpDir, err := os.MkdirTemp("", "kvcollate-demo-")
	if err != nil {
		log.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	workPrefix := filepath.Join(tmpDir, "demo")
	c, err := kvcollate.New(workPrefix, *bufCountFlag, kvcollate.WithHasher(kvcollate.XXHashHasher))
	if err != nil {
		log.Fatalf("New: %v", err)
	}

	fmt.Printf("depositing %d pairs from %d producers...\n", *producersFlag * *perProducerFlag, *producersFlag)
	depositStart := time.Now()

	var wg sync.WaitGroup
	for p := 0; p < *producersFlag; p++ {
		seed := uint64(p) + 1
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
			const perBuffer = 1000
			for i := 0; i < *perProducerFlag; i += perBuffer {
				buf := c.GetBuffer()
				n := perBuffer
				if remaining := *perProducerFlag - i; remaining < n {
					n = remaining
				}
				for j := 0; j < n; j++ {
					buf.Append(kvcollate.Pair{Key: rng.Uint64() % 1_000_000, Value: rng.Uint64()})
				}
				c.ReturnBuffer(buf)
			}
		}(seed)
	}
	wg.Wait()

	if err := c.CloseDepositStream(); err != nil {
		log.Fatalf("CloseDepositStream: %v", err)
	}
	fmt.Printf("deposit done in %s\n", time.Since(depositStart))

	collateStart := time.Now()
	if err := c.Collate(*workersFlag); err != nil {
		log.Fatalf("Collate: %v", err)
	}
	fmt.Printf("collate done in %s\n", time.Since(collateStart))

	it, err := c.Begin()
	if err != nil {
		log.Fatalf("Begin: %v", err)
	}
	end := c.End()

	distinctKeys := 0
	for !it.Equal(end) {
		distinctKeys++
		it = it.Next()
	}
	if err := it.Err(); err != nil {
		log.Fatalf("iteration error: %v", err)
	}

	fmt.Printf("distinct keys: %d\n", distinctKeys)

	if err := c.Destroy(); err != nil {
		log.Fatalf("Destroy: %v", err)
	}
}
