package kvcollate

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
)

// Hasher maps a key to an integer used to select a partition. It must
// be deterministic and pure: the same key must always produce the same
// result, and it must not have side effects.
type Hasher func(key uint64) uint64

// IdentityHasher returns the key unchanged. Appropriate when the caller's
// keys are already uniformly distributed integers (e.g. a prior hash, or
// a dense sequential ID space where only the low bits are used to pick a
// partition).
func IdentityHasher(key uint64) uint64 {
	return key
}

// XXHashHasher hashes the key's 8 little-endian bytes with xxHash64. Use
// this (or Murmur3Hasher) when keys are not already uniformly distributed
// — e.g. small sequential integers, which would otherwise route almost
// entirely into the low partitions.
func XXHashHasher(key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return xxhash.Sum64(buf[:])
}

// Murmur3Hasher hashes the key's 8 little-endian bytes with 64-bit
// Murmur3. An alternative to XXHashHasher with different collision
// characteristics.
func Murmur3Hasher(key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return murmur3.Sum64(buf[:])
}

// HashBytes collapses an arbitrary byte-slice key into the collator's
// uint64 key space using xxHash3-128, folded to 64 bits. Use this to
// prepare non-integer keys (strings, URLs, composite keys) for deposit:
// pre-hash each key with HashBytes before calling Append.
//
// Because xxHash3-128 is applied before partition routing, callers do
// not need to apply IdentityHasher/XXHashHasher again — any Hasher,
// including IdentityHasher, is uniform enough once keys have passed
// through HashBytes.
func HashBytes(key []byte) uint64 {
	h := xxh3.Hash128(key)
	return h.Lo ^ h.Hi
}
