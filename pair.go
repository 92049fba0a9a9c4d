package kvcollate

import "encoding/binary"

// pairSize is the exact on-disk and in-memory size of a Pair: two
// adjacent uint64 fields, naturally aligned on every architecture Go
// supports, so the record has no implicit padding and the disk layout
// matches the in-memory layout bit-exactly.
const pairSize = 16

// Pair is a (key, value) record. Keys are hashed via a caller-supplied
// Hasher to select a partition; values are carried through unmodified.
//
// Pair is deliberately fixed-size and built from two uint64 fields rather
// than generic key/value types: the collator moves pairs as raw bytes
// between producers, partition files, and the iterator, and a fixed
// 16-byte record lets every stage do that without reflection or unsafe.
// Callers whose natural key is not already an integer should pre-hash it
// with HashBytes before depositing (see hasher.go).
type Pair struct {
	Key   uint64
	Value uint64
}

// encodePair writes p to dst[0:pairSize] in little-endian byte order.
func encodePair(dst []byte, p Pair) {
	binary.LittleEndian.PutUint64(dst[0:8], p.Key)
	binary.LittleEndian.PutUint64(dst[8:16], p.Value)
}

// decodePair reads a Pair from src[0:pairSize].
func decodePair(src []byte) Pair {
	return Pair{
		Key:   binary.LittleEndian.Uint64(src[0:8]),
		Value: binary.LittleEndian.Uint64(src[8:16]),
	}
}

// lessPair implements the natural pair order: key ascending, ties broken
// by value ascending. Stability is not required.
func lessPair(a, b Pair) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return a.Value < b.Value
}
