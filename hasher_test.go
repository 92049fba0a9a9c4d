package kvcollate

import "testing"

func TestIdentityHasher(t *testing.T) {
	for _, k := range []uint64{0, 1, 42, ^uint64(0)} {
		if got := IdentityHasher(k); got != k {
			t.Errorf("IdentityHasher(%d) = %d, want %d", k, got, k)
		}
	}
}

func TestHashersAreDeterministic(t *testing.T) {
	hashers := map[string]Hasher{
		"xxhash":  XXHashHasher,
		"murmur3": Murmur3Hasher,
	}
	keys := []uint64{0, 1, 2, 1000000, ^uint64(0)}

	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			for _, k := range keys {
				a := h(k)
				b := h(k)
				if a != b {
					t.Errorf("%s(%d) not deterministic: %d != %d", name, k, a, b)
				}
			}
		})
	}
}

func TestHashersSpreadSequentialKeys(t *testing.T) {
	// Under IdentityHasher, sequential small integers fill only the
	// lowest partitions (keys 0..63 land in partitions 0..63 of 512);
	// XXHashHasher/Murmur3Hasher scatter them, so they must reach at
	// least 16 distinct partitions here.
	const mask = uint64(511)
	hashers := map[string]Hasher{
		"xxhash":  XXHashHasher,
		"murmur3": Murmur3Hasher,
	}
	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			seen := make(map[uint64]bool)
			for k := uint64(0); k < 64; k++ {
				seen[h(k)&mask] = true
			}
			if len(seen) < 16 {
				t.Errorf("%s: sequential keys 0..63 only spread across %d of 512 partitions", name, len(seen))
			}
		})
	}
}

func TestHashBytesDeterministicAndSpread(t *testing.T) {
	a := HashBytes([]byte("alpha"))
	b := HashBytes([]byte("alpha"))
	if a != b {
		t.Errorf("HashBytes not deterministic: %d != %d", a, b)
	}

	c := HashBytes([]byte("beta"))
	if a == c {
		t.Errorf("HashBytes(%q) == HashBytes(%q), expected different digests", "alpha", "beta")
	}

	if HashBytes(nil) != HashBytes(nil) {
		t.Errorf("HashBytes(nil) not deterministic")
	}
}
