// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"encoding/binary"
	"math/bits"
)

// Hash32 computes a 32-bit hash of key using a Murmur-style multiply-xor
// mixer, seeded with the key length. The same value drives shard selection
// and slot probing, so it must stay stable for the life of a cache instance.
//
// 32 bits are enough here: the hash is packed next to the key length into a
// single 64-bit slot word, and full keys are compared on candidate slots
// anyway, so collisions cost a probe step rather than correctness.
func Hash32(key []byte) uint32 {
	const (
		c1 = 0xcc9e2d51
		c2 = 0x1b873593
	)
	h := uint32(len(key)) // length as seed: "a" and "a\x00" stay apart early
	p := key
	for len(p) >= 4 {
		k := binary.LittleEndian.Uint32(p)
		k *= c1
		k = bits.RotateLeft32(k, 15)
		k *= c2
		h ^= k
		h = bits.RotateLeft32(h, 13)
		h = h*5 + 0xe6546b64
		p = p[4:]
	}

	// Tail (0..3 remaining bytes).
	var k uint32
	switch len(p) {
	case 3:
		k ^= uint32(p[2]) << 16
		fallthrough
	case 2:
		k ^= uint32(p[1]) << 8
		fallthrough
	case 1:
		k ^= uint32(p[0])
		k *= c1
		k = bits.RotateLeft32(k, 15)
		k *= c2
		h ^= k
	}

	// Finalizer: force avalanche so the low bits (used for masking) are good.
	// The length is already folded in as the seed; fmix is a bijection, so
	// keys whose mixed states differ only in the seed still come out apart.
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}
