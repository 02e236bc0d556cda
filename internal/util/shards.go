package util

import (
	"math/bits"
	"runtime"
)

// IsPowerOfTwo reports whether x is a positive power of two.
func IsPowerOfTwo(x uint64) bool { return x != 0 && x&(x-1) == 0 }

// NextPow2 returns the smallest power of two at or above x, treating 0
// as 1. Inputs past 1<<63 clamp there, the largest representable power.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	if x > 1<<63 {
		return 1 << 63
	}
	return 1 << (64 - bits.LeadingZeros64(x-1))
}

// TableSlots sizes a shard's slot array for the given entry capacity:
// the next power of two at or above twice the capacity. Keeping at least
// half the table vacant (empty slots or tombstones) is what bounds probe
// chains under the configured load.
func TableSlots(capacity int) uint64 {
	if capacity < 1 {
		capacity = 1
	}
	return NextPow2(2 * uint64(capacity))
}

// ReasonableShardCount picks a default shard count from available
// parallelism: twice GOMAXPROCS rounded up to a power of two, capped at
// 256 so small caches do not pay for hundreds of slot tables.
func ReasonableShardCount() int {
	n := NextPow2(uint64(2 * runtime.GOMAXPROCS(0)))
	if n > 256 {
		n = 256
	}
	return int(n)
}

// ShardIndex maps a key hash to a shard. Every operation on a key must
// come through here so they all agree on the owning shard. Shard counts
// are powers of two everywhere in this module, which turns the mod into
// a mask; the modulo arm keeps the function total for arbitrary counts.
func ShardIndex(hash uint32, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(hash & uint32(shards-1))
	}
	return int(hash % uint32(shards))
}
