package util

import (
	"sync/atomic"
	"unsafe"
)

// cacheLine is the coherence granularity the padded types below assume.
// 64 bytes matches x86-64 and most arm64 parts; a wrong guess wastes a
// few bytes per counter, never correctness.
const cacheLine = 64

// CacheLinePad separates groups of hot struct fields so writes to one
// group do not invalidate the line holding the next.
type CacheLinePad struct{ _ [cacheLine]byte }

// PaddedAtomicInt64 is an atomic.Int64 that owns its whole cache line.
// The per-shard counters embed it so shards bumping their own numbers
// never contend on a shared line.
type PaddedAtomicInt64 struct {
	atomic.Int64
	_ [cacheLine - unsafe.Sizeof(atomic.Int64{})]byte
}

// PaddedAtomicUint64 is the unsigned counterpart of PaddedAtomicInt64.
type PaddedAtomicUint64 struct {
	atomic.Uint64
	_ [cacheLine - unsafe.Sizeof(atomic.Uint64{})]byte
}

// The padded types must stay exactly one line wide; adding a field
// without adjusting the pad makes these array lengths negative and the
// build fails.
var (
	_ [cacheLine - unsafe.Sizeof(PaddedAtomicInt64{})]byte
	_ [cacheLine - unsafe.Sizeof(PaddedAtomicUint64{})]byte
)
