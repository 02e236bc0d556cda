package cache

import (
	"fmt"
	"sync/atomic"
)

// entry is one resident key/value record. Key and value bytes live in a
// single allocation (key first, value after) so an entry costs exactly one
// heap object besides itself.
//
// Lifetime is reference counted. The slot table holds one reference while
// the entry is resident; every Get adds one more, dropped by
// Handle.Release. The entry storage is surrendered to the GC when the
// count reaches zero. Detachment (overwrite, invalidation, eviction,
// Close) only drops the table's reference: readers keep their views until
// they release them.
type entry struct {
	refs       atomic.Int32
	referenced atomic.Bool // CLOCK recency bit

	// Absolute expiration deadline in UnixNano against the cache's
	// coarse clock. Zero means "no TTL". Written once before the entry
	// is published under the shard lock.
	exp int64

	keyLen int
	data   []byte // key bytes then value bytes
}

// newEntry builds a detached entry holding copies of key and value.
// The initial reference belongs to whoever links it into a slot (or,
// for load fallbacks, to the Handle wrapping it).
func newEntry(key, value []byte, exp int64) *entry {
	e := &entry{
		exp:    exp,
		keyLen: len(key),
		data:   make([]byte, len(key)+len(value)),
	}
	copy(e.data, key)
	copy(e.data[len(key):], value)
	e.refs.Store(1)
	return e
}

func (e *entry) key() []byte   { return e.data[:e.keyLen] }
func (e *entry) value() []byte { return e.data[e.keyLen:] }

// expired reports whether the entry's deadline has passed at the given
// coarse-clock reading. Zero deadline never expires.
func (e *entry) expired(now int64) bool {
	return e.exp != 0 && now > e.exp
}

// touch sets the recency bit, writing only when it is observed clear so
// repeated hits on a hot entry don't keep invalidating the cache line.
func (e *entry) touch() {
	if !e.referenced.Load() {
		e.referenced.Store(true)
	}
}

// acquire adds a reference on behalf of a reader.
func (e *entry) acquire() { e.refs.Add(1) }

// release drops one reference. At zero the byte storage is dropped so the
// GC can reclaim it even while stray pointers to the entry struct remain.
// A negative count means more releases than acquires; that is a caller
// bug, so it panics rather than silently corrupting a recycled entry.
func (e *entry) release() {
	switch n := e.refs.Add(-1); {
	case n == 0:
		e.data = nil
	case n < 0:
		panic(fmt.Sprintf("cache: inconsistent entry refcount: %d", n))
	}
}

// Handle is a counted reference to a cache entry returned by Get and
// GetOrLoad. The bytes it exposes stay valid until Release, even if the
// entry is overwritten, invalidated, or evicted in the meantime.
//
// The zero Handle is valid: Bytes returns nil and Release is a no-op.
// Handles are not safe for concurrent use, but distinct handles to the
// same entry are.
type Handle struct {
	ent *entry
}

// Bytes returns a read-only view of the cached value. The view points
// into cache-owned storage; it must not be modified and must not be used
// after Release. Copy it if it has to outlive the handle.
func (h Handle) Bytes() []byte {
	if h.ent == nil {
		return nil
	}
	return h.ent.value()
}

// Release drops the reference held by this handle. It must be called
// exactly once for every handle obtained from Get or GetOrLoad; releasing
// more times than acquired panics.
func (h Handle) Release() {
	if h.ent != nil {
		h.ent.release()
	}
}
