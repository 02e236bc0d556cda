package cache

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/refcache/refcache/internal/util"
)

// slot is one position in a shard's open-addressing table. An all-zero
// slot has never been used; a tombstone keeps meta == metaTombstone and a
// nil entry so probe chains running across it stay intact.
type slot struct {
	meta uint64 // packed (hash, key length); see meta.go
	ent  *entry
}

// shard is an independent partition of the cache: an open-addressing slot
// table with linear probing, guarded by one RWMutex, evicted by a CLOCK
// sweep with its own hand cursor.
type shard struct {
	// ---- guarded by mu ----
	mu    sync.RWMutex
	slots []slot
	mask  uint64 // len(slots)-1; len is a power of two >= 2*cap
	used  int    // live entries (tombstones excluded)
	cap   int    // per-shard entry capacity
	hand  uint64 // CLOCK cursor; free-running, masked on use

	opt  Options
	live *atomic.Int64 // cache-wide resident counter, shared across shards

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_       util.CacheLinePad
	hits    util.PaddedAtomicInt64
	misses  util.PaddedAtomicInt64
	evicts  util.PaddedAtomicUint64
	expires util.PaddedAtomicUint64
	removes util.PaddedAtomicUint64
}

// newShard initializes a shard with per-shard capacity and options.
// The table is sized to the next power of two >= 2*capacity so that at
// least half the slots are reusable (empty or tombstone) at any time.
func newShard(capacity int, live *atomic.Int64, opt Options) *shard {
	n := util.TableSlots(capacity)
	return &shard{
		slots: make([]slot, n),
		mask:  n - 1,
		cap:   capacity,
		opt:   opt,
		live:  live,
	}
}

// Get looks the key up under the read lock. On a live hit it marks the
// entry recently used (silent store), takes a reference, and returns a
// handle. Expired entries are removed through the write-locked path and
// reported as misses. now is the cache's coarse clock reading.
func (s *shard) Get(meta uint64, key []byte, now int64) (Handle, bool) {
	s.mu.RLock()
	idx, found, ok := s.probe(meta, key)
	if !ok || !found {
		s.mu.RUnlock()
		s.misses.Add(1)
		s.opt.Metrics.Miss()
		return Handle{}, false
	}
	e := s.slots[idx].ent
	if e.expired(now) {
		s.mu.RUnlock()
		s.expire(meta, key, now)
		s.misses.Add(1)
		s.opt.Metrics.Miss()
		return Handle{}, false
	}
	e.touch()
	e.acquire()
	s.mu.RUnlock()

	s.hits.Add(1)
	s.opt.Metrics.Hit()
	return Handle{ent: e}, true
}

// Set inserts or overwrites the mapping. exp is an absolute UnixNano
// deadline (0 = no TTL). When the shard is at capacity one CLOCK sweep
// runs first, before probing, so the insert lands in a table with room.
// Returns false only on full-table probe exhaustion; the shard is then
// unchanged.
func (s *shard) Set(meta uint64, key, value []byte, exp int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.used >= s.cap {
		s.runClockLocked()
	}
	idx, found, ok := s.probe(meta, key)
	if !ok {
		return false
	}

	e := newEntry(key, value, exp)
	sl := &s.slots[idx]
	if found {
		// In-place overwrite: swap entries under the same metadata.
		// Readers holding the old entry keep their views; only the
		// table's reference moves.
		old := sl.ent
		sl.ent = e
		old.release()
	} else {
		sl.meta = meta
		sl.ent = e
		s.used++
		s.live.Add(1)
	}
	s.opt.Metrics.Size(int(s.live.Load()))
	return true
}

// Add inserts a NEW entry (no update). Unlike Set it probes before
// sweeping, so a duplicate key does not cost an eviction. Returns false
// if the key is already resident (even when its TTL has lapsed — expiry
// is enforced on reads) or on probe exhaustion.
func (s *shard) Add(meta uint64, key, value []byte, exp int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, found, ok := s.probe(meta, key)
	if !ok || found {
		return false
	}
	if s.used >= s.cap {
		// The sweep only tombstones occupied slots, so idx (empty or
		// already a tombstone) remains a valid insertion target.
		s.runClockLocked()
	}

	sl := &s.slots[idx]
	sl.meta = meta
	sl.ent = newEntry(key, value, exp)
	s.used++
	s.live.Add(1)
	s.opt.Metrics.Size(int(s.live.Load()))
	return true
}

// Invalidate removes the mapping if present and reports whether it was.
// Handles already returned for the entry stay valid; only the table's
// reference is dropped. Explicit removal is not an eviction: OnEvict and
// the eviction metric do not fire (it has its own Stats counter).
func (s *shard) Invalidate(meta uint64, key []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, found, ok := s.probe(meta, key)
	if !ok || !found {
		return false
	}
	e := s.detachLocked(idx)
	e.release()
	s.removes.Add(1)
	s.opt.Metrics.Size(int(s.live.Load()))
	return true
}

// Len returns the number of live entries in this shard.
func (s *shard) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// -------------------- internals --------------------

// probe walks the table linearly from the hash position packed in meta.
// It returns the index of the slot holding the key (found=true), or the
// best insertion slot when the key is absent (found=false): the first
// tombstone passed, else the empty slot that terminated the scan.
// ok=false means the scan visited every slot without the key, an empty
// slot, or a tombstone — callers treat that as a miss or a failed insert.
//
// An empty slot always ends the search: deletions leave tombstones, never
// empties, so no chain containing the key can run past an empty slot.
func (s *shard) probe(meta uint64, key []byte) (idx uint64, found, ok bool) {
	var (
		tomb    uint64
		hasTomb bool
	)
	pos := uint64(metaHash(meta)) & s.mask
	for i := 0; i < len(s.slots); i++ {
		sl := &s.slots[pos]
		switch {
		case slotEmpty(sl.meta):
			if hasTomb {
				return tomb, false, true
			}
			return pos, false, true
		case sl.meta == meta && bytes.Equal(sl.ent.key(), key):
			// Packed compare first: hash or length mismatch rejects
			// the slot without touching entry memory.
			return pos, true, true
		case slotDeleted(sl.meta) && !hasTomb:
			tomb, hasTomb = pos, true
		}
		pos = (pos + 1) & s.mask
	}
	if hasTomb {
		return tomb, false, true
	}
	return 0, false, false
}

// runClockLocked performs one CLOCK sweep, evicting at most one entry.
// Entries whose recency bit is set get a second chance: the bit is
// cleared and the hand moves on. The hand always ends up one past the
// last slot it examined, so the victim's neighbor is inspected first on
// the next sweep. The scan is bounded by two full passes (enough to
// clear every bit once and come back around); if concurrent readers keep
// re-marking everything, no eviction happens and the caller transiently
// exceeds capacity.
func (s *shard) runClockLocked() bool {
	if s.used == 0 {
		return false
	}
	for i := 2 * len(s.slots); i > 0; i-- {
		pos := s.hand & s.mask
		s.hand++
		sl := &s.slots[pos]
		if slotEmpty(sl.meta) || slotDeleted(sl.meta) {
			continue
		}
		if e := sl.ent; e.referenced.Load() {
			e.referenced.Store(false)
			continue
		}
		s.evictLocked(pos, EvictClock)
		return true
	}
	return false
}

// expire re-checks an expired read under the write lock and removes the
// entry if it is still the resident one and still past its deadline.
// A concurrent Set may have replaced it between the two locks; the fresh
// entry then stays.
func (s *shard) expire(meta uint64, key []byte, now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, found, ok := s.probe(meta, key)
	if !ok || !found {
		return
	}
	if !s.slots[idx].ent.expired(now) {
		return
	}
	s.evictLocked(idx, EvictTTL)
	s.opt.Metrics.Size(int(s.live.Load()))
}

// evictLocked removes the entry at idx on the cache's own initiative:
// counters, the Evict metric, and the OnEvict callback all fire before
// the table's reference is dropped.
func (s *shard) evictLocked(idx uint64, reason EvictReason) {
	e := s.detachLocked(idx)
	if reason == EvictTTL {
		s.expires.Add(1)
	} else {
		s.evicts.Add(1)
	}
	s.opt.Metrics.Evict(reason)
	if cb := s.opt.OnEvict; cb != nil {
		// Callback runs under the shard lock; the key/value views are
		// valid only during the call.
		cb(e.key(), e.value(), reason)
	}
	e.release()
}

// detachLocked tombstones the slot and unlinks its entry, returning it so
// the caller can release the table's reference after any callback.
// Readers holding handles are unaffected.
func (s *shard) detachLocked(idx uint64) *entry {
	sl := &s.slots[idx]
	e := sl.ent
	sl.meta = metaTombstone
	sl.ent = nil
	s.used--
	s.live.Add(-1)
	return e
}

// purge drops the table's reference of every resident entry and resets
// the table to its initial state. Called by Close; outstanding handles
// stay valid until released. The slot array itself is kept so a racing
// reader that slipped past the closed gate degrades to misses instead of
// panicking.
func (s *shard) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.slots {
		sl := &s.slots[i]
		if sl.meta == hashEmpty {
			continue
		}
		if sl.ent != nil {
			sl.ent.release()
			s.used--
			s.live.Add(-1)
		}
		sl.meta = hashEmpty
		sl.ent = nil
	}
	s.hand = 0
	s.opt.Metrics.Size(int(s.live.Load()))
}
