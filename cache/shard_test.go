package cache

import (
	"bytes"
	"sync/atomic"
	"testing"
)

// testShard builds a bare shard the way New does, without the cache around
// it, so tests can place slots by hand. Shard code trusts the packed meta
// it is given, which lets these tests pick hash values that collide on the
// table mask instead of reversing the real hash.
func testShard(capacity int) *shard {
	var live atomic.Int64
	return newShard(capacity, &live, Options{Metrics: NoopMetrics{}})
}

// A table in which every slot is live (a state reachable only through
// concurrent sweep starvation) must fail probes for absent keys instead of
// scanning forever or overwriting a victim.
func TestShard_ProbeExhaustion(t *testing.T) {
	t.Parallel()

	s := testShard(2) // 4 slots
	for i := range s.slots {
		k := []byte{byte(i)}
		s.slots[i] = slot{meta: packMeta(uint32(100+i), len(k)), ent: newEntry(k, []byte("v"), 0)}
		s.used++
	}

	// Resident keys stay reachable: the probe wraps the whole table.
	for i := range s.slots {
		k := []byte{byte(i)}
		h, ok := s.Get(packMeta(uint32(100+i), len(k)), k, 0)
		if !ok || !bytes.Equal(h.Bytes(), []byte("v")) {
			t.Fatalf("resident key %d must stay reachable", i)
		}
		h.Release()
	}

	// An absent key exhausts the probe sequence and misses.
	absent := []byte("absent")
	am := packMeta(200, len(absent))
	if _, ok := s.Get(am, absent, 0); ok {
		t.Fatal("absent key must miss on a fully live table")
	}
	if _, _, ok := s.probe(am, absent); ok {
		t.Fatal("probe must report exhaustion with every slot live")
	}
}

// Deletions leave tombstones: probe chains keep running across them, and
// the first tombstone on the path is what a later insert reuses.
func TestShard_TombstoneReuse(t *testing.T) {
	t.Parallel()

	s := testShard(4) // 8 slots, mask 7
	kA, kB, kC := []byte("A"), []byte("B"), []byte("C")
	// Hashes chosen to collide on the mask: all three chains start at 0.
	mA, mB, mC := packMeta(16, 1), packMeta(24, 1), packMeta(32, 1)

	s.Set(mA, kA, []byte("va"), 0) // slot 0
	s.Set(mB, kB, []byte("vb"), 0) // collides, slot 1
	s.Set(mC, kC, []byte("vc"), 0) // collides, slot 2

	if !s.Invalidate(mB, kB) {
		t.Fatal("Invalidate B must succeed")
	}
	if !slotDeleted(s.slots[1].meta) {
		t.Fatal("B's slot must be a tombstone, not empty")
	}

	// C sits past the tombstone and must still be found.
	h, ok := s.Get(mC, kC, 0)
	if !ok || !bytes.Equal(h.Bytes(), []byte("vc")) {
		t.Fatal("lookup must continue across a tombstone")
	}
	h.Release()

	// A same-chain insert reuses the first tombstone, not the trailing
	// empty slot.
	kD, mD := []byte("D"), packMeta(40, 1)
	if !s.Set(mD, kD, []byte("vd"), 0) {
		t.Fatal("Set D must succeed")
	}
	if s.slots[1].meta != mD {
		t.Fatalf("insert must reuse the tombstone at slot 1, table: %+v", s.slots)
	}
}

// One sweep: set bits are cleared (second chance), the first clear-bit
// entry is evicted, and the hand parks one past the victim.
func TestShard_ClockSweep(t *testing.T) {
	t.Parallel()

	s := testShard(2) // 4 slots, mask 3
	kA, kB := []byte("A"), []byte("B")
	mA, mB := packMeta(8, 1), packMeta(12, 1) // both chains start at 0

	s.Set(mA, kA, []byte("va"), 0) // slot 0
	s.Set(mB, kB, []byte("vb"), 0) // slot 1
	s.slots[0].ent.referenced.Store(true)

	if !s.runClockLocked() {
		t.Fatal("sweep must find a victim")
	}

	if !slotDeleted(s.slots[1].meta) {
		t.Fatal("B (bit clear) must be the victim")
	}
	if e := s.slots[0].ent; e == nil || e.referenced.Load() {
		t.Fatal("A must survive with its bit cleared")
	}
	if s.hand != 2 {
		t.Fatalf("hand must stop one past the victim, got %d", s.hand)
	}
	if s.used != 1 {
		t.Fatalf("used must drop to 1, got %d", s.used)
	}
}
