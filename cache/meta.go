package cache

// Slot metadata packs the key hash and the key length into one word so a
// probe can reject a slot with a single integer compare, before touching
// the entry pointer. Layout: hash in the high 32 bits, key length in the
// low 32 bits.
//
// Two hash values are reserved for slot states:
//
//	0 — empty slot (the zero value of a fresh table)
//	1 — tombstone left behind by an eviction or invalidation
//
// Real hashes are remapped away from the reserved range, so an occupied
// slot can never be mistaken for an empty one or a tombstone.
const (
	hashEmpty    = 0
	hashDeleted  = 1
	minValidHash = 2

	// metaTombstone is the full slot word for a deleted slot.
	metaTombstone = uint64(hashDeleted) << 32

	// maxKeyLen / maxValueLen bound what fits the packed layout.
	// Values share the entry buffer with keys, so both are capped.
	maxKeyLen   = 1<<32 - 1
	maxValueLen = 1<<32 - 1
)

// packMeta builds the slot word for a key with the given raw hash.
// The caller guarantees keyLen fits in 32 bits.
func packMeta(hash uint32, keyLen int) uint64 {
	if hash < minValidHash {
		hash += minValidHash
	}
	return uint64(hash)<<32 | uint64(uint32(keyLen))
}

// metaHash extracts the (remapped) hash half of a slot word.
func metaHash(meta uint64) uint32 { return uint32(meta >> 32) }

// slotEmpty reports whether the slot word marks a never-used slot.
func slotEmpty(meta uint64) bool { return meta == hashEmpty }

// slotDeleted reports whether the slot word is a tombstone.
func slotDeleted(meta uint64) bool { return metaHash(meta) == hashDeleted }
