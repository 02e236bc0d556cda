package cache

// Stats is a point-in-time snapshot of cache counters, aggregated across
// shards. Obtain fresh values from Cache.Stats.
type Stats struct {
	// Hits is the number of Gets served from a live entry.
	Hits int64

	// Misses is the number of Gets of absent or expired keys.
	Misses int64

	// Evictions is the number of entries removed by the CLOCK sweep.
	Evictions uint64

	// Expirations is the number of entries removed by TTL expiry.
	Expirations uint64

	// Invalidations is the number of entries explicitly removed.
	Invalidations uint64

	// EntriesCount is the current number of resident entries.
	EntriesCount int

	// MaxEntries is the configured total capacity.
	MaxEntries int
}

// Stats aggregates the per-shard counters into a snapshot. Shards are
// read one by one without locking, so under load the columns are each
// accurate but not mutually atomic.
func (c *Cache) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evicts.Load()
		st.Expirations += s.expires.Load()
		st.Invalidations += s.removes.Load()
	}
	st.EntriesCount = int(c.live.Load())
	st.MaxEntries = c.opt.Capacity
	return st
}
