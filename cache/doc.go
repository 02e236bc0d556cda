// Package cache provides a fast, sharded in-memory byte cache with CLOCK
// (second chance) eviction, per-entry TTL, reference-counted zero-copy
// reads, optional singleflight loading, and lightweight metrics hooks.
//
// Design
//
//   - Concurrency: keys hash to one of a power-of-two number of shards,
//     each guarded by its own RWMutex (the count defaults from available
//     parallelism). Gets take only the read lock; reference counts and
//     recency bits are atomics, so Release never touches a lock at all.
//
//   - Storage: each shard is an open-addressing table of slots sized to a
//     power of two at least twice the shard capacity. A slot packs the
//     key hash and key length into one word, so probing rejects
//     non-matching slots with a single integer compare. Deletions leave
//     tombstones that later inserts reuse; an empty slot terminates every
//     probe.
//
//   - Eviction: CLOCK within the shard. Every Get sets the entry's
//     recency bit (writing only on change); an insert into a full shard
//     sweeps from the shard's hand, clearing set bits and evicting the
//     first entry found with the bit clear. At most one entry is evicted
//     per insert, and the sweep is bounded by two full passes.
//
//   - Zero-copy reads: Get returns a Handle whose Bytes view aliases
//     cache-owned memory. The entry is reference counted: overwriting,
//     invalidating, or evicting it only drops the table's reference, so
//     the view stays valid until the handle is released.
//
//   - TTL: deadlines are absolute (UnixNano) against a coarse clock the
//     cache samples via Tick — never the wall clock directly. Expiry is
//     lazy on read. Set Options.TickInterval to let the cache refresh the
//     clock itself, or drive Tick from your own scheduler.
//
//   - GetOrLoad: coalesces concurrent loads for the same key using
//     singleflight. If Loader is nil, GetOrLoad returns ErrNoLoader.
//
//   - Metrics: Options.Metrics is fed Hit/Miss/Evict/Size signals as they
//     happen (NoopMetrics unless configured; metrics/prom exports them to
//     Prometheus). Counter totals are also available via Stats.
//
//   - Callbacks: Options.OnEvict(key, value, reason) is called for every
//     eviction (reason is EvictClock or EvictTTL; explicit Invalidate
//     does not count as an eviction).
//
// Basic usage
//
//	c := cache.New(cache.Options{Capacity: 10_000})
//	defer c.Close()
//	c.Set([]byte("a"), []byte("1"))
//	if h, ok := c.Get([]byte("a")); ok {
//	    use(h.Bytes()) // valid until Release
//	    h.Release()
//	}
//	c.Invalidate([]byte("a"))
//
// With TTL
//
//	c := cache.New(cache.Options{
//	    Capacity:     1024,
//	    TickInterval: time.Second, // background coarse-clock refresh
//	})
//	c.SetWithTTL([]byte("tmp"), []byte("v"), 5*time.Second)
//	// ~5s and one tick later:
//	_, ok := c.Get([]byte("tmp")) // ok == false (expired)
//
// Loading through the cache
//
//	c := cache.New(cache.Options{
//	    Capacity: 1024,
//	    Loader: func(ctx context.Context, key []byte) ([]byte, error) {
//	        return fetchFromBackend(ctx, key)
//	    },
//	})
//	h, err := c.GetOrLoad(context.Background(), []byte("key"))
//	if err == nil {
//	    use(h.Bytes())
//	    h.Release()
//	}
//
// Exporting metrics (Prometheus adapter from metrics/prom)
//
//	m := prom.New(nil, "refcache", "demo", nil) // implements Metrics
//	c := cache.New(cache.Options{
//	    Capacity: 10_000,
//	    Metrics:  m,
//	})
//
// Thread-safety & complexity
//
// All methods on Cache are safe for concurrent use. Handles themselves
// are not (use one per goroutine; taking several handles to the same key
// is cheap). Typical operation cost is O(1) expected time: a short probe
// run plus constant bookkeeping. Eviction work is bounded per insert.
package cache
