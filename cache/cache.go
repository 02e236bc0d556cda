package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/refcache/refcache/internal/singleflight"
	"github.com/refcache/refcache/internal/util"
)

// ErrNoLoader is returned by GetOrLoad on a cache built without a Loader.
var ErrNoLoader = errors.New("cache: no Loader provided")

// Cache is a sharded, TTL-aware byte cache with CLOCK eviction and
// reference-counted zero-copy reads. Every method may be called from any
// number of goroutines.
type Cache struct {
	shards []*shard
	live   atomic.Int64 // resident entries across all shards
	now    atomic.Int64 // coarse clock (UnixNano); refreshed by Tick
	closed atomic.Bool

	opt   Options
	clock Clock

	// sf coalesces concurrent GetOrLoad misses for the same key.
	sf singleflight.Group

	// tickStop terminates the background ticker goroutine; nil unless
	// TickInterval was set.
	tickStop chan struct{}
}

// New builds a cache from opt, filling in defaults for everything left
// zero (see Options), and panics when Capacity is not positive.
//
// The coarse clock is sampled once here, so TTLs assigned before the
// first Tick are anchored to construction time.
func New(opt Options) *Cache {
	if opt.Capacity <= 0 {
		panic("cache: Capacity must be > 0")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	clock := opt.Clock
	if clock == nil {
		clock = systemClock{}
	}

	// Shard counts are powers of two so shard selection is a mask.
	sh := opt.Shards
	if sh <= 0 {
		sh = util.ReasonableShardCount()
	} else {
		sh = int(util.NextPow2(uint64(sh)))
	}

	c := &Cache{
		shards: make([]*shard, sh),
		opt:    opt,
		clock:  clock,
	}
	// Capacity splits evenly across shards, rounding up so every shard
	// holds at least one entry.
	perShardCap := (opt.Capacity + sh - 1) / sh
	for i := range c.shards {
		c.shards[i] = newShard(perShardCap, &c.live, opt)
	}
	c.Tick()

	if opt.TickInterval > 0 {
		c.tickStop = make(chan struct{})
		go c.tickLoop(opt.TickInterval)
	}
	return c
}

// ---- public API ----

// Get returns a counted handle to the value stored for key.
// The caller MUST call Release on the handle once done with the bytes;
// the view stays valid until then, even across overwrites, invalidations,
// and evictions. Expired entries are removed lazily here and reported as
// misses.
func (c *Cache) Get(key []byte) (Handle, bool) {
	if c.closed.Load() || uint64(len(key)) > maxKeyLen {
		return Handle{}, false
	}
	h := util.Hash32(key)
	return c.getShard(h).Get(packMeta(h, len(key)), key, c.now.Load())
}

// Set inserts or overwrites key→value, using DefaultTTL if set.
// Both byte slices are copied; the caller may reuse its buffers.
// Returns false if the cache is closed, key or value is oversized, or the
// shard's table had no usable slot (only possible after earlier eviction
// failures); the cache is unchanged in that case.
func (c *Cache) Set(key, value []byte) bool {
	return c.SetWithTTL(key, value, 0)
}

// SetWithTTL inserts or overwrites key→value with a per-entry TTL
// (relative duration). A non-positive ttl falls back to DefaultTTL; if
// that is also unset the entry never expires.
func (c *Cache) SetWithTTL(key, value []byte, ttl time.Duration) bool {
	if c.closed.Load() || !fits(key, value) {
		return false
	}
	h := util.Hash32(key)
	return c.getShard(h).Set(packMeta(h, len(key)), key, value, c.deadline(ttl))
}

// Add inserts key→value only if the key is absent, using DefaultTTL if
// set. Returns false if the key already exists (no update is performed).
func (c *Cache) Add(key, value []byte) bool {
	if c.closed.Load() || !fits(key, value) {
		return false
	}
	h := util.Hash32(key)
	return c.getShard(h).Add(packMeta(h, len(key)), key, value, c.deadline(0))
}

// Invalidate deletes key if present and returns true on success.
// Outstanding handles for the entry remain valid until released.
func (c *Cache) Invalidate(key []byte) bool {
	if c.closed.Load() || uint64(len(key)) > maxKeyLen {
		return false
	}
	h := util.Hash32(key)
	return c.getShard(h).Invalidate(packMeta(h, len(key)), key)
}

// GetOrLoad returns a handle to the value for key; on miss it loads via
// Options.Loader, coalescing concurrent loads for the same key
// (singleflight): one loader call, one Set, and every caller acquires its
// own counted handle. If no Loader is configured, returns ErrNoLoader.
//
// ctx cancellation unblocks waiting followers with ctx.Err(); the
// leader's load keeps running and may still populate the cache.
func (c *Cache) GetOrLoad(ctx context.Context, key []byte) (Handle, error) {
	// fast path
	if h, ok := c.Get(key); ok {
		return h, nil
	}
	if c.opt.Loader == nil {
		return Handle{}, ErrNoLoader
	}

	v, err := c.sf.Do(ctx, string(key), func() ([]byte, error) {
		// Re-check as the flight leader: the key may have landed between
		// the miss above and winning the flight.
		if h, ok := c.Get(key); ok {
			v := append([]byte(nil), h.Bytes()...)
			h.Release()
			return v, nil
		}
		v, err := c.opt.Loader(ctx, key)
		if err == nil {
			c.Set(key, v)
		}
		return v, err
	})
	if err != nil {
		return Handle{}, err
	}

	// Each caller takes its own reference rather than sharing the
	// flight's handle, so each Release stays balanced.
	if h, ok := c.Get(key); ok {
		return h, nil
	}
	// The freshly stored entry is already gone (evicted or invalidated);
	// serve the loaded bytes through a detached single-reference handle.
	return Handle{ent: newEntry(key, v, 0)}, nil
}

// Len reports how many entries are resident, summed over all shards.
func (c *Cache) Len() int {
	return int(c.live.Load())
}

// Tick refreshes the cache's coarse clock from the configured time
// source. All TTL math — both deadline assignment and expiry checks —
// reads the last ticked value, never the wall clock. Call it from a
// periodic task, or set Options.TickInterval to have the cache run one.
func (c *Cache) Tick() {
	c.now.Store(c.clock.NowUnixNano())
}

// Close stops the background ticker (if any) and drops the table
// reference of every resident entry. Handles already returned stay valid
// until released. Operations after Close are no-ops that report misses
// and failed writes. Close is idempotent.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.tickStop != nil {
		close(c.tickStop)
	}
	for _, s := range c.shards {
		s.purge()
	}
	return nil
}

// ---- helpers ----

// getShard picks the one shard responsible for a key hash. New sizes
// c.shards to a power of two, so the index reduces to a mask.
func (c *Cache) getShard(hash uint32) *shard {
	return c.shards[util.ShardIndex(hash, len(c.shards))]
}

// fits guards the packed-metadata layout: key and value lengths must each
// fit in 32 bits.
func fits(key, value []byte) bool {
	return uint64(len(key)) <= maxKeyLen && uint64(len(value)) <= maxValueLen
}

// deadline converts a relative TTL into an absolute UnixNano deadline
// against the coarse clock. Non-positive ttl falls back to DefaultTTL;
// a zero result means "never expires".
func (c *Cache) deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		ttl = c.opt.DefaultTTL
	}
	if ttl <= 0 {
		return 0
	}
	return c.now.Load() + int64(ttl)
}

// tickLoop drives Tick at the configured interval until Close.
func (c *Cache) tickLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.Tick()
		case <-c.tickStop:
			return
		}
	}
}
