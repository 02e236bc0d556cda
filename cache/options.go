package cache

import (
	"context"
	"time"
)

// EvictReason says what made the cache drop an entry on its own.
// Explicit Invalidate calls are not evictions and carry no reason.
type EvictReason int

const (
	// EvictClock: the CLOCK sweep reclaimed the entry to make room.
	EvictClock EvictReason = iota
	// EvictTTL: the entry's deadline had passed when a Get found it.
	EvictTTL
)

// Metrics receives the cache's observability signals. Implementations
// must be safe for concurrent use; NoopMetrics is the default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
}

// Clock is the time source behind the coarse clock. The cache never
// calls it on hot paths: Tick samples it into an atomic word and all TTL
// math reads the sample. Swap in a fake for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// systemClock is the default Clock backed by time.Now.
type systemClock struct{}

func (systemClock) NowUnixNano() int64 { return time.Now().UnixNano() }

// Options configures a Cache. Only Capacity is mandatory; every other
// zero value means "use the default" (auto shard count, NoopMetrics,
// system clock, no TTL, no ticker, no loader).
type Options struct {
	// Capacity is the total entry count limit, split evenly across shards.
	// Must be > 0; New panics otherwise.
	Capacity int

	// Shards is the number of independent lock domains. Values are
	// rounded up to a power of two; 0 picks a default from GOMAXPROCS.
	Shards int

	// DefaultTTL applies to Set/Add and to SetWithTTL calls with a
	// non-positive ttl. Zero means entries never expire by default.
	DefaultTTL time.Duration

	// TickInterval, when positive, starts a background goroutine that
	// refreshes the cache's coarse clock at this period. Close stops it.
	// When zero, the caller is expected to drive Tick itself (or accept
	// that nothing ever expires between explicit ticks).
	TickInterval time.Duration

	// Loader, when set, lets GetOrLoad fetch missing values. Concurrent
	// GetOrLoad calls for one key share a single Loader invocation.
	Loader func(ctx context.Context, key []byte) ([]byte, error)

	// Observability
	// OnEvict is called under the shard lock when the CLOCK sweep or TTL
	// expiry removes an entry. The key/value views are only valid during
	// the call; copy them if they must be retained. Explicit Invalidate
	// does not trigger the callback. Keep callbacks lightweight.
	OnEvict func(key, value []byte, reason EvictReason)
	Metrics Metrics

	// Clock allows overriding the time source (tests). Nil => time.Now().
	Clock Clock
}
