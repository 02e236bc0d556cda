// Command bench drives a synthetic Zipf-distributed read/write workload
// against the cache and reports throughput, hit rate, and eviction
// activity. An optional HTTP listener exposes Prometheus metrics and
// pprof profiles while the run is in progress.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // /debug/pprof/* on the default mux
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/refcache/refcache/cache"
	"github.com/refcache/refcache/metrics/prom"
)

type config struct {
	capacity int
	shards   int
	ttl      time.Duration
	tick     time.Duration

	workers  int
	duration time.Duration
	readPct  int
	valSize  int

	keys    int
	zipfS   float64
	zipfV   float64
	seed    int64
	preload int

	httpAddr string
}

// tally is one worker's private operation counts, merged after the run.
type tally struct {
	reads, writes, hits, misses uint64
}

func (t *tally) add(o tally) {
	t.reads += o.reads
	t.writes += o.writes
	t.hits += o.hits
	t.misses += o.misses
}

func main() {
	var cfg config
	flag.IntVar(&cfg.capacity, "cap", 100_000, "cache capacity (entries)")
	flag.IntVar(&cfg.shards, "shards", 0, "shard count (0 = auto)")
	flag.DurationVar(&cfg.ttl, "ttl", 0, "default TTL (0 = entries never expire)")
	flag.DurationVar(&cfg.tick, "tick", time.Second, "coarse clock refresh period")
	flag.IntVar(&cfg.workers, "workers", 2*runtime.GOMAXPROCS(0), "worker goroutines")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "run length")
	flag.IntVar(&cfg.readPct, "reads", 80, "share of reads [0..100]")
	flag.IntVar(&cfg.valSize, "valsize", 8, "value payload bytes")
	flag.IntVar(&cfg.keys, "keys", 1_000_000, "keyspace size")
	flag.Float64Var(&cfg.zipfS, "zipf_s", 1.1, "Zipf skew (s > 1)")
	flag.Float64Var(&cfg.zipfV, "zipf_v", 1.0, "Zipf v parameter")
	flag.Int64Var(&cfg.seed, "seed", time.Now().UnixNano(), "RNG seed")
	flag.IntVar(&cfg.preload, "preload", 0, "entries to preload (0 = cap/2)")
	flag.StringVar(&cfg.httpAddr, "http", "", "serve /metrics and /debug/pprof here (empty = off)")
	flag.Parse()

	if cfg.workers < 1 {
		cfg.workers = 1
	}

	var metrics cache.Metrics
	if cfg.httpAddr != "" {
		metrics = prom.New(nil, "refcache", "bench", nil)
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("http: metrics and pprof at %s", cfg.httpAddr)
			log.Println(http.ListenAndServe(cfg.httpAddr, nil))
		}()
	}

	c := cache.New(cache.Options{
		Capacity:     cfg.capacity,
		Shards:       cfg.shards,
		DefaultTTL:   cfg.ttl,
		TickInterval: cfg.tick,
		Metrics:      metrics,
	})
	defer func() { _ = c.Close() }()

	// Warm the cache so the measured phase starts at a realistic hit rate.
	pl := cfg.preload
	if pl == 0 {
		pl = cfg.capacity / 2
	}
	payload := make([]byte, cfg.valSize)
	for i := 0; i < pl; i++ {
		c.Set(benchKey(uint64(i)), payload)
	}

	total, elapsed := run(c, cfg, payload)
	report(c, cfg, total, elapsed)
}

// run fans the workload out over cfg.workers goroutines and merges their
// tallies once the deadline passes.
func run(c *cache.Cache, cfg config, payload []byte) (tally, time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.duration)
	defer cancel()

	results := make([]tally, cfg.workers)
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(cfg.workers)
	for w := 0; w < cfg.workers; w++ {
		go func(id int) {
			defer wg.Done()
			results[id] = worker(ctx, c, cfg, id, payload)
		}(w)
	}
	wg.Wait()

	var total tally
	for i := range results {
		total.add(results[i])
	}
	return total, time.Since(start)
}

// worker loops Zipf-keyed Gets and Sets until ctx expires, counting into
// a local tally so the hot loop shares nothing with its siblings.
func worker(ctx context.Context, c *cache.Cache, cfg config, id int, payload []byte) tally {
	// rand.Rand and rand.Zipf are not goroutine-safe: one each per worker.
	rng := rand.New(rand.NewSource(cfg.seed + int64(id)*9973))
	zipf := rand.NewZipf(rng, cfg.zipfS, cfg.zipfV, uint64(cfg.keys-1))

	var t tally
	for ctx.Err() == nil {
		k := benchKey(zipf.Uint64())
		if int(rng.Int31n(100)) < cfg.readPct {
			t.reads++
			if h, ok := c.Get(k); ok {
				h.Release()
				t.hits++
			} else {
				t.misses++
			}
		} else {
			t.writes++
			c.Set(k, payload)
		}
	}
	return t
}

func benchKey(n uint64) []byte {
	return strconv.AppendUint([]byte("k:"), n, 10)
}

func report(c *cache.Cache, cfg config, t tally, elapsed time.Duration) {
	ops := t.reads + t.writes
	hitRate := 0.0
	if t.reads > 0 {
		hitRate = float64(t.hits) / float64(t.reads) * 100
	}
	st := c.Stats()

	fmt.Printf("cap=%d shards=%d workers=%d keys=%d ttl=%v dur=%v seed=%d\n",
		cfg.capacity, cfg.shards, cfg.workers, cfg.keys, cfg.ttl, elapsed, cfg.seed)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), t.reads, t.writes)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", t.hits, t.misses, hitRate)
	fmt.Printf("resident=%d  evictions=%d  expirations=%d\n",
		c.Len(), st.Evictions, st.Expirations)
}
