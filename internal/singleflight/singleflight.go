// Package singleflight suppresses duplicate loads of the same cache key.
package singleflight

import (
	"context"
	"sync"
)

// Group runs at most one load per key at a time. The first caller for a
// key becomes the leader and executes fn; callers arriving while that
// load is in flight wait for its result instead of loading again.
//
// Keys are strings (the cache stringifies its byte keys); results are
// the loaded value bytes, shared read-only between the leader and its
// followers.
type Group struct {
	mu sync.Mutex
	m  map[string]*flight
}

// flight is one in-progress load. val and err are written exactly once,
// before done is closed, so any read after <-done observes the final
// result.
type flight struct {
	done chan struct{}
	val  []byte
	err  error
}

// Do returns the result of fn for key, running fn itself only when no
// call for the same key is already in flight. A follower whose ctx
// expires gives up with ctx.Err(); the leader is not interrupted and its
// result still lands for the remaining waiters. Cancelling the load
// itself is fn's business: thread ctx into it if that matters.
//
// Followers alias the leader's returned slice; treat it as read-only.
func (g *Group) Do(ctx context.Context, key string, fn func() ([]byte, error)) ([]byte, error) {
	g.mu.Lock()
	if f, ok := g.m[key]; ok {
		g.mu.Unlock()
		return f.wait(ctx)
	}
	f := &flight{done: make(chan struct{})}
	if g.m == nil {
		g.m = make(map[string]*flight)
	}
	g.m[key] = f
	g.mu.Unlock()

	// Leader: run the load outside the lock, publish, then retire the
	// flight so the next miss starts a fresh one.
	f.val, f.err = fn()
	close(f.done)

	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()

	return f.val, f.err
}

// wait blocks until the flight publishes or ctx gives out.
func (f *flight) wait(ctx context.Context) ([]byte, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
