package singleflight

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Concurrent callers for one key share a single execution of fn.
func TestGroup_Coalesces(t *testing.T) {
	t.Parallel()

	var g Group
	var calls atomic.Int64
	gate := make(chan struct{})

	const waiters = 16
	var wg sync.WaitGroup
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			v, err := g.Do(context.Background(), "k", func() ([]byte, error) {
				calls.Add(1)
				<-gate
				return []byte("loaded"), nil
			})
			if err != nil || !bytes.Equal(v, []byte("loaded")) {
				t.Errorf("Do: v=%q err=%v", v, err)
			}
		}()
	}

	// Let every goroutine pile onto the flight before it completes.
	time.Sleep(10 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fn ran %d times, want 1", got)
	}

	// The flight is retired: a later call loads again.
	_, _ = g.Do(context.Background(), "k", func() ([]byte, error) {
		calls.Add(1)
		return nil, nil
	})
	if got := calls.Load(); got != 2 {
		t.Fatalf("retired flight reused: fn ran %d times, want 2", got)
	}
}

// A follower whose context expires gets ctx.Err() while the leader keeps
// running and still publishes for everyone else.
func TestGroup_FollowerCancel(t *testing.T) {
	t.Parallel()

	var g Group
	started := make(chan struct{})
	finish := make(chan struct{})

	leaderDone := make(chan error, 1)
	go func() {
		_, err := g.Do(context.Background(), "k", func() ([]byte, error) {
			close(started)
			<-finish
			return []byte("v"), nil
		})
		leaderDone <- err
	}()
	<-started

	// The leader is parked inside fn, so this call must join its flight
	// and never run its own load.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Do(ctx, "k", func() ([]byte, error) {
		t.Fatal("cancelled follower must not run the load")
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled follower: err=%v, want context.Canceled", err)
	}

	// A patient follower still gets the leader's result. The fallback fn
	// returns the same bytes in case this goroutine loses the race with
	// the flight's retirement and leads a load of its own.
	patient := make(chan []byte, 1)
	go func() {
		v, _ := g.Do(context.Background(), "k", func() ([]byte, error) {
			return []byte("v"), nil
		})
		patient <- v
	}()

	time.Sleep(5 * time.Millisecond)
	close(finish)
	if err := <-leaderDone; err != nil {
		t.Fatalf("leader: %v", err)
	}
	if v := <-patient; !bytes.Equal(v, []byte("v")) {
		t.Fatalf("patient follower got %q", v)
	}
}
