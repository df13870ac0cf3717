// Package coalesce deduplicates concurrent identical upstream calls. The
// first caller for a key becomes the leader and runs the producer; everyone
// else arriving while the call is in flight waits for the leader's outcome
// instead of issuing a duplicate call.
package coalesce

import (
	"context"
	"sync"
)

// flight is one in-progress producer call. Its outcome fields are written
// exactly once, before done is closed; waiters read them only after done.
type flight[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Group coordinates in-flight calls by key. The zero value is not usable;
// construct with NewGroup.
type Group[V any] struct {
	mu      sync.Mutex
	flights map[string]*flight[V]
}

func NewGroup[V any]() *Group[V] {
	return &Group[V]{flights: make(map[string]*flight[V])}
}

// Do returns the producer's outcome for key, running fn at most once across
// all concurrent callers sharing the key. The returned bool reports whether
// this caller led the flight.
//
// Leadership is decided atomically: the absent-check and the registration
// happen under one lock hold, so two racing first callers can never both
// run fn. The flight entry is removed unconditionally when fn returns,
// success or failure, so the next caller after completion starts fresh.
//
// The leader ignores ctx and runs fn to completion: followers and the
// result cache depend on the shared work, so a leader disconnect must not
// abandon it. A follower whose ctx is cancelled gives up its own wait only;
// the flight continues.
func (g *Group[V]) Do(ctx context.Context, key string, fn func() (V, error)) (V, bool, error) {
	g.mu.Lock()
	if f, ok := g.flights[key]; ok {
		g.mu.Unlock()
		select {
		case <-f.done:
			return f.val, false, f.err
		case <-ctx.Done():
			var zero V
			return zero, false, ctx.Err()
		}
	}

	f := &flight[V]{done: make(chan struct{})}
	g.flights[key] = f
	g.mu.Unlock()

	f.val, f.err = fn()

	g.mu.Lock()
	delete(g.flights, key)
	g.mu.Unlock()
	close(f.done)

	return f.val, true, f.err
}

// InFlight reports whether a call for key is currently executing.
func (g *Group[V]) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.flights[key]
	return ok
}
