package channel

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool is a bounded worker pool: every accept, inbound decode, and
// invocation runs on a pool worker, with worker count caller configured
// (100 in the reference server, cmd/dirmid/main.go).
//
// Go never blocks its caller: it always launches a goroutine immediately
// (preserving "accept never blocks", "receive never blocks"), deferring only
// the actual work until a slot is available. This trades a small amount of
// goroutine churn under saturation for a simpler, always non-blocking
// submission API.
//
// Go is reserved for short-lived work that eventually returns a permit: one
// accept handshake, one inbound message's decode-and-invoke. A task that runs
// for the lifetime of its caller (a channel's read loop or delivery loop)
// must not go through Go, since it would hold its permit forever and starve
// every other channel's turn at the same pool; such tasks use Spawn instead.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool builds a Pool bounded to size concurrent workers.
func NewPool(size int64) *Pool {
	if size <= 0 {
		size = 100
	}
	return &Pool{sem: semaphore.NewWeighted(size)}
}

// Go schedules fn to run on a pool worker, blocking only until a slot frees
// up, never blocking the caller of Go itself. fn must return promptly once
// its unit of work (one accept, one decode-and-invoke) completes.
func (p *Pool) Go(fn func()) {
	go func() {
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		fn()
	}()
}

// Spawn launches fn on a plain, unbounded goroutine: no pool permit is
// acquired or held. Use this for a task that runs for as long as its owner
// is alive (a channel's read loop or delivery loop) rather than completing
// after one unit of work, so that long-lived loops never consume the bounded
// pool's capacity.
func (p *Pool) Spawn(fn func()) {
	go fn()
}
