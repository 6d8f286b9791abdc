package cache

import (
	"context"
	"sync"
	"time"
)

// Governor enforces a per-provider sliding-window rate limit: at most
// capacity acquisitions per window. Unlike a token bucket, a full window
// blocks exactly until the oldest recorded timestamp ages out, which matches
// upstream quota accounting at the window boundary.
type Governor struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	stamps   []time.Time // oldest first

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGovernor creates a governor with the given per-window capacity.
// A capacity below 1 is treated as 1.
func NewGovernor(capacity int, window time.Duration) *Governor {
	if capacity < 1 {
		capacity = 1
	}
	return &Governor{
		capacity: capacity,
		window:   window,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Acquire blocks until a slot is free, then records the acquisition.
// Returns early with the context error if ctx is cancelled while waiting.
// The wait is bounded by the window length.
func (g *Governor) Acquire(ctx context.Context) error {
	for {
		g.mu.Lock()
		now := g.now()
		g.evict(now)

		if len(g.stamps) < g.capacity {
			g.stamps = append(g.stamps, now)
			g.mu.Unlock()
			return nil
		}

		wait := g.stamps[0].Add(g.window).Sub(now)
		g.mu.Unlock()

		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// InFlight returns the number of acquisitions still inside the window.
func (g *Governor) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evict(g.now())
	return len(g.stamps)
}

// evict drops timestamps that have fallen out of the window. Caller holds mu.
func (g *Governor) evict(now time.Time) {
	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.stamps) && !g.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.stamps = append(g.stamps[:0], g.stamps[i:]...)
	}
}
