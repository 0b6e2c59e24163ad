package crawler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateGate enforces a minimum interval between consecutive requests to the
// same origin. Acquire blocks the calling worker until the interval has
// elapsed since the last request to that origin, then records "now" as the
// new last-request time and returns.
//
// Design decision: We delegate the check-then-update critical section to
// golang.org/x/time/rate rather than hand-rolling a timestamp map because a
// rate.Limiter with burst 1 reserves the next slot atomically under its own
// lock. Two workers can never both observe an elapsed interval and proceed;
// the second reservation is scheduled one interval after the first.
type RateGate struct {
	// mu guards the limiters map, not the waiting itself. No worker holds
	// it across a blocking call.
	mu sync.Mutex

	// interval is the minimum time between requests per origin.
	interval time.Duration

	// limiters holds one limiter per origin, created on first use.
	limiters map[string]*rate.Limiter
}

// NewRateGate creates a RateGate with the given politeness interval.
// A non-positive interval disables throttling.
func NewRateGate(interval time.Duration) *RateGate {
	return &RateGate{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Acquire blocks until a request to origin is allowed, or until ctx is
// cancelled. The returned error is non-nil only on cancellation.
func (g *RateGate) Acquire(ctx context.Context, origin string) error {
	if g.interval <= 0 {
		return ctx.Err()
	}

	g.mu.Lock()
	lim, ok := g.limiters[origin]
	if !ok {
		lim = rate.NewLimiter(rate.Every(g.interval), 1)
		g.limiters[origin] = lim
	}
	g.mu.Unlock()

	return lim.Wait(ctx)
}

// Origins returns the number of origins seen so far. Used for stats.
func (g *RateGate) Origins() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.limiters)
}
