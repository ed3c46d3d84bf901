package cache

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// CounterValue is the state of a fixed-window counter right after an
// increment.
type CounterValue struct {
	Count   int64
	ResetAt time.Time
}

// Counter increments named fixed-window counters atomically. The first
// increment of a key starts its window; the count returns to zero when the
// window elapses.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (CounterValue, error)
}

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter keeps counters in a concurrent map. Each increment is a
// single Compute call, so concurrent requests for the same key serialise on
// that key only.
//
// Expired windows are reset lazily on access; a sweeper removes keys that
// are never touched again so the map stays bounded by the active key set.
type MemoryCounter struct {
	windows *xsync.MapOf[string, window]
	now     func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCounter starts a counter whose sweeper runs every sweepEvery.
// Call Close to stop it.
func NewMemoryCounter(sweepEvery time.Duration) *MemoryCounter {
	c := &MemoryCounter{
		windows: xsync.NewMapOf[string, window](),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	go c.sweepLoop(sweepEvery)
	return c
}

func (c *MemoryCounter) Incr(_ context.Context, key string, d time.Duration) (CounterValue, error) {
	now := c.now()

	w, _ := c.windows.Compute(key, func(old window, loaded bool) (window, bool) {
		if !loaded || !now.Before(old.resetAt) {
			return window{count: 1, resetAt: now.Add(d)}, false
		}
		old.count++
		return old, false
	})

	return CounterValue{Count: w.count, ResetAt: w.resetAt}, nil
}

// Len reports how many keys are tracked.
func (c *MemoryCounter) Len() int {
	return c.windows.Size()
}

// Sweep drops every key whose window has elapsed.
func (c *MemoryCounter) Sweep() {
	now := c.now()
	c.windows.Range(func(key string, _ window) bool {
		// Re-check under the key's lock; an Incr may have reset it.
		c.windows.Compute(key, func(old window, loaded bool) (window, bool) {
			return old, !loaded || !now.Before(old.resetAt)
		})
		return true
	})
}

// Close stops the sweeper and waits for it to exit.
func (c *MemoryCounter) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
	return nil
}

func (c *MemoryCounter) sweepLoop(every time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
