package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// throttle admits one call at a time, in arrival order, and spaces calls so
// that each starts at least interval after the previous one completed.
type throttle struct {
	interval time.Duration
	events   *emitter
	sem      *semaphore.Weighted

	mu   sync.Mutex
	last time.Time // completion of the previous call; zero before the first
}

func newThrottle(interval time.Duration, events *emitter) *throttle {
	return &throttle{
		interval: interval,
		events:   events,
		sem:      semaphore.NewWeighted(1),
	}
}

// Do waits for its turn and for the interval to elapse, then runs fn.
// The completion time is recorded whether fn succeeds or not. If ctx ends
// while waiting, fn is not run and the recorded time is unchanged.
func (g *throttle) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	if wait := g.delay(); wait > 0 {
		g.events.emit(slog.LevelDebug, EventPublishThrottled, fmt.Sprintf("wait %s", wait), "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	err := fn(ctx)

	g.mu.Lock()
	g.last = time.Now()
	g.mu.Unlock()

	return err
}

// delay returns how long the next call must wait.
// time.Now carries a monotonic reading, so wall clock steps do not matter.
func (g *throttle) delay() time.Duration {
	if g.interval <= 0 {
		return 0
	}
	g.mu.Lock()
	last := g.last
	g.mu.Unlock()
	if last.IsZero() {
		return 0
	}
	return g.interval - time.Since(last)
}

// lastCompleted returns when the previous call finished.
func (g *throttle) lastCompleted() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
