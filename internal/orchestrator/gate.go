package orchestrator

import (
	"context"
	"sync"
	"time"
)

// submitGate spaces provider submissions at least delay apart
type submitGate struct {
	mu    sync.Mutex
	delay time.Duration
	last  time.Time
}

func newSubmitGate(delay time.Duration) *submitGate {
	return &submitGate{delay: delay}
}

// Wait blocks until a submission is allowed and claims the slot
func (g *submitGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() {
		if wait := g.delay - time.Since(g.last); wait > 0 {
			if err := sleepContext(ctx, wait); err != nil {
				return err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	g.last = time.Now()
	return nil
}

// sleepContext sleeps for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
