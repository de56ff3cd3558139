package backoff

import (
	"context"
	"time"
)

// Policy is a capped exponential backoff: delays double on every
// failure up to Max and reset to Base on success.
type Policy struct {
	Base time.Duration
	Max  time.Duration
}

// Next returns the delay to use after the delay that just elapsed.
func (p Policy) Next(current time.Duration) time.Duration {
	next := current * 2
	if next > p.Max {
		next = p.Max
	}
	return next
}

// Reset returns the initial delay.
func (p Policy) Reset() time.Duration {
	return p.Base
}

// Sleep waits for d or until ctx is cancelled, whichever comes first.
// It reports whether the full delay elapsed; false means shutdown.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
