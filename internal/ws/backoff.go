package ws

import (
	"math/rand/v2"
	"time"
)

// Backoff is the reconnect policy: the delay before retry n (1-indexed)
// is Base*2^(n-1), capped at Max, then jittered by ±Jitter.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
	Jitter      float64
}

// DefaultBackoff returns the production reconnect policy.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        1 * time.Second,
		Max:         30 * time.Second,
		MaxAttempts: 5,
		Jitter:      0.25,
	}
}

// Delay returns the wait before retry n.
func (b Backoff) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}

	next := b.Base
	for i := 1; i < n && next < b.Max; i++ {
		next *= 2
	}
	if b.Max > 0 && next > b.Max {
		next = b.Max
	}

	if b.Jitter <= 0 {
		return next
	}

	factor := 1 - b.Jitter + rand.Float64()*2*b.Jitter //nolint:gosec // jitter doesn't need crypto rand.

	return time.Duration(float64(next) * factor)
}
