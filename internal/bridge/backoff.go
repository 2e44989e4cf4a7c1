package bridge

import (
	"math/rand"
	"time"
)

// Reconnect policy: exponential backoff with jitter, bounded attempts.
const (
	DefaultBackoffBase = 1000 * time.Millisecond
	DefaultBackoffCap  = 30 * time.Second
	DefaultMaxAttempts = 10

	// jitterFraction is the maximum random addition, as a fraction of the
	// capped delay.
	jitterFraction = 0.3
)

// Backoff computes reconnect delays. Zero fields select the defaults.
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

func (b Backoff) base() time.Duration {
	if b.Base <= 0 {
		return DefaultBackoffBase
	}
	return b.Base
}

func (b Backoff) cap() time.Duration {
	if b.Cap <= 0 {
		return DefaultBackoffCap
	}
	return b.Cap
}

func (b Backoff) maxAttempts() int {
	if b.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return b.MaxAttempts
}

// Delay returns the wait before reconnect attempt k (0-indexed):
// min(base*2^k, cap) plus up to 30% random jitter.
func (b Backoff) Delay(attempt int) time.Duration {
	base, limit := b.base(), b.cap()

	delay := base
	for i := 0; i < attempt && delay < limit; i++ {
		delay *= 2
	}
	if delay > limit {
		delay = limit
	}
	jitter := time.Duration(rand.Float64() * jitterFraction * float64(delay))
	return delay + jitter
}

// Exhausted reports whether attempt k is past the attempt budget.
func (b Backoff) Exhausted(attempt int) bool {
	return attempt >= b.maxAttempts()
}
