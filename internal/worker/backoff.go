package worker

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes the pause before retry attempt n (1-indexed).
type Backoff interface {
	Delay(attempt int) time.Duration
}

// JitterBackoff is exponential backoff with full jitter: a random delay in
// [0, min(Initial*2^(attempt-1), Max)].
type JitterBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

func (b JitterBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(b.Initial) * math.Pow(2, float64(attempt-1))
	if b.Max > 0 && base > float64(b.Max) {
		base = float64(b.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter only
}

// NoBackoff retries immediately.
type NoBackoff struct{}

func (NoBackoff) Delay(int) time.Duration { return 0 }
