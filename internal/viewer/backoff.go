package viewer

import (
	"math"
	"time"
)

// Backoff is a capped exponential reconnect schedule.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:        time.Second,
		Max:         30 * time.Second,
		MaxAttempts: 10,
	}
}

// withDefaults fills every unset field from DefaultBackoff, so a partial
// configuration still has a cap and an attempt limit.
func (b Backoff) withDefaults() Backoff {
	def := DefaultBackoff()
	if b.Base <= 0 {
		b.Base = def.Base
	}
	if b.Max <= 0 {
		b.Max = def.Max
	}
	if b.Max < b.Base {
		b.Max = b.Base
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = def.MaxAttempts
	}
	return b
}

// Delay returns the wait before reconnect attempt n (1-based):
// Base * 2^(n-1), never more than Max.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	if attempt < 1 {
		attempt = 1
	}

	d := b.Base
	for i := 1; i < attempt && d < b.Max; i++ {
		if d > math.MaxInt64/2 {
			d = b.Max
			break
		}
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}

// Exhausted reports whether failures consecutive failures end reconnection.
func (b Backoff) Exhausted(failures int) bool {
	return failures >= b.withDefaults().MaxAttempts
}
