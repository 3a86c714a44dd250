package core

import (
	"math/rand"
	"time"
)

// BackoffPolicy maps a retry attempt index to a delay. Delays grow
// exponentially from BaseDelay up to MaxDelay, spread by up to Jitter so
// concurrent workers do not retry in lockstep against the rate limiter.
type BackoffPolicy struct {
	// MaxAttempts bounds the total number of provider calls per email.
	MaxAttempts int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// Jitter is the fraction of the computed delay randomized in both
	// directions, in [0, 1].
	Jitter float64
	// Rand supplies the jitter source; nil uses the shared global source.
	// Tests inject a seeded source for determinism.
	Rand *rand.Rand
}

// Delay returns the pause before retry number retry (1 for the first retry).
func (p BackoffPolicy) Delay(retry int) time.Duration {
	if retry < 1 || p.BaseDelay <= 0 {
		return 0
	}

	d := p.BaseDelay
	for i := 1; i < retry; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}

	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d = time.Duration(float64(d) - spread + p.float64()*2*spread)
		if d < 0 {
			d = 0
		}
	}
	return d
}

func (p BackoffPolicy) float64() float64 {
	if p.Rand != nil {
		return p.Rand.Float64()
	}
	return rand.Float64()
}
