package core

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayGrowsExponentially(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Minute}

	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
}

func TestBackoffDelayCapped(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	assert.Equal(t, 5*time.Second, p.Delay(4))
	assert.Equal(t, 5*time.Second, p.Delay(9))
}

func TestBackoffJitterStaysInBounds(t *testing.T) {
	p := BackoffPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
		Jitter:      0.5,
		Rand:        rand.New(rand.NewSource(1)),
	}

	for retry := 1; retry <= 4; retry++ {
		base := time.Second << (retry - 1)
		for i := 0; i < 100; i++ {
			d := p.Delay(retry)
			assert.GreaterOrEqual(t, d, time.Duration(float64(base)*0.5))
			assert.LessOrEqual(t, d, time.Duration(float64(base)*1.5))
		}
	}
}

func TestBackoffDeterministicWithSeededSource(t *testing.T) {
	a := BackoffPolicy{MaxAttempts: 3, BaseDelay: time.Second, Jitter: 0.3, Rand: rand.New(rand.NewSource(7))}
	b := BackoffPolicy{MaxAttempts: 3, BaseDelay: time.Second, Jitter: 0.3, Rand: rand.New(rand.NewSource(7))}

	for retry := 1; retry <= 5; retry++ {
		assert.Equal(t, a.Delay(retry), b.Delay(retry))
	}
}

func TestBackoffZeroRetryIndex(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 3, BaseDelay: time.Second}
	assert.Equal(t, time.Duration(0), p.Delay(0))
}
