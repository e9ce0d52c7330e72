package queue

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDelayGrowsAndCaps(t *testing.T) {
	t.Parallel()

	cfg := BackoffConfig{BaseDelay: 5 * time.Second, MaxDelay: time.Minute}

	expected := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		time.Minute,
		time.Minute,
	}

	for attempt, want := range expected {
		assert.Equal(t, want, nextDelay(attempt+1, cfg, nil))
	}
}

func TestNextDelayDefaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Second, nextDelay(0, BackoffConfig{}, nil))
	assert.Equal(t, 10*time.Second, nextDelay(2, BackoffConfig{}, nil))
}

func TestNextDelayJitterRange(t *testing.T) {
	t.Parallel()

	cfg := BackoffConfig{BaseDelay: 8 * time.Second, MaxDelay: time.Minute}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 100; i++ {
		delay := nextDelay(3, cfg, rng)

		assert.GreaterOrEqual(t, delay, 16*time.Second)
		assert.LessOrEqual(t, delay, 32*time.Second)
	}
}
