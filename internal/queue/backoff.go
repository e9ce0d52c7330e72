package queue

import (
	"math/rand"
	"time"
)

type BackoffConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		BaseDelay: 5 * time.Second,
		MaxDelay:  60 * time.Second,
	}
}

// nextDelay computes the wait before re-attempting the head entity using
// exponential backoff with half jitter. attempt is 1-based.
func nextDelay(attempt int, cfg BackoffConfig, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 5 * time.Second
	}

	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}

	delay := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.MaxDelay {
			delay = cfg.MaxDelay

			break
		}
	}

	if rng == nil {
		return delay
	}

	// Half jitter: random in [delay/2, delay]
	half := delay / 2

	return half + time.Duration(rng.Int63n(int64(half)+1))
}
