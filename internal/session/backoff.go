package session

import (
	"math"
	"math/rand"
	"time"
)

// NextBackoffDelay computes the wait before reconnect attempt n
// (1-based). The first attempt waits the initial delay; growth is
// exponential in the attempt number and clamped at MaxDelay. Jitter
// scales the result into [0.5, 1.5) so a fleet of sessions losing the
// same host does not reconnect in lockstep.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	growth := cfg.Multiplier
	if growth < 1.0 {
		growth = 1.0
	}
	d := float64(cfg.InitialDelay) * math.Pow(growth, float64(attempt-1))
	if limit := float64(cfg.MaxDelay); cfg.MaxDelay > 0 && d > limit {
		d = limit
	}
	if cfg.Jitter {
		scale := 0.5
		if rng != nil {
			scale += rng.Float64()
		}
		d *= scale
	}
	return time.Duration(d)
}
