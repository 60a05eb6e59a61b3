package wavechan

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy returns how long to wait before the given reconnect attempt.
// Attempts start at 1 and reset once a connection authenticates. A policy must
// never signal giving up: the channel retries forever.
type RetryPolicy func(attempt int) time.Duration

const DefaultRetryDelay = 3 * time.Second

// FixedDelay waits the same amount before every attempt.
func FixedDelay(d time.Duration) RetryPolicy {
	return func(int) time.Duration {
		return d
	}
}

func ExponentialBackoffFactor(attempts int) float64 {
	return (math.Pow(2.0, float64(attempts)) - 1) / 2
}

// ExponentialBackoff grows the delay as base * (2^attempt - 1) / 2 capped at
// limit, then applies full jitter.
func ExponentialBackoff(base, limit time.Duration) RetryPolicy {
	return func(attempt int) time.Duration {
		ceil := limit
		if f := ExponentialBackoffFactor(attempt) * float64(base); f > 0 && f < float64(limit) {
			ceil = time.Duration(f)
		}
		if ceil <= 0 {
			return 0
		}
		if ceil == math.MaxInt64 {
			ceil--
		}
		return time.Duration(rand.Int64N(int64(ceil) + 1))
	}
}
