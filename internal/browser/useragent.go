package browser

import (
	"context"
	"math/rand"
	"time"
)

// userAgents is a small pool of current desktop Chrome agents. Rotating
// between them keeps repeated sessions from sharing one fingerprint.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36",
}

// RandomUserAgent picks a user agent from the pool.
func RandomUserAgent(rng *rand.Rand) string {
	if rng == nil {
		return userAgents[0]
	}
	return userAgents[rng.Intn(len(userAgents))]
}

// Jitter sleeps for a uniformly random duration in [min, max], honoring
// context cancellation. Human-looking pauses between page interactions.
func Jitter(ctx context.Context, rng *rand.Rand, min, max time.Duration) error {
	if max < min {
		min, max = max, min
	}
	d := min
	if span := max - min; span > 0 && rng != nil {
		d += time.Duration(rng.Int63n(int64(span)))
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
