package tracksync

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces out per-activity work.
type Throttle interface {
	Wait(ctx context.Context) error
}

// NewThrottle returns a limiter that lets the first call through and then one call per
// interval. A zero interval never blocks.
func NewThrottle(interval time.Duration) Throttle {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
