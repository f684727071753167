package embedding

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"kb/internal/port"
)

// DefaultRequestInterval is the minimum spacing between provider calls,
// matching the throughput the embedding provider tolerates for a single
// caller.
const DefaultRequestInterval = 350 * time.Millisecond

// RateLimited wraps an Embedder with a cooperative throttle so callers cannot
// exceed the provider's per-caller request rate. The throttle belongs to the
// caller side, not the provider client itself.
type RateLimited struct {
	inner   port.Embedder
	limiter *rate.Limiter
}

// NewRateLimited creates a rate-limited embedder enforcing a minimum interval
// between requests. A non-positive interval falls back to the default.
func NewRateLimited(inner port.Embedder, interval time.Duration) *RateLimited {
	if interval <= 0 {
		interval = DefaultRequestInterval
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Embed waits for the next rate-limit slot, then delegates. Context
// cancellation interrupts the wait and is returned as an ordinary error.
func (r *RateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

func (r *RateLimited) Dimension() int {
	return r.inner.Dimension()
}

func (r *RateLimited) ModelName() string {
	return r.inner.ModelName()
}
