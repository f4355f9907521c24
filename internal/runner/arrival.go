package runner

import (
	"context"

	"golang.org/x/time/rate"
)

// pacer gates iteration starts across all VUs with a shared rate.Limiter.
// A nil pacer never blocks.
type pacer struct {
	limiter *rate.Limiter
}

func newPacer(opt Options) *pacer {
	if opt.RatePerSecond <= 0 {
		return nil
	}
	return &pacer{limiter: opt.LimiterFactory(opt.RatePerSecond)}
}

// Wait blocks until the next iteration may start. It fails when ctx ends
// first or when the reservation cannot be satisfied before ctx's deadline.
func (p *pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
