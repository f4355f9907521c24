package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Requester abstracts executing the request of a single iteration.
// It returns the response status code. A non-nil error reports a transport
// failure: no response was received and the status code is meaningless.
type Requester interface {
	Do(ctx context.Context) (statusCode int, err error)
}

// RequesterFunc adapts a function to the Requester interface.
type RequesterFunc func(ctx context.Context) (int, error)

// Do calls f(ctx).
func (f RequesterFunc) Do(ctx context.Context) (int, error) {
	return f(ctx)
}

// Options configure the Runner. They are copied by New and never change
// while a run is in progress.
type Options struct {
	VirtualUsers   int                                              // number of concurrent VU loops
	Duration       time.Duration                                    // run length (0 means until ctx is cancelled)
	Delay          time.Duration                                    // pause between iterations of one VU
	GracefulStop   time.Duration                                    // max time in-flight requests may run past Duration (0 means no cap)
	RatePerSecond  int                                              // global cap on iteration starts (0 means unlimited)
	Requester      Requester                                        // request executor (required)
	Checks         []Check                                          // evaluated per outcome (nil means DefaultChecks)
	Sink           OutcomeSink                                      // optional, called from VU goroutines
	StateObserver  func(vu int, from, to VUState)                   // optional, called from VU goroutines
	Sleep          func(ctx context.Context, d time.Duration) error // optional injection for tests
	LimiterFactory func(rps int) *rate.Limiter                      // optional injection for tests
}

func (o *Options) normalize() {
	if o.VirtualUsers <= 0 {
		o.VirtualUsers = 1
	}
	if o.Duration < 0 {
		o.Duration = 0
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	if o.GracefulStop < 0 {
		o.GracefulStop = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.Checks == nil {
		o.Checks = DefaultChecks()
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

// sleepContext blocks for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when ctx ended the wait.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
