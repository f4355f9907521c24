package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNoRequester is reported as the transport error of every outcome when
// Options.Requester is nil.
var ErrNoRequester = errors.New("runner: requester is not configured")

// Runner drives the VU loops of one run. A Runner is single-use.
type Runner struct {
	opt        Options
	pacer      *pacer
	agg        *Aggregator
	iterations []atomic.Int64
	aborted    atomic.Int64
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{
		opt:        opt,
		pacer:      newPacer(opt),
		agg:        NewAggregator(checkNames(opt.Checks)...),
		iterations: make([]atomic.Int64, opt.VirtualUsers),
	}
}

// Run starts the VUs, waits until every one of them stopped and returns the
// aggregated summary.
func (r *Runner) Run(ctx context.Context) Summary {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	// In-flight requests use requestCtx, which outlives the stop signal.
	requestCtx, cancelRequests := context.WithCancel(ctx)
	defer cancelRequests()

	stopCtx, stop := context.WithCancel(ctx)
	defer stop()
	if r.opt.Duration > 0 {
		deadlineCtx, deadlineCancel := context.WithTimeout(stopCtx, r.opt.Duration)
		stopCtx = deadlineCtx
		defer deadlineCancel()
	}

	if r.opt.GracefulStop > 0 {
		go func() {
			select {
			case <-stopCtx.Done():
			case <-requestCtx.Done():
				return
			}
			timer := time.NewTimer(r.opt.GracefulStop)
			defer timer.Stop()
			select {
			case <-timer.C:
				cancelRequests()
			case <-requestCtx.Done():
			}
		}()
	}

	var wg sync.WaitGroup
	wg.Add(r.opt.VirtualUsers)
	for vu := 0; vu < r.opt.VirtualUsers; vu++ {
		go func() {
			defer wg.Done()
			r.loop(stopCtx, requestCtx, vu)
		}()
	}
	wg.Wait()

	summary := r.Snapshot()
	summary.Duration = time.Since(start)
	summary.DurationMs = float64(summary.Duration) / float64(time.Millisecond)
	return summary
}

// Snapshot returns the live summary. Duration is only set on the summary
// returned by Run.
func (r *Runner) Snapshot() Summary {
	s := r.agg.Snapshot()
	s.VirtualUsers = r.opt.VirtualUsers
	s.Aborted = r.aborted.Load()
	s.Iterations = make([]int64, len(r.iterations))
	for i := range r.iterations {
		s.Iterations[i] = r.iterations[i].Load()
	}
	return s
}

func (r *Runner) loop(stopCtx, requestCtx context.Context, vu int) {
	vuCtx := withVU(requestCtx, vu)
	state := StateIdle
	move := func(next VUState) {
		if !state.canTransition(next) {
			panic(fmt.Sprintf("runner: illegal VU transition %s -> %s", state, next))
		}
		if r.opt.StateObserver != nil {
			r.opt.StateObserver(vu, state, next)
		}
		state = next
	}

	for iteration := int64(0); ; iteration++ {
		if stopCtx.Err() != nil {
			move(StateStopped)
			return
		}
		if err := r.pacer.Wait(stopCtx); err != nil {
			move(StateStopped)
			return
		}

		move(StateRequesting)
		outcome := r.execute(withIteration(vuCtx, iteration), vu, iteration)
		if outcome.Err != nil && requestCtx.Err() != nil {
			// The run was interrupted mid-request; nothing completed.
			r.aborted.Add(1)
			move(StateStopped)
			return
		}

		move(StateChecking)
		outcome.Checks = evaluateChecks(r.opt.Checks, outcome)
		r.agg.Record(outcome)
		r.iterations[vu].Add(1)
		if r.opt.Sink != nil {
			r.opt.Sink.OnOutcome(outcome)
		}

		move(StateSleeping)
		if err := r.opt.Sleep(stopCtx, r.opt.Delay); err != nil {
			move(StateStopped)
			return
		}
	}
}

func (r *Runner) execute(ctx context.Context, vu int, iteration int64) Outcome {
	outcome := Outcome{VU: vu, Iteration: iteration}
	if r.opt.Requester == nil {
		outcome.Err = ErrNoRequester
		return outcome
	}
	start := time.Now()
	status, err := r.opt.Requester.Do(ctx)
	outcome.Duration = time.Since(start)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.StatusCode = status
	return outcome
}

type (
	vuContextKey        struct{}
	iterationContextKey struct{}
)

func withVU(ctx context.Context, vu int) context.Context {
	return context.WithValue(ctx, vuContextKey{}, vu)
}

// VUFromContext returns the index of the VU issuing the request carried by
// ctx. Indexes run from 0 to VirtualUsers-1.
func VUFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	vu, ok := ctx.Value(vuContextKey{}).(int)
	return vu, ok
}

func withIteration(ctx context.Context, iteration int64) context.Context {
	return context.WithValue(ctx, iterationContextKey{}, iteration)
}

// IterationFromContext returns the index of the iteration of the VU issuing
// the request carried by ctx. Indexes start at 0 for every VU.
func IterationFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	iteration, ok := ctx.Value(iterationContextKey{}).(int64)
	return iteration, ok
}
