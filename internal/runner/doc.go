// Package runner provides the virtual-user execution engine for checkfire.
//
// A run starts a fixed number of virtual users (VUs). Each VU is a goroutine
// that repeats one iteration until the run duration elapses:
//
//	Idle -> Requesting -> Checking -> Sleeping -> Requesting ... -> Stopped
//
// Every iteration performs one request through a [Requester], evaluates the
// configured [Check] set against the resulting [Outcome], records it in the
// shared [Aggregator] and hands it to the optional [OutcomeSink].
//
// # Basic Usage
//
//	r := runner.New(runner.Options{
//		VirtualUsers: 5,
//		Duration:     time.Minute,
//		Delay:        100 * time.Millisecond,
//		Requester:    myRequester,
//	})
//	summary := r.Run(ctx)
//
// # Stopping
//
// When the duration elapses no VU starts a new iteration. Requests already in
// flight complete naturally; [Options.GracefulStop] bounds how long they may
// take. Cancelling the parent context aborts in-flight requests immediately,
// and aborted requests are not recorded as outcomes.
//
// # Checks
//
// [DefaultChecks] returns the two checks every run evaluates unless
// overridden:
//   - status_is_200: the request completed with status 200
//   - rate_limit_not_exceeded: the request completed with a status other than 429
//
// A transport failure (connection refused, timeout, DNS) fails every default
// check. It never stops the VU loop.
package runner
