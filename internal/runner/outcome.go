package runner

import "time"

// Outcome is the result of one iteration of one VU.
type Outcome struct {
	VU         int
	Iteration  int64
	StatusCode int           // 0 when Err is set
	Duration   time.Duration // wall-clock time of the request
	Err        error         // transport failure, if any
	Checks     map[string]bool
}

// DurationMs returns the request duration in fractional milliseconds.
func (o Outcome) DurationMs() float64 {
	return float64(o.Duration) / float64(time.Millisecond)
}

// Passed reports whether the named check passed for this outcome.
func (o Outcome) Passed(name string) bool {
	return o.Checks[name]
}

// OutcomeSink observes outcomes as they are produced.
// Implementations must be safe for concurrent use: every VU calls OnOutcome
// from its own goroutine.
type OutcomeSink interface {
	OnOutcome(Outcome)
}

// SinkFunc adapts a function to the OutcomeSink interface.
type SinkFunc func(Outcome)

// OnOutcome calls f(o).
func (f SinkFunc) OnOutcome(o Outcome) {
	f(o)
}

type multiSink []OutcomeSink

func (m multiSink) OnOutcome(o Outcome) {
	for _, s := range m {
		s.OnOutcome(o)
	}
}

// MultiSink fans an outcome out to every non-nil sink, in order.
func MultiSink(sinks ...OutcomeSink) OutcomeSink {
	filtered := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return filtered
}
