package runner

import (
	"sort"
	"sync/atomic"
	"time"
)

// CheckCount holds the pass/fail tally of one check.
type CheckCount struct {
	Passes int64 `json:"passes"`
	Fails  int64 `json:"fails"`
}

// Total returns the number of evaluations.
func (c CheckCount) Total() int64 {
	return c.Passes + c.Fails
}

// Rate returns the pass rate in [0, 1]. It is 0 when the check never ran.
func (c CheckCount) Rate() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.Passes) / float64(total)
}

// Summary aggregates the outcomes of a run.
type Summary struct {
	Total           int64                 `json:"total"`
	TransportErrors int64                 `json:"transport_errors"`
	Aborted         int64                 `json:"aborted"`
	Checks          map[string]CheckCount `json:"checks"`
	VirtualUsers    int                   `json:"virtual_users"`
	Iterations      []int64               `json:"iterations_per_vu,omitempty"`
	Duration        time.Duration         `json:"-"`
	DurationMs      float64               `json:"duration_ms"`
}

// CheckNames returns the check names in lexical order.
func (s Summary) CheckNames() []string {
	names := make([]string, 0, len(s.Checks))
	for name := range s.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChecksPassed reports whether no check failed during the run.
func (s Summary) ChecksPassed() bool {
	for _, c := range s.Checks {
		if c.Fails > 0 {
			return false
		}
	}
	return true
}

// CheckRate returns the pass rate across every evaluation of every check.
func (s Summary) CheckRate() float64 {
	var all CheckCount
	for _, c := range s.Checks {
		all.Passes += c.Passes
		all.Fails += c.Fails
	}
	return all.Rate()
}

type checkCounter struct {
	passes atomic.Int64
	fails  atomic.Int64
}

// Aggregator accumulates outcomes into counters. Record is safe for
// concurrent use and the final counts do not depend on the order in which
// outcomes arrive.
type Aggregator struct {
	total           atomic.Int64
	transportErrors atomic.Int64
	// checks is populated by NewAggregator and only read afterwards.
	checks map[string]*checkCounter
}

// NewAggregator returns an Aggregator tracking the named checks. Results for
// names not registered here are ignored by Record.
func NewAggregator(checkNames ...string) *Aggregator {
	a := &Aggregator{checks: make(map[string]*checkCounter, len(checkNames))}
	for _, name := range checkNames {
		if _, ok := a.checks[name]; !ok {
			a.checks[name] = &checkCounter{}
		}
	}
	return a
}

// Record adds one outcome to the counters.
func (a *Aggregator) Record(o Outcome) {
	a.total.Add(1)
	if o.Err != nil {
		a.transportErrors.Add(1)
	}
	for name, passed := range o.Checks {
		counter, ok := a.checks[name]
		if !ok {
			continue
		}
		if passed {
			counter.passes.Add(1)
		} else {
			counter.fails.Add(1)
		}
	}
}

// Snapshot returns the current counts.
func (a *Aggregator) Snapshot() Summary {
	s := Summary{
		Total:           a.total.Load(),
		TransportErrors: a.transportErrors.Load(),
		Checks:          make(map[string]CheckCount, len(a.checks)),
	}
	for name, c := range a.checks {
		s.Checks[name] = CheckCount{Passes: c.passes.Load(), Fails: c.fails.Load()}
	}
	return s
}
