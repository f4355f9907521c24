package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/checkfire/internal/metrics"
	"github.com/torosent/checkfire/internal/runner"
)

// SummaryFunc returns the live check summary of a run.
type SummaryFunc func() runner.Summary

// ProgressReporter displays real-time progress updates and records one
// time-series point per tick.
type ProgressReporter struct {
	collector *metrics.Collector
	summary   SummaryFunc
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
// summary may be nil.
func NewProgressReporter(collector *metrics.Collector, summary SummaryFunc, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		collector: collector,
		summary:   summary,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and terminates the progress line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			p.collector.Snapshot()
			fmt.Fprint(p.writer, p.line(time.Since(p.start)))
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) line(elapsed time.Duration) string {
	stats := p.collector.Stats(elapsed)
	line := fmt.Sprintf("\rElapsed: %s | Requests: %d | Failures: %d | RPS: %.1f | P95: %.1fms",
		elapsed.Round(time.Second), stats.Total, stats.Failures, stats.RequestsPerSec, stats.P95LatencyMs)
	if p.summary != nil {
		if s := p.summary(); len(s.Checks) > 0 {
			line += fmt.Sprintf(" | Checks: %.1f%%", s.CheckRate()*100)
		}
	}
	return line
}
