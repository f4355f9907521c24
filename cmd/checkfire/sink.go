package main

import (
	"github.com/torosent/checkfire/internal/metrics"
	"github.com/torosent/checkfire/internal/runner"
)

// collectorSink feeds request outcomes into the metrics collector.
type collectorSink struct {
	collector *metrics.Collector
}

func (s collectorSink) OnOutcome(o runner.Outcome) {
	s.collector.RecordRequest(o.Duration, o.StatusCode, o.Err)
}
