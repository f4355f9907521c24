package metrics

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// maxHistory bounds the number of time-series points kept for reports.
const maxHistory = 3600

// Collector records per-request metrics in a thread-safe manner.
type Collector struct {
	mu              sync.Mutex
	hist            *hdrhistogram.Histogram
	interval        *hdrhistogram.Histogram
	successes       int64
	failures        int64
	transportErrors int64
	minLatency      time.Duration
	maxLatency      time.Duration
	sumLatency      time.Duration
	statusCodes     map[int]int64
	errorsByType    map[string]int64
	start           time.Time
	history         []DataPoint
	lastSnapshot    time.Time
	lastTotal       int64
	lastFailures    int64
}

// Stats represents aggregated metrics.
type Stats struct {
	Total           int64         `json:"total"`
	Successes       int64         `json:"successes"`
	Failures        int64         `json:"failures"`
	TransportErrors int64         `json:"transport_errors"`
	MinLatency      time.Duration `json:"-"`
	MaxLatency      time.Duration `json:"-"`
	MeanLatency     time.Duration `json:"-"`
	P50Latency      time.Duration `json:"-"`
	P90Latency      time.Duration `json:"-"`
	P95Latency      time.Duration `json:"-"`
	P99Latency      time.Duration `json:"-"`
	Duration        time.Duration `json:"-"`
	RequestsPerSec  float64       `json:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64        `json:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms"`
	P90LatencyMs  float64        `json:"p90_latency_ms"`
	P95LatencyMs  float64        `json:"p95_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms"`
	DurationMs    float64        `json:"duration_ms"`
	StatusCodes   map[string]int `json:"status_codes,omitempty"`
	Errors        map[string]int `json:"errors,omitempty"`
}

// DataPoint is one entry of the time series recorded by Snapshot.
type DataPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	TotalRequests int64     `json:"total_requests"`
	Failures      int64     `json:"failures"`
	CurrentRPS    float64   `json:"current_rps"`
	ErrorRate     float64   `json:"error_rate"`
	P50LatencyMs  float64   `json:"p50_latency_ms"`
	P95LatencyMs  float64   `json:"p95_latency_ms"`
	P99LatencyMs  float64   `json:"p99_latency_ms"`
}

func newHistogram() *hdrhistogram.Histogram {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return hdrhistogram.New(1, 60_000_000, 3)
}

func NewCollector() *Collector {
	now := time.Now()
	return &Collector{
		hist:         newHistogram(),
		interval:     newHistogram(),
		statusCodes:  make(map[int]int64),
		errorsByType: make(map[string]int64),
		start:        now,
		lastSnapshot: now,
	}
}

// Start marks the beginning of the measured run.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
	c.lastSnapshot = c.start
}

// RecordRequest records a single request's latency, status code and
// transport error. A request is failed when err is non-nil or the status is
// 400 or above.
func (c *Collector) RecordRequest(latency time.Duration, status int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
		_ = c.interval.RecordValue(us)
	}
	c.sumLatency += latency

	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	switch {
	case err != nil:
		c.failures++
		c.transportErrors++
		c.errorsByType[classifyError(err)]++
	case status >= 400:
		c.failures++
		c.statusCodes[status]++
	default:
		c.successes++
		c.statusCodes[status]++
	}
}

// classifyError maps a transport error to the label shown in reports.
func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return FriendlyErrorName("context.deadlineExceededError")
	}
	if errors.Is(err, context.Canceled) {
		return "Request canceled"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	return FriendlyErrorName(typeName(err))
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Total:           total,
		Successes:       c.successes,
		Failures:        c.failures,
		TransportErrors: c.transportErrors,
		MinLatency:      c.minLatency,
		MaxLatency:      c.maxLatency,
	}

	if total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / total)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = quantile(c.hist, 50)
		stats.P90Latency = quantile(c.hist, 90)
		stats.P95Latency = quantile(c.hist, 95)
		stats.P99Latency = quantile(c.hist, 99)
	}

	stats.MinLatencyMs = toMillis(stats.MinLatency)
	stats.MaxLatencyMs = toMillis(stats.MaxLatency)
	stats.MeanLatencyMs = toMillis(stats.MeanLatency)
	stats.P50LatencyMs = toMillis(stats.P50Latency)
	stats.P90LatencyMs = toMillis(stats.P90Latency)
	stats.P95LatencyMs = toMillis(stats.P95Latency)
	stats.P99LatencyMs = toMillis(stats.P99Latency)

	stats.Duration = elapsed
	stats.DurationMs = toMillis(elapsed)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.statusCodes) > 0 {
		stats.StatusCodes = make(map[string]int, len(c.statusCodes))
		for code, n := range c.statusCodes {
			stats.StatusCodes[strconv.Itoa(code)] = int(n)
		}
	}
	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}

	return stats
}

// Snapshot appends a time-series point covering the requests recorded since
// the previous snapshot and returns it.
func (c *Collector) Snapshot() DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	total := c.successes + c.failures
	point := DataPoint{
		Timestamp:     now,
		TotalRequests: total,
		Failures:      c.failures,
	}

	window := now.Sub(c.lastSnapshot)
	delta := total - c.lastTotal
	if window > 0 {
		point.CurrentRPS = float64(delta) / window.Seconds()
	}
	if delta > 0 {
		point.ErrorRate = float64(c.failures-c.lastFailures) / float64(delta)
	}
	if c.interval.TotalCount() > 0 {
		point.P50LatencyMs = toMillis(quantile(c.interval, 50))
		point.P95LatencyMs = toMillis(quantile(c.interval, 95))
		point.P99LatencyMs = toMillis(quantile(c.interval, 99))
	}
	c.interval.Reset()

	c.lastSnapshot = now
	c.lastTotal = total
	c.lastFailures = c.failures

	c.history = append(c.history, point)
	if len(c.history) > maxHistory {
		c.history = c.history[len(c.history)-maxHistory:]
	}
	return point
}

// History returns a copy of the recorded time series.
func (c *Collector) History() []DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]DataPoint(nil), c.history...)
}

// GetErrorBreakdown returns a map of error types to their counts.
func (c *Collector) GetErrorBreakdown() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]int)
	for k, v := range c.errorsByType {
		result[k] = int(v)
	}
	return result
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
