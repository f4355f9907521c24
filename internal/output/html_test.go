package output_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/torosent/checkfire/internal/metrics"
	"github.com/torosent/checkfire/internal/output"
	"github.com/torosent/checkfire/internal/runner"
	"github.com/torosent/checkfire/internal/threshold"
)

func sampleReport() output.Report {
	return output.Report{
		RunID:       "01J9Z3K4M5N6P7Q8R9S0T1V2W3",
		Target:      "http://localhost:8080/api/v1/products?page=0&size=20",
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Stats: metrics.Stats{
			Total:           100,
			Successes:       90,
			Failures:        10,
			TransportErrors: 2,
			MinLatency:      10 * time.Millisecond,
			MaxLatency:      100 * time.Millisecond,
			MeanLatency:     50 * time.Millisecond,
			P50Latency:      45 * time.Millisecond,
			P90Latency:      80 * time.Millisecond,
			P95Latency:      90 * time.Millisecond,
			P99Latency:      95 * time.Millisecond,
			P95LatencyMs:    90,
			RequestsPerSec:  50.0,
			Duration:        2 * time.Second,
			DurationMs:      2000,
			StatusCodes:     map[string]int{"200": 90, "429": 8},
			Errors:          map[string]int{"Network error": 2},
		},
		Summary: runner.Summary{
			Total:           100,
			TransportErrors: 2,
			VirtualUsers:    5,
			Checks: map[string]runner.CheckCount{
				runner.CheckStatusIs200:          {Passes: 90, Fails: 10},
				runner.CheckRateLimitNotExceeded: {Passes: 90, Fails: 10},
			},
		},
	}
}

func TestGenerateHTMLReport(t *testing.T) {
	r := sampleReport()
	th, err := threshold.Parse("checks{status_is_200}:rate > 0.95")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	r.Thresholds = threshold.NewEvaluator([]threshold.Threshold{th}).Evaluate(r.Stats, r.Summary)

	history := []metrics.DataPoint{
		{Timestamp: time.Now(), TotalRequests: 50, CurrentRPS: 50, P50LatencyMs: 45, P95LatencyMs: 85, P99LatencyMs: 90},
		{Timestamp: time.Now().Add(time.Second), TotalRequests: 100, CurrentRPS: 50, P50LatencyMs: 44, P95LatencyMs: 88, P99LatencyMs: 94},
	}

	var buf bytes.Buffer
	if err := output.GenerateHTMLReport(&buf, r, history); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}

	html := buf.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		"checkfire Load Test Report",
		r.RunID,
		"status_is_200",
		"rate_limit_not_exceeded",
		"90.0%",
		"HTTP 429",
		"Network error",
		"Thresholds (0/1 Passed)",
		"✗ FAIL",
		"rps-chart",
		"latency-chart",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML report missing %q", want)
		}
	}
}

func TestGenerateHTMLReportWithoutHistory(t *testing.T) {
	r := sampleReport()
	r.Summary.Checks = nil
	r.Stats.StatusCodes = nil
	r.Stats.Errors = nil

	var buf bytes.Buffer
	if err := output.GenerateHTMLReport(&buf, r, nil); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	html := buf.String()
	for _, absent := range []string{"rps-chart", "Thresholds (", "<h2>Checks</h2>", "<h2>Responses</h2>"} {
		if strings.Contains(html, absent) {
			t.Errorf("HTML report should not contain %q", absent)
		}
	}
}

func TestGenerateHTMLReportEscapesTarget(t *testing.T) {
	r := sampleReport()
	r.Target = `http://example.com/"><script>alert(1)</script>`

	var buf bytes.Buffer
	if err := output.GenerateHTMLReport(&buf, r, nil); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	if strings.Contains(buf.String(), "<script>alert(1)</script>") {
		t.Fatal("target was not escaped")
	}
}
