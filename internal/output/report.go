package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/checkfire/internal/metrics"
	"github.com/torosent/checkfire/internal/runner"
	"github.com/torosent/checkfire/internal/threshold"
)

// Report bundles everything printed at the end of a run.
type Report struct {
	RunID       string
	Target      string
	GeneratedAt time.Time
	Stats       metrics.Stats
	Summary     runner.Summary
	Thresholds  []threshold.Result
}

// NewRunID returns a lexically sortable identifier for a run.
func NewRunID() string {
	return ulid.Make().String()
}

// ThresholdSummary is the serializable form of a threshold evaluation.
type ThresholdSummary struct {
	Total   int                   `json:"total"`
	Passed  int                   `json:"passed"`
	Failed  int                   `json:"failed"`
	Results []ThresholdResultJSON `json:"results"`
}

type ThresholdResultJSON struct {
	Threshold string  `json:"threshold"`
	Metric    string  `json:"metric"`
	Check     string  `json:"check,omitempty"`
	Aggregate string  `json:"aggregate"`
	Operator  string  `json:"operator"`
	Expected  float64 `json:"expected"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// CheckJSON is one row of the check section of the JSON report.
type CheckJSON struct {
	Name   string  `json:"name"`
	Passes int64   `json:"passes"`
	Fails  int64   `json:"fails"`
	Rate   float64 `json:"rate"`
}

type jsonReport struct {
	RunID       string            `json:"run_id"`
	Target      string            `json:"target,omitempty"`
	GeneratedAt string            `json:"generated_at"`
	Stats       metrics.Stats     `json:"stats"`
	Summary     runner.Summary    `json:"summary"`
	Checks      []CheckJSON       `json:"checks"`
	ChecksRate  float64           `json:"checks_rate"`
	Thresholds  *ThresholdSummary `json:"thresholds,omitempty"`
}

func summarizeThresholds(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Check:     tr.Threshold.Tag,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

func checkRows(summary runner.Summary) []CheckJSON {
	names := summary.CheckNames()
	rows := make([]CheckJSON, 0, len(names))
	for _, name := range names {
		c := summary.Checks[name]
		rows = append(rows, CheckJSON{Name: name, Passes: c.Passes, Fails: c.Fails, Rate: c.Rate()})
	}
	return rows
}

func (r Report) toJSON() jsonReport {
	generated := r.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	return jsonReport{
		RunID:       r.RunID,
		Target:      r.Target,
		GeneratedAt: generated.UTC().Format(time.RFC3339),
		Stats:       r.Stats,
		Summary:     r.Summary,
		Checks:      checkRows(r.Summary),
		ChecksRate:  r.Summary.CheckRate(),
		Thresholds:  summarizeThresholds(r.Thresholds),
	}
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	stats := r.Stats
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	if r.RunID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", r.RunID)
	}
	if r.Target != "" {
		fmt.Fprintf(w, "Target:            %s\n", r.Target)
	}
	fmt.Fprintf(w, "Virtual Users:     %d\n", r.Summary.VirtualUsers)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration.Round(time.Millisecond))

	if len(r.Summary.Checks) > 0 {
		fmt.Fprintln(w, "\nChecks:")
		writeChecks(w, r.Summary)
	}

	fmt.Fprintln(w, "\nRequests:")
	fmt.Fprintf(w, "  Total:           %d\n", stats.Total)
	fmt.Fprintf(w, "  Successful:      %d\n", stats.Successes)
	fmt.Fprintf(w, "  Failed:          %d\n", stats.Failures)
	if stats.TransportErrors > 0 {
		fmt.Fprintf(w, "  Transport errors: %d\n", stats.TransportErrors)
	}
	if r.Summary.Aborted > 0 {
		fmt.Fprintf(w, "  Aborted at stop: %d\n", r.Summary.Aborted)
	}
	fmt.Fprintf(w, "  Requests/sec:    %.2f\n", stats.RequestsPerSec)

	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		writeStatusBuckets(w, stats.StatusCodes, "  ")
	}
	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		writeStatusBuckets(w, stats.Errors, "  ")
	}

	if len(r.Thresholds) > 0 {
		summary := summarizeThresholds(r.Thresholds)
		fmt.Fprintf(w, "\nThresholds (%d/%d passed):\n", summary.Passed, summary.Total)
		for _, res := range r.Thresholds {
			fmt.Fprintf(w, "  %s\n", res.Message)
		}
	}
}

// writeChecks prints one line per check in the form used by k6:
//
//	✓ status_is_200
//	✗ rate_limit_not_exceeded
//	 ↳  97% : ✓ 970 / ✗ 30
func writeChecks(w io.Writer, summary runner.Summary) {
	for _, name := range summary.CheckNames() {
		c := summary.Checks[name]
		mark := "✓"
		if c.Fails > 0 {
			mark = "✗"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, name)
		if c.Fails > 0 {
			fmt.Fprintf(w, "   ↳ %3.0f%% : ✓ %d / ✗ %d\n", c.Rate()*100, c.Passes, c.Fails)
		}
	}
	var passes, fails int64
	for _, c := range summary.Checks {
		passes += c.Passes
		fails += c.Fails
	}
	fmt.Fprintf(w, "  %s: %.2f%% ✓ %d ✗ %d\n", padRight("checks", 24, '.'), summary.CheckRate()*100, passes, fails)
}

func padRight(s string, width int, fill rune) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(string(fill), width-len(s))
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.toJSON())
}

func writeStatusBuckets(w io.Writer, buckets map[string]int, indent string) {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s: %d\n", indent, row.Code, row.Count)
	}
}
