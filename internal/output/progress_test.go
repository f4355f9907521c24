package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/checkfire/internal/metrics"
	"github.com/torosent/checkfire/internal/runner"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressReporterWritesLinesAndHistory(t *testing.T) {
	collector := metrics.NewCollector()
	collector.RecordRequest(5*time.Millisecond, 200, nil)
	collector.RecordRequest(7*time.Millisecond, 429, nil)

	summary := func() runner.Summary {
		return runner.Summary{Checks: map[string]runner.CheckCount{
			runner.CheckStatusIs200: {Passes: 1, Fails: 1},
		}}
	}

	var out syncBuffer
	p := NewProgressReporter(collector, summary, 10*time.Millisecond, &out)
	p.Start()
	p.Start()
	time.Sleep(60 * time.Millisecond)
	p.Stop()
	p.Stop()

	text := out.String()
	if !strings.Contains(text, "Requests: 2") || !strings.Contains(text, "Failures: 1") {
		t.Fatalf("progress output = %q", text)
	}
	if !strings.Contains(text, "Checks: 50.0%") {
		t.Fatalf("progress output missing check rate: %q", text)
	}
	if len(collector.History()) == 0 {
		t.Fatal("expected snapshots to be recorded on each tick")
	}
}

func TestProgressLineWithoutSummary(t *testing.T) {
	p := NewProgressReporter(metrics.NewCollector(), nil, 0, nil)
	line := p.line(3 * time.Second)
	if !strings.HasPrefix(line, "\rElapsed: 3s | Requests: 0") {
		t.Fatalf("line = %q", line)
	}
	if strings.Contains(line, "Checks") {
		t.Fatalf("line should omit checks without a summary func: %q", line)
	}
	p.ticker.Stop()
}
