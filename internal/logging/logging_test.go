package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/checkfire/internal/config"
	"github.com/torosent/checkfire/internal/runner"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseLevelMatchesConfigValidation(t *testing.T) {
	for _, level := range []string{"", "debug", "INFO", "warn", "warning", " Warning ", "error", "trace", "loud"} {
		cfg := config.Default()
		cfg.TargetURL = "http://localhost/api/v1/products"
		cfg.Log.Level = level

		_, parseErr := ParseLevel(level)
		validateErr := cfg.Validate()
		if (parseErr == nil) != (validateErr == nil) {
			t.Errorf("level %q: ParseLevel error = %v, Validate error = %v", level, parseErr, validateErr)
		}
	}
}

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogFormatJSON, "info")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("run started", "vus", 5)

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("json handler output not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "run started" || record["vus"] != float64(5) {
		t.Fatalf("record = %v", record)
	}

	buf.Reset()
	logger, err = New(&buf, config.LogFormatText, "warn")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept", "k", "v")
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "msg=kept k=v") {
		t.Fatalf("text output = %q", out)
	}

	if _, err := New(&buf, "xml", "info"); err == nil {
		t.Fatal("New() with unknown format: expected error")
	}
	if _, err := New(&buf, config.LogFormatText, "loud"); err == nil {
		t.Fatal("New() with unknown level: expected error")
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkfire.log")
	logger, closer, err := Open(config.LogConfig{Format: config.LogFormatText, Level: "info", File: path}, os.Stderr)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	logger.Info("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Fatalf("log file = %q", data)
	}
}

func TestOpenFallback(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := Open(config.LogConfig{}, &buf)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer closer.Close()
	logger.Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("fallback output = %q", buf.String())
	}
}

func TestContextLogger(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() returned nil")
	}
	var buf bytes.Buffer
	logger, _ := New(&buf, config.LogFormatText, "info")
	FromContext(WithLogger(context.Background(), logger)).Info("ctx")
	if !strings.Contains(buf.String(), "ctx") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestRequestSink(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogFormatJSON, "info")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sink := NewRequestSink(logger, []string{runner.CheckStatusIs200, runner.CheckRateLimitNotExceeded})

	sink.OnOutcome(runner.Outcome{
		VU:         2,
		Iteration:  9,
		StatusCode: 429,
		Duration:   12500 * time.Microsecond,
		Checks: map[string]bool{
			runner.CheckStatusIs200:          false,
			runner.CheckRateLimitNotExceeded: false,
		},
	})
	sink.OnOutcome(runner.Outcome{
		VU:       1,
		Err:      errors.New("connection refused"),
		Duration: time.Millisecond,
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}

	var first map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]interface{}{
		"msg":                     "request",
		"level":                   "INFO",
		"vu":                      float64(2),
		"iteration":               float64(9),
		"status":                  float64(429),
		"duration_ms":             12.5,
		"status_is_200":           false,
		"rate_limit_not_exceeded": false,
	}
	for k, v := range want {
		if first[k] != v {
			t.Errorf("%s = %v, want %v", k, first[k], v)
		}
	}
	if _, ok := first["error"]; ok {
		t.Error("error attribute set for a response outcome")
	}

	var second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if second["level"] != "WARN" || second["error"] != "connection refused" || second["status"] != float64(0) {
		t.Errorf("transport error record = %v", second)
	}
}

func TestRequestSinkRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(&buf, config.LogFormatText, "error")
	NewRequestSink(logger, nil).OnOutcome(runner.Outcome{StatusCode: 200})
	if buf.Len() != 0 {
		t.Fatalf("expected no output at error level, got %q", buf.String())
	}
}
