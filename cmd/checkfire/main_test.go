package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/checkfire/internal/config"
	"github.com/torosent/checkfire/internal/logging"
	"github.com/torosent/checkfire/internal/runner"
)

func baseArgs(target string) []string {
	return []string{
		"--target", target,
		"--vus", "2",
		"--duration", "300ms",
		"--sleep", "20ms",
		"--timeout", "2s",
		"--log-level", "error",
	}
}

type jsonResult struct {
	RunID   string `json:"run_id"`
	Target  string `json:"target"`
	Summary struct {
		Total           int64 `json:"total"`
		TransportErrors int64 `json:"transport_errors"`
	} `json:"summary"`
	Stats struct {
		Total       int64          `json:"total"`
		Failures    int64          `json:"failures"`
		StatusCodes map[string]int `json:"status_codes"`
	} `json:"stats"`
	Checks []struct {
		Name   string `json:"name"`
		Passes int64  `json:"passes"`
		Fails  int64  `json:"fails"`
	} `json:"checks"`
}

func runJSON(t *testing.T, args []string) (jsonResult, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append(args, "--json-output"), &stdout, &stderr)
	var res jsonResult
	if decodeErr := json.Unmarshal(stdout.Bytes(), &res); decodeErr != nil {
		t.Fatalf("decode JSON report: %v\nstdout: %s\nstderr: %s", decodeErr, stdout.String(), stderr.String())
	}
	return res, err
}

func checkCounts(res jsonResult, name string) (int64, int64, bool) {
	for _, c := range res.Checks {
		if c.Name == name {
			return c.Passes, c.Fails, true
		}
	}
	return 0, 0, false
}

func TestRunAllChecksPass(t *testing.T) {
	var gotQuery atomic.Value
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.RawQuery)
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	args := append(baseArgs(srv.URL+"/api/v1/products"), "--auth-token", "secret", "--page-size", "50")
	res, err := runJSON(t, args)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if res.Summary.Total == 0 {
		t.Fatal("expected at least one request")
	}
	if res.RunID == "" {
		t.Error("expected run id in report")
	}
	if res.Stats.StatusCodes["200"] != int(res.Stats.Total) {
		t.Errorf("status codes = %v, total = %d", res.Stats.StatusCodes, res.Stats.Total)
	}
	for _, name := range []string{runner.CheckStatusIs200, runner.CheckRateLimitNotExceeded} {
		passes, fails, ok := checkCounts(res, name)
		if !ok {
			t.Fatalf("check %s missing from report", name)
		}
		if fails != 0 || passes != res.Summary.Total {
			t.Errorf("check %s = %d passes / %d fails, want %d / 0", name, passes, fails, res.Summary.Total)
		}
	}
	if q, _ := gotQuery.Load().(string); q != "page=0&size=50" {
		t.Errorf("query = %q, want page=0&size=50", q)
	}
	if a, _ := gotAuth.Load().(string); a != "Bearer secret" {
		t.Errorf("Authorization = %q", a)
	}
}

func TestRunRateLimitedFailsBothChecks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	res, err := runJSON(t, baseArgs(srv.URL))
	if err != nil {
		t.Fatalf("checks alone must not fail the run: %v", err)
	}
	for _, name := range []string{runner.CheckStatusIs200, runner.CheckRateLimitNotExceeded} {
		passes, fails, _ := checkCounts(res, name)
		if passes != 0 || fails != res.Summary.Total {
			t.Errorf("check %s = %d / %d, want 0 / %d", name, passes, fails, res.Summary.Total)
		}
	}
	if res.Stats.Failures != res.Stats.Total {
		t.Errorf("failures = %d, want %d", res.Stats.Failures, res.Stats.Total)
	}
}

func TestRunUnexpectedStatusFailsOnlyStatusCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	res, err := runJSON(t, baseArgs(srv.URL))
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, fails, _ := checkCounts(res, runner.CheckStatusIs200); fails != res.Summary.Total {
		t.Errorf("status_is_200 fails = %d, want %d", fails, res.Summary.Total)
	}
	if passes, _, _ := checkCounts(res, runner.CheckRateLimitNotExceeded); passes != res.Summary.Total {
		t.Errorf("rate_limit_not_exceeded passes = %d, want %d", passes, res.Summary.Total)
	}
}

func TestRunTransportErrorsDoNotAbort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	res, err := runJSON(t, baseArgs("http://"+addr+"/products"))
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if res.Summary.Total < 2 {
		t.Fatalf("expected VUs to keep iterating after errors, total = %d", res.Summary.Total)
	}
	if res.Summary.TransportErrors != res.Summary.Total {
		t.Errorf("transport errors = %d, want %d", res.Summary.TransportErrors, res.Summary.Total)
	}
	if passes, _, _ := checkCounts(res, runner.CheckRateLimitNotExceeded); passes != 0 {
		t.Errorf("rate_limit_not_exceeded passes = %d, want 0", passes)
	}
}

func TestRunExitCodes(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ok.Close()
	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer limited.Close()

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"passing threshold", append(baseArgs(ok.URL), "--threshold", "checks:rate>0.99"), nil},
		{"failing threshold", append(baseArgs(limited.URL), "--threshold", "checks{status_is_200}:rate>0.99"), errThresholdsFailed},
		{"failed checks ignored by default", baseArgs(limited.URL), nil},
		{"fail on check", append(baseArgs(limited.URL), "--fail-on-check"), errChecksFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, &stdout, &stderr)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing target", []string{"--vus", "2"}},
		{"zero vus", []string{"--target", "http://localhost", "--vus", "0"}},
		{"bad threshold", []string{"--target", "http://localhost", "--threshold", "bogus"}},
		{"unknown flag", []string{"--nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(context.Background(), tt.args, &stdout, &stderr); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"--help"}, &stdout, &stderr); err != nil {
		t.Fatalf("help should not fail: %v", err)
	}
}

func TestRunHumanReportAndArtifacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	dir := t.TempDir()
	reportPath := filepath.Join(dir, "report.json")
	htmlPath := filepath.Join(dir, "report.html")
	args := append(baseArgs(srv.URL), "--report-file", reportPath, "--html-output", htmlPath)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"✓ status_is_200", "✓ rate_limit_not_exceeded", "checks"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report file: %v", err)
	}
	if !json.Valid(data) {
		t.Errorf("report file is not valid JSON: %s", data)
	}
	html, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("read html report: %v", err)
	}
	if !strings.Contains(string(html), "status_is_200") {
		t.Error("html report missing check rows")
	}
}

func TestRunLogsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	args := []string{
		"--target", srv.URL,
		"--vus", "1",
		"--duration", "100ms",
		"--sleep", "10ms",
		"--log-format", "json",
		"--json-output",
	}
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var sawRequest, sawStart bool
	for _, line := range strings.Split(strings.TrimSpace(stderr.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		switch rec["msg"] {
		case "request":
			sawRequest = true
			if rec["status_is_200"] != true {
				t.Errorf("request record = %v", rec)
			}
			if _, ok := rec["run_id"]; !ok {
				t.Errorf("request record missing run_id: %v", rec)
			}
		case "run started":
			sawStart = true
		}
	}
	if !sawRequest || !sawStart {
		t.Errorf("missing log records (request=%v start=%v):\n%s", sawRequest, sawStart, stderr.String())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	args := []string{"--target", srv.URL, "--vus", "2", "--duration", "1m", "--json-output", "--log-level", "error"}
	var stdout, stderr bytes.Buffer
	start := time.Now()
	if err := run(ctx, args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("run did not stop on cancel, took %s", elapsed)
	}
}

func TestLogWriter(t *testing.T) {
	var stderr bytes.Buffer
	tests := []struct {
		name      string
		dashboard bool
		logFile   string
		want      io.Writer
	}{
		{"plain run logs to stderr", false, "", &stderr},
		{"dashboard without log file discards", true, "", io.Discard},
		{"dashboard with log file keeps fallback", true, "run.log", &stderr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Dashboard = tt.dashboard
			cfg.Log.File = tt.logFile
			if got := logWriter(cfg, &stderr); got != tt.want {
				t.Errorf("logWriter() = %T, want %T", got, tt.want)
			}
		})
	}
}

func TestDashboardLoggerKeepsTerminalClean(t *testing.T) {
	cfg := config.Default()
	cfg.Dashboard = true

	var stderr bytes.Buffer
	logger, closer, err := logging.Open(cfg.Log, logWriter(cfg, &stderr))
	if err != nil {
		t.Fatalf("logging.Open() error = %v", err)
	}
	defer closer.Close()

	logging.NewRequestSink(logger, []string{runner.CheckStatusIs200}).OnOutcome(runner.Outcome{StatusCode: 200})
	logger.Info("run started")
	if stderr.Len() != 0 {
		t.Fatalf("dashboard run wrote logs to the terminal: %q", stderr.String())
	}
}
