package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/torosent/checkfire/internal/auth"
	"github.com/torosent/checkfire/internal/config"
	"github.com/torosent/checkfire/internal/dashboard"
	"github.com/torosent/checkfire/internal/httpclient"
	"github.com/torosent/checkfire/internal/logging"
	"github.com/torosent/checkfire/internal/metrics"
	"github.com/torosent/checkfire/internal/output"
	"github.com/torosent/checkfire/internal/runner"
	"github.com/torosent/checkfire/internal/threshold"
	"github.com/torosent/checkfire/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

var (
	errThresholdsFailed = errors.New("one or more thresholds failed")
	errChecksFailed     = errors.New("one or more checks failed")
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.Open(cfg.Log, logWriter(cfg, stderr))
	if err != nil {
		return err
	}
	defer logCloser.Close()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	provider, err := auth.FromConfig(cfg.Auth)
	if err != nil {
		return err
	}
	var authProvider httpclient.AuthProvider
	if provider != nil {
		defer provider.Close()
		authProvider = provider
	}

	builder, err := httpclient.NewRequestBuilder(cfg, authProvider)
	if err != nil {
		return err
	}

	runID := output.NewRunID()
	logger = logger.With("run_id", runID)

	collector := metrics.NewCollector()
	checks := runner.DefaultChecks()
	checkNames := make([]string, 0, len(checks))
	for _, c := range checks {
		checkNames = append(checkNames, c.Name)
	}

	requester := &httpRequester{
		client:  httpclient.NewClient(cfg.Timeout),
		builder: builder,
	}
	if cfg.Tracing.Enabled() {
		requester.tracer = tp.Tracer()
		requester.propagate = tp.ShouldPropagate()
	}

	r := runner.New(runner.Options{
		VirtualUsers:  cfg.VirtualUsers,
		Duration:      cfg.Duration,
		Delay:         cfg.Sleep,
		GracefulStop:  cfg.GracefulStop,
		RatePerSecond: cfg.Rate,
		Requester:     requester,
		Checks:        checks,
		Sink: runner.MultiSink(
			collectorSink{collector: collector},
			logging.NewRequestSink(logger, checkNames),
		),
	})

	runCtx, stop := context.WithCancel(logging.WithLogger(ctx, logger))
	defer stop()

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, r.Snapshot, dashboard.RunInfo{
			RunID:        runID,
			TargetURL:    builder.Target(),
			VirtualUsers: cfg.VirtualUsers,
			Duration:     cfg.Duration,
			Sleep:        cfg.Sleep,
			Rate:         cfg.Rate,
			Timeout:      cfg.Timeout,
			ConfigFile:   cfg.ConfigFile,
		}, stop)
		if err != nil {
			return err
		}
	}

	// The progress reporter also feeds the time series used by the HTML
	// report, so it runs silently when its line would corrupt the output.
	var progress *output.ProgressReporter
	if dash == nil {
		progressOut := stdout
		if cfg.JSONOutput {
			progressOut = io.Discard
		}
		progress = output.NewProgressReporter(collector, r.Snapshot, progressInterval, progressOut)
	}

	logger.Info("run started",
		"target", builder.Target(),
		"vus", cfg.VirtualUsers,
		"duration", cfg.Duration.String(),
		"sleep", cfg.Sleep.String(),
		"auth_token", auth.Redact(cfg.Auth.StaticToken),
	)

	collector.Start()
	if dash != nil {
		dash.Start()
	} else {
		progress.Start()
	}
	summary := r.Run(runCtx)
	if dash != nil {
		dash.Stop()
	} else {
		progress.Stop()
	}

	stats := collector.Stats(summary.Duration)
	results := threshold.NewEvaluator(thresholds).Evaluate(stats, summary)

	logger.Info("run finished",
		"requests", summary.Total,
		"transport_errors", summary.TransportErrors,
		"aborted", summary.Aborted,
		"duration_ms", summary.DurationMs,
		"checks_passed", summary.ChecksPassed(),
	)
	for _, res := range results {
		if !res.Pass {
			logger.Warn("threshold failed", "threshold", res.Threshold.Raw, "actual", res.Actual)
		}
	}

	report := output.Report{
		RunID:       runID,
		Target:      builder.Target(),
		GeneratedAt: time.Now(),
		Stats:       stats,
		Summary:     summary,
		Thresholds:  results,
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, report)
	}

	if err := writeArtifacts(cfg, report, collector.History(), logger); err != nil {
		return err
	}

	if !threshold.AllPassed(results) {
		return errThresholdsFailed
	}
	if cfg.FailOnCheck && !summary.ChecksPassed() {
		return errChecksFailed
	}
	return nil
}

// logWriter returns where logs go when no log file is configured. The
// dashboard owns the terminal, so its runs log nowhere unless --log-file is set.
func logWriter(cfg *config.Config, stderr io.Writer) io.Writer {
	if cfg.Dashboard && strings.TrimSpace(cfg.Log.File) == "" {
		return io.Discard
	}
	return stderr
}

func writeArtifacts(cfg *config.Config, report output.Report, history []metrics.DataPoint, logger *slog.Logger) error {
	if cfg.ReportFile != "" {
		if err := output.WriteReportFile(cfg.ReportFile, report); err != nil {
			return fmt.Errorf("write report file: %w", err)
		}
		logger.Info("report written", "path", cfg.ReportFile)
	}

	if cfg.HTMLOutput != "" {
		f, err := os.Create(cfg.HTMLOutput)
		if err != nil {
			return fmt.Errorf("failed to create HTML report file: %w", err)
		}
		defer f.Close()
		if err := output.GenerateHTMLReport(f, report, history); err != nil {
			return fmt.Errorf("failed to generate HTML report: %w", err)
		}
		logger.Info("html report written", "path", cfg.HTMLOutput)
	}
	return nil
}
