// Package dashboard renders a live terminal view of a running load test.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/checkfire/internal/metrics"
	"github.com/torosent/checkfire/internal/runner"
)

const historySize = 100

// RunInfo holds load test parameters for display.
type RunInfo struct {
	RunID        string
	TargetURL    string        // Full listing URL including page and size
	VirtualUsers int           // Number of concurrent virtual users
	Duration     time.Duration // Test duration
	Sleep        time.Duration // Pause between iterations
	Rate         int           // Global iteration cap per second (0 = unlimited)
	Timeout      time.Duration // Request timeout
	ConfigFile   string        // Path to config file if used
}

// SummaryFunc returns the live check summary of the run.
type SummaryFunc func() runner.Summary

// Dashboard renders a live terminal UI for load test metrics.
type Dashboard struct {
	collector    *metrics.Collector
	summary      SummaryFunc
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid           *ui.Grid
	summaryPara    *widgets.Paragraph
	elapsedGauge   *widgets.Gauge
	metricsPara    *widgets.Paragraph
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	checkList      *widgets.List
	statusList     *widgets.List
	latencyHistory []float64
	startTime      time.Time
	testDuration   time.Duration
	info           RunInfo
}

// New creates a new Dashboard. shutdownFunc is invoked when the user presses
// q or Ctrl-C.
func New(collector *metrics.Collector, summary SummaryFunc, info RunInfo, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := newDashboard(collector, summary, info, shutdownFunc)
	d.setupGrid()
	return d, nil
}

func newDashboard(collector *metrics.Collector, summary SummaryFunc, info RunInfo, shutdownFunc func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:      collector,
		summary:        summary,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, historySize),
		startTime:      time.Now(),
		info:           info,
	}
	d.initWidgets()
	return d
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Test Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.elapsedGauge = widgets.NewGauge()
	d.elapsedGauge.Title = "Elapsed"
	d.elapsedGauge.Percent = 0
	d.elapsedGauge.BarColor = ui.ColorBlue
	d.elapsedGauge.BorderStyle.Fg = ui.ColorCyan
	d.elapsedGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Requests"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan

	sparkline := widgets.NewSparkline()
	sparkline.Title = "P95 latency per tick (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Real-time Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP95: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.checkList = widgets.NewList()
	d.checkList.Title = "Checks"
	d.checkList.Rows = []string{"Awaiting data"}
	d.checkList.BorderStyle.Fg = ui.ColorCyan

	d.statusList = widgets.NewList()
	d.statusList.Title = "Status Codes"
	d.statusList.Rows = []string{"Awaiting data"}
	d.statusList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.statusList.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.22,
			ui.NewCol(0.5, d.elapsedGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.32,
			ui.NewCol(0.5, d.checkList),
			ui.NewCol(0.5, d.statusList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and cleans up.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	d.testDuration = time.Since(d.startTime)
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// GetFinalStats returns the final statistics after the dashboard has stopped.
func (d *Dashboard) GetFinalStats() metrics.Stats {
	return d.collector.Stats(d.testDuration)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the runner has drained.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the collector and the check summary.
func (d *Dashboard) update() {
	elapsed := time.Since(d.startTime)
	point := d.collector.Snapshot()
	stats := d.collector.Stats(elapsed)
	var summary runner.Summary
	if d.summary != nil {
		summary = d.summary()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply(stats, summary, point, elapsed)
}

// apply writes one refresh worth of data into the widgets.
func (d *Dashboard) apply(stats metrics.Stats, summary runner.Summary, point metrics.DataPoint, elapsed time.Duration) {
	if point.TotalRequests > 0 {
		d.latencyHistory = append(d.latencyHistory, point.P95LatencyMs)
		if len(d.latencyHistory) > historySize {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Real-time Latency | P95: %.2fms | Min: %.2fms | Max: %.2fms",
			point.P95LatencyMs,
			stats.MinLatencyMs,
			stats.MaxLatencyMs,
		)
	}

	d.elapsedGauge.Percent = elapsedPercent(elapsed, d.info.Duration)
	d.elapsedGauge.Label = fmt.Sprintf("%s / %s", elapsed.Round(time.Second), d.info.Duration)

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s | Requests: %d | Checks: %.1f%%",
		d.info.TargetURL,
		d.formatRunParams(),
		elapsed.Round(time.Second),
		stats.Total,
		summary.CheckRate()*100,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Total Requests:    %d\nSuccessful:        %d\nFailed:            %d\nTransport Errors:  %d\nCurrent RPS:       %.2f\nAverage RPS:       %.2f",
		stats.Total,
		stats.Successes,
		stats.Failures,
		stats.TransportErrors,
		point.CurrentRPS,
		stats.RequestsPerSec,
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP95:  %.2fms\nP99:  %.2fms",
		stats.MinLatencyMs,
		stats.MeanLatencyMs,
		stats.P50LatencyMs,
		stats.P95LatencyMs,
		stats.P99LatencyMs,
	)

	d.checkList.Rows = formatCheckRows(summary)
	d.statusList.Rows = formatStatusListRows(stats)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func elapsedPercent(elapsed, total time.Duration) int {
	if total <= 0 {
		return 0
	}
	pct := int(elapsed * 100 / total)
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

func formatCheckRows(summary runner.Summary) []string {
	names := summary.CheckNames()
	if len(names) == 0 {
		return []string{"Awaiting data"}
	}
	rows := make([]string, 0, len(names))
	for _, name := range names {
		c := summary.Checks[name]
		color := "green"
		mark := "✓"
		if c.Fails > 0 {
			color = "red"
			mark = "✗"
		}
		rows = append(rows, fmt.Sprintf("[%s %s](fg:%s) %5.1f%% ✓ %d ✗ %d", mark, name, color, c.Rate()*100, c.Passes, c.Fails))
	}
	return rows
}

func formatStatusListRows(stats metrics.Stats) []string {
	rows := metrics.FlattenStatusBuckets(stats.StatusCodes)
	errs := metrics.FlattenStatusBuckets(stats.Errors)
	if len(rows) == 0 && len(errs) == 0 {
		return []string{"Awaiting data"}
	}
	formatted := make([]string, 0, len(rows)+len(errs))
	for _, row := range rows {
		color := "green"
		if row.Code >= "400" {
			color = "red"
		}
		formatted = append(formatted, fmt.Sprintf("[HTTP %s](fg:%s) %d", row.Code, color, row.Count))
	}
	for _, row := range errs {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) %d", row.Code, row.Count))
	}
	if len(formatted) > 10 {
		formatted = formatted[:10]
	}
	return formatted
}

// formatRunParams formats the run configuration for display.
func (d *Dashboard) formatRunParams() string {
	var parts []string

	if d.info.VirtualUsers > 0 {
		parts = append(parts, fmt.Sprintf("VUs: %d", d.info.VirtualUsers))
	}

	if d.info.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", d.info.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}

	if d.info.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", d.info.Duration))
	}

	parts = append(parts, fmt.Sprintf("Sleep: %s", d.info.Sleep))

	if d.info.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", d.info.Timeout))
	}

	if d.info.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.info.ConfigFile))
	}

	if d.info.RunID != "" {
		parts = append(parts, fmt.Sprintf("Run: %s", d.info.RunID))
	}

	return strings.Join(parts, " | ")
}
