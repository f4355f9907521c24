package logging

import (
	"context"
	"log/slog"

	"github.com/torosent/checkfire/internal/runner"
)

// RequestSink logs one "request" record per outcome.
type RequestSink struct {
	logger *slog.Logger
	names  []string
}

// NewRequestSink logs outcomes at info level, or warn for transport errors,
// including the result of every named check.
func NewRequestSink(logger *slog.Logger, checkNames []string) *RequestSink {
	if logger == nil {
		logger = Discard()
	}
	return &RequestSink{logger: logger, names: append([]string(nil), checkNames...)}
}

// OnOutcome implements runner.OutcomeSink.
func (s *RequestSink) OnOutcome(o runner.Outcome) {
	ctx := context.Background()
	level := slog.LevelInfo
	if o.Err != nil {
		level = slog.LevelWarn
	}
	if !s.logger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, 5+len(s.names))
	attrs = append(attrs,
		slog.Int("vu", o.VU),
		slog.Int64("iteration", o.Iteration),
		slog.Int("status", o.StatusCode),
		slog.Float64("duration_ms", o.DurationMs()),
	)
	for _, name := range s.names {
		attrs = append(attrs, slog.Bool(name, o.Passed(name)))
	}
	if o.Err != nil {
		attrs = append(attrs, slog.String("error", o.Err.Error()))
	}
	s.logger.LogAttrs(ctx, level, "request", attrs...)
}
