package main

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/checkfire/internal/httpclient"
	"github.com/torosent/checkfire/internal/logging"
	"github.com/torosent/checkfire/internal/runner"
	"github.com/torosent/checkfire/internal/tracing"
)

var errNoBuilder = errors.New("request builder is not configured")

// httpRequester implements runner.Requester for the listing endpoint.
type httpRequester struct {
	client    *http.Client
	builder   *httpclient.RequestBuilder
	tracer    trace.Tracer
	propagate bool
}

// Do issues one GET against the listing URL and returns the status code.
// The response body is drained and discarded. Failures are logged at debug
// level through the logger carried by ctx.
func (r *httpRequester) Do(ctx context.Context) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.builder == nil {
		return 0, errNoBuilder
	}

	vu, _ := runner.VUFromContext(ctx)
	iteration, _ := runner.IterationFromContext(ctx)
	logger := logging.FromContext(ctx)

	var span trace.Span
	if r.tracer != nil {
		ctx, span = tracing.StartRequestSpan(ctx, r.tracer, http.MethodGet, r.builder.Target(), vu, iteration)
	}

	req, err := r.builder.Build(ctx)
	if err != nil {
		logger.Debug("request build failed", "vu", vu, "iteration", iteration, "error", err)
		if span != nil {
			tracing.EndSpan(span, 0, err)
		}
		return 0, err
	}
	if span != nil && r.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		logger.Debug("request failed", "vu", vu, "iteration", iteration, "error", err)
		if span != nil {
			tracing.EndSpan(span, 0, err)
		}
		return 0, err
	}
	httpclient.Drain(resp)

	if span != nil {
		tracing.EndSpan(span, resp.StatusCode, nil)
	}
	return resp.StatusCode, nil
}
