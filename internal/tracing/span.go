package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys set on request spans.
const (
	AttrMethod     = attribute.Key("http.request.method")
	AttrURL        = attribute.Key("url.full")
	AttrStatusCode = attribute.Key("http.response.status_code")
	AttrVU         = attribute.Key("checkfire.vu")
	AttrIteration  = attribute.Key("checkfire.iteration")
)

// StartRequestSpan starts a client span for one listing request of a virtual user.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, method, url string, vu int, iteration int64) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, method,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		AttrMethod.String(method),
		AttrURL.String(url),
		AttrVU.Int(vu),
		AttrIteration.Int64(iteration),
	)
	return ctx, span
}

// EndSpan finishes a request span. A transport error or a status of 400 or
// above marks the span as failed.
func EndSpan(span trace.Span, status int, err error) {
	if status > 0 {
		span.SetAttributes(AttrStatusCode.Int(status))
	}
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case status >= 400:
		span.SetStatus(codes.Error, http.StatusText(status))
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
