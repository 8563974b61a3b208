package oracle

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies this instrumentation scope in exported spans.
const tracerName = "marquee/oracle"

// tracingOracle adds OpenTelemetry spans around oracle requests, recording
// the model, prompt size, and outcome for distributed tracing.
type tracingOracle struct {
	next   CoreOracle
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that wraps each request in an
// OpenTelemetry span. Spans propagate through the context, so pipeline
// traces show every oracle round trip beneath the batch that caused it.
func TracingMiddleware() Middleware {
	return func(next CoreOracle) CoreOracle {
		return &tracingOracle{
			next:   next,
			tracer: otel.Tracer(tracerName),
		}
	}
}

// DoRequest executes the request inside a span, recording errors and the
// response size.
func (t *tracingOracle) DoRequest(ctx context.Context, prompt string) (string, error) {
	ctx, span := t.tracer.Start(ctx, "oracle.DoRequest",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("oracle.model", t.next.GetModel()),
			attribute.Int("oracle.prompt_bytes", len(prompt)),
		),
	)
	defer span.End()

	response, err := t.next.DoRequest(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response, err
	}

	span.SetAttributes(attribute.Int("oracle.response_bytes", len(response)))
	span.SetStatus(codes.Ok, "")
	return response, nil
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracingOracle) GetModel() string { return t.next.GetModel() }
