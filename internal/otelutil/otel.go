// helper functions for dealing with OTel
package otelutil

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the name of the OTel ["go.opentelemetry.io/otel/trace".Tracer]
// used in this repo.
//
// Use one instrumentation library provider to simplify code.
const InstrumentationName = "github.com/helsaawy/threadtrace"

// InitializeProvider sets the global OTel TraceProvider.
//
// If no exporter is provided, no spans will be generated.
func InitializeProvider(opts ...tracesdk.TracerProviderOption) (func(context.Context) error, error) {
	tracerProvider := tracesdk.NewTracerProvider(opts...)
	otel.SetTracerProvider(tracerProvider)

	f := func(ctx context.Context) error {
		err := tracerProvider.ForceFlush(ctx)
		// shutdown regardless of flush result
		if err2 := tracerProvider.Shutdown(ctx); err == nil && err2 != nil {
			return err2
		}
		return err
	}
	return f, nil
}

func SetTraceContextPropagation() {
	otel.SetTextMapPropagator(propagation.TraceContext{})
}

// StartSpan wraps ["go.opentelemetry.io/otel/trace".Tracer.Start].
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer().Start(ctx, name, opts...)
}

func SetSpanStatusAndEnd(span trace.Span, err error, opts ...trace.SpanEndOption) {
	SetSpanStatus(span, err)
	span.End(opts...)
}

// SetSpanStatus sets the span status and records an error if err != nil.
// nop otherwise.
func SetSpanStatus(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func tracer() trace.Tracer {
	// use dedicated Tracer in case imported code modifies the global default
	return otel.Tracer(
		InstrumentationName,
		trace.WithSchemaURL(semconv.SchemaURL),
	)
}
