package jsonwriter

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Span is the serialized form of a ["go.opentelemetry.io/otel/sdk/trace".ReadOnlySpan].
//
// [stdouttrace.Exporter] serializes [tracetest.SpanStub] directly, but that
// pulls in private fields and types that do not round-trip through JSON;
// keep a flat representation instead.
//
// stdouttrace: https://github.com/open-telemetry/opentelemetry-go/tree/main/exporters/stdout/stdouttrace
//
// todo: Events, Links
type Span struct {
	Name              string          `json:",omitempty"`
	TraceID           string          `json:",omitempty"`
	SpanID            string          `json:",omitempty"`
	ParentSpanID      string          `json:",omitempty"`
	TraceState        string          `json:",omitempty"`
	Kind              string          `json:",omitempty"`
	StartTime         time.Time       `json:",omitempty"`
	EndTime           time.Time       `json:",omitempty"`
	Attributes        map[string]any  `json:",omitempty"`
	Status            tracesdk.Status `json:",omitempty"`
	DroppedAttributes int64           `json:",omitempty"`
	Scope             string          `json:",omitempty"`
}

func FromReadOnly(ro tracesdk.ReadOnlySpan) Span {
	if ro == nil {
		return Span{}
	}

	sc := ro.SpanContext()
	s := Span{
		Name:              ro.Name(),
		TraceState:        sc.TraceState().String(),
		Kind:              trace.ValidateSpanKind(ro.SpanKind()).String(),
		StartTime:         ro.StartTime(),
		EndTime:           ro.EndTime(),
		Attributes:        attributeMap(ro.Attributes()),
		Status:            ro.Status(),
		DroppedAttributes: int64(ro.DroppedAttributes()),
		Scope:             ro.InstrumentationScope().Name,
	}
	if sc.HasTraceID() {
		s.TraceID = sc.TraceID().String()
	}
	if sc.HasSpanID() {
		s.SpanID = sc.SpanID().String()
	}
	if p := ro.Parent(); p.HasSpanID() {
		s.ParentSpanID = p.SpanID().String()
	}
	return s
}

func attributeMap(kvs []attribute.KeyValue) map[string]any {
	if len(kvs) == 0 {
		return nil
	}
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}
