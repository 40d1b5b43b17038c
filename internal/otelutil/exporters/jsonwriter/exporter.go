// Package jsonwriter provides a span exporter that writes each span as a
// line of JSON to an [io.Writer].
package jsonwriter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	tracesdk "go.opentelemetry.io/otel/sdk/trace"
)

var errNilWriter = errors.New("nil writer")

// not thread-safe.
// SpanProcessors (eg, BatchSpanProcessor) should handle synchronization
type exporter struct {
	w io.Writer
	j *json.Encoder
}

// New constructs a new Exporter and starts it.
func New(w io.Writer) (tracesdk.SpanExporter, error) {
	if w == nil {
		return nil, errNilWriter
	}
	j := json.NewEncoder(w)
	j.SetEscapeHTML(false)
	j.SetIndent("", "")

	return &exporter{
		w: w,
		j: j,
	}, nil
}

func (e *exporter) ExportSpans(ctx context.Context, spans []tracesdk.ReadOnlySpan) error {
	if e.w == nil || e.j == nil {
		// should not happen
		return fmt.Errorf("export error: %w", errNilWriter)
	}

	// errors are sent to the configured error handler
	var errs []error
	for _, ro := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.j.Encode(FromReadOnly(ro)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *exporter) Shutdown(ctx context.Context) error {
	e.w = nil
	e.j = nil

	return ctx.Err()
}
