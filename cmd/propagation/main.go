// propagation demonstrates active-context inheritance across thread
// creation: it starts a parent span, creates a thread through the
// intercepting primitive, and compares the span id the new thread observes
// against the parent's.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/helsaawy/threadtrace"
	"github.com/helsaawy/threadtrace/active"
	"github.com/helsaawy/threadtrace/internal/otelutil"
	"github.com/helsaawy/threadtrace/internal/otelutil/exporters/jsonwriter"
	"github.com/helsaawy/threadtrace/thread"
)

const exportFlagName = "export"

func main() {
	a := app()
	if err := a.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal(a.Name + " failed")
	}
}

func app() *cli.App {
	return &cli.App{
		Name:  "propagation",
		Usage: "verify that threads inherit their creator's active tracing context",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    exportFlagName,
				Aliases: []string{"e"},
				Usage:   "write finished spans to stderr as JSON",
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	otel.SetErrorHandler(otelutil.ErrorHandler())
	otelutil.SetTraceContextPropagation()

	opts := []tracesdk.TracerProviderOption{
		tracesdk.WithSampler(tracesdk.AlwaysSample()),
	}
	if c.Bool(exportFlagName) {
		exp, err := jsonwriter.New(os.Stderr)
		if err != nil {
			return fmt.Errorf("create span exporter: %w", err)
		}
		opts = append(opts, tracesdk.WithBatcher(exp))
	}

	shutdown, err := otelutil.InitializeProvider(opts...)
	if err != nil {
		return fmt.Errorf("initialize tracer provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logrus.WithError(err).Warning("tracer provider shutdown")
		}
	}()

	ctx, span := otelutil.StartSpan(c.Context, "parent")
	parent := span.SpanContext().SpanID()
	fmt.Printf("parent-span=%s\n", parent)

	// make the span's context active for this thread, so thread creation
	// picks it up implicitly
	restore := active.Install(ctx)
	defer restore()

	var t thread.Thread
	if errno := threadtrace.Create(&t, nil, readActiveSpanID, nil); errno != 0 {
		otelutil.SetSpanStatusAndEnd(span, errno)
		return fmt.Errorf("thread creation failed: %w", errno)
	}

	v, err := t.Join()
	if err != nil {
		otelutil.SetSpanStatusAndEnd(span, err)
		return fmt.Errorf("join: %w", err)
	}
	child := v.(trace.SpanID)
	fmt.Printf("child-span=%s\n", child)

	otelutil.SetSpanStatusAndEnd(span, nil)

	if child != parent {
		return cli.Exit("active context was not propagated to the new thread", 1)
	}
	return nil
}

// readActiveSpanID is the created thread's entry point: it reports the span
// id of whatever context is active on the thread it runs on.
func readActiveSpanID(any) any {
	return trace.SpanContextFromContext(active.Current()).SpanID()
}
