// Package tracking records OpenTelemetry metrics and spans for SOAP calls.
// Instruments come from the global providers, so they are no-ops until the
// application installs real ones.
package tracking

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/cheyinl/soaptransport"

	metricAttempts     = "soap.client.attempts"
	metricCallDuration = "soap.client.call.duration"

	attrAction   = "soap.action"
	attrOutcome  = "soap.outcome"
	attrAttempt  = "soap.attempt"
	attrAttempts = "soap.attempts"
	attrCallID   = "soap.call_id"
	attrURLFull  = "url.full"
)

var callDurationBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

var (
	meterOnce             sync.Once
	attemptsCounter       metric.Int64Counter
	callDurationHistogram metric.Float64Histogram
)

func logMetricError(name string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: failed to initialize SOAP metric %s: %v\n", name, err)
	}
}

func initMeter() {
	meter := otel.Meter(instrumentationName)

	var err error
	attemptsCounter, err = meter.Int64Counter(
		metricAttempts,
		metric.WithDescription("Number of transport attempts made by SOAP calls"),
		metric.WithUnit("{attempt}"),
	)
	logMetricError(metricAttempts, err)

	callDurationHistogram, err = meter.Float64Histogram(
		metricCallDuration,
		metric.WithDescription("Duration of SOAP calls including every attempt"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(callDurationBuckets...),
	)
	logMetricError(metricCallDuration, err)
}

// reset lets tests install a fresh meter provider.
func reset() {
	meterOnce = sync.Once{}
	attemptsCounter = nil
	callDurationHistogram = nil
}

// RecordAttempt counts one attempt with its outcome ("success", "timeout"
// or "other").
func RecordAttempt(ctx context.Context, action, outcome string) {
	meterOnce.Do(initMeter)
	if attemptsCounter != nil {
		attemptsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrAction, action),
			attribute.String(attrOutcome, outcome),
		))
	}
}

// RecordCall records the duration of a whole call.
func RecordCall(ctx context.Context, action, outcome string, d time.Duration) {
	meterOnce.Do(initMeter)
	if callDurationHistogram != nil {
		callDurationHistogram.Record(ctx, d.Seconds(), metric.WithAttributes(
			attribute.String(attrAction, action),
			attribute.String(attrOutcome, outcome),
		))
	}
}

// StartCall opens a client span for a call. The returned function ends it.
func StartCall(ctx context.Context, callID, url, action string) (context.Context, func(outcome string, attempts int, err error)) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "soap.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(attrCallID, callID),
			attribute.String(attrURLFull, url),
			attribute.String(attrAction, action),
		),
	)
	return ctx, func(outcome string, attempts int, err error) {
		span.SetAttributes(
			attribute.String(attrOutcome, outcome),
			attribute.Int(attrAttempts, attempts),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AttemptEvent adds an event for a finished attempt to the span in ctx.
func AttemptEvent(ctx context.Context, attempt int, outcome string) {
	trace.SpanFromContext(ctx).AddEvent("soap.attempt", trace.WithAttributes(
		attribute.Int(attrAttempt, attempt),
		attribute.String(attrOutcome, outcome),
	))
}
