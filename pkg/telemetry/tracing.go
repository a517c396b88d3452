package telemetry

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/bacalhau-project/contractnet"

var tracerProvider *sdktrace.TracerProvider

// GetTracer returns the tracer used by every agent.
func GetTracer() oteltrace.Tracer {
	return otel.GetTracerProvider().Tracer(tracerName)
}

// NewSpan starts a span tagged with the agent id.
func NewSpan(ctx context.Context, name string, agentID string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	attrs = append(attrs, attribute.String("agent.id", agentID))
	return GetTracer().Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// RecordErrorOnSpan records err on the span, if any, and marks the span as failed.
func RecordErrorOnSpan(span oteltrace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetupTracing installs an SDK tracer provider that samples every span and
// writes finished spans to the debug log.
func SetupTracing() {
	if tracerProvider != nil {
		return
	}
	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(logSpanProcessor{}),
	)
	otel.SetTracerProvider(tracerProvider)
	log.Debug().Msg("span logging enabled")
}

// TracingEnabled returns true if SetupTracing was called.
func TracingEnabled() bool {
	return tracerProvider != nil
}

func cleanupTracerProvider(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	return tracerProvider.Shutdown(ctx)
}

type logSpanProcessor struct{}

func (logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	event := log.Debug()
	if s.Status().Code == codes.Error {
		event = log.Warn().Str("Error", s.Status().Description)
	}
	for _, kv := range s.Attributes() {
		event = event.Str(string(kv.Key), kv.Value.Emit())
	}
	event.
		Str("Span", s.Name()).
		Str("TraceID", s.SpanContext().TraceID().String()).
		Dur("Duration", s.EndTime().Sub(s.StartTime())).
		Msg("span finished")
}

func (logSpanProcessor) Shutdown(context.Context) error { return nil }

func (logSpanProcessor) ForceFlush(context.Context) error { return nil }
