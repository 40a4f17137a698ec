// Package observability provides OpenTelemetry tracing and Prometheus metrics
// for the confidence and ingestion paths.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/consolidator/internal/model"
)

// TracerName is the instrumentation scope of every span this module emits
const TracerName = "github.com/ppiankov/consolidator"

// Span kinds
const (
	SpanKindConfidence = "confidence"
	SpanKindIngest     = "ingest"
	SpanKindChunk      = "chunk"
	SpanKindEmbed      = "embed"
	SpanKindStore      = "vector_store"
)

// TracerProvider wraps the OpenTelemetry tracer provider
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing.
// Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg model.TracingConfig, version string) (*TracerProvider, error) {
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "consolidator"
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes pending spans and stops the exporter
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// Tracer returns the underlying tracer
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Enabled reports whether spans are exported
func (tp *TracerProvider) Enabled() bool {
	return tp != nil && tp.provider != nil
}

// StartConfidenceSpan starts a span for one confidence calculation
func StartConfidenceSpan(ctx context.Context, itemID string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "confidence.calculate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("consolidator.span.kind", SpanKindConfidence),
			attribute.String("confidence.item_id", itemID),
		),
	)
}

// RecordConfidenceResult records the outcome of a calculation on a span
func RecordConfidenceResult(span trace.Span, r model.ConfidenceResult) {
	span.SetAttributes(
		attribute.Float64("confidence.final_score", r.FinalScore),
		attribute.String("confidence.label", string(r.Label)),
		attribute.String("confidence.strategy", r.Strategy),
		attribute.Bool("confidence.degraded", r.IsDegraded()),
	)
}

// StartIngestSpan starts a span for one document ingestion
func StartIngestSpan(ctx context.Context, documentID string, strategy model.MergeStrategy, chunks int) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "ingest.document",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("consolidator.span.kind", SpanKindIngest),
			attribute.String("ingest.document_id", documentID),
			attribute.String("ingest.strategy", string(strategy)),
			attribute.Int("ingest.chunk_count", chunks),
		),
	)
}

// RecordIngestionReport records report counters on a span
func RecordIngestionReport(span trace.Span, r model.IngestionReport) {
	span.SetAttributes(
		attribute.Int("ingest.inserted", r.Inserted),
		attribute.Int("ingest.skipped", r.Skipped),
		attribute.Int("ingest.updated", r.Updated),
		attribute.Int("ingest.preserved", r.Preserved),
		attribute.Int("ingest.failed", r.Failed),
	)
	if r.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d chunks failed", r.Failed))
	}
}

// StartChunkSpan starts a span for a single chunk's dedup and write
func StartChunkSpan(ctx context.Context, key model.DedupKey) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "ingest.chunk",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("consolidator.span.kind", SpanKindChunk),
			attribute.String("chunk.key", key.String()),
			attribute.Int("chunk.index", key.Index()),
		),
	)
}

// StartEmbedSpan starts a span for an embedding provider call
func StartEmbedSpan(ctx context.Context, provider, modelName string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "embed.compute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("consolidator.span.kind", SpanKindEmbed),
			attribute.String("embed.provider", provider),
			attribute.String("embed.model", modelName),
		),
	)
}

// StartStoreSpan starts a span for a vector store call
func StartStoreSpan(ctx context.Context, backend, op string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "vector_store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("consolidator.span.kind", SpanKindStore),
			attribute.String("vector_store.backend", backend),
		),
	)
}

// RecordError records an error on a span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
