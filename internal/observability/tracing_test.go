package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ppiankov/consolidator/internal/model"
)

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, model.TracingConfig{ServiceName: "test"}, "dev")
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NotNil(t, tp.Tracer())
	assert.False(t, tp.Enabled())
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestShutdown_NilProvider(t *testing.T) {
	var tp *TracerProvider
	assert.NoError(t, tp.Shutdown(context.Background()))
	assert.False(t, tp.Enabled())
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), samplerFor(0.25).Description())
}

func TestSpanHelpers_RecordAttributes(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tracer := provider.Tracer(TracerName)

	_, span := tracer.Start(context.Background(), "ingest.document")
	RecordIngestionReport(span, model.IngestionReport{Inserted: 2, Failed: 1})
	RecordError(span, errors.New("write failed"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	attrs := map[string]int64{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInt64()
	}
	assert.Equal(t, int64(2), attrs["ingest.inserted"])
	assert.Equal(t, int64(1), attrs["ingest.failed"])
	assert.Equal(t, "write failed", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 1)
}

func TestRecordError_Nil(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	_, span := provider.Tracer(TracerName).Start(context.Background(), "noop")
	RecordError(span, nil)
	span.End()

	require.Len(t, rec.Ended(), 1)
	assert.Empty(t, rec.Ended()[0].Events())
}
