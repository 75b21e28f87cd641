package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracerProvider_RecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp, err := newTracerProvider(context.Background(), "", trace.WithSpanProcessor(rec))
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "place")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "place", ended[0].Name())

	var service string
	for _, kv := range ended[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "voxel-detach", service, "имя сервиса по умолчанию")
}

func TestExporterOptions(t *testing.T) {
	assert.Len(t, exporterOptions(Options{}), 1, "без endpoint только insecure")
	assert.Len(t, exporterOptions(Options{Endpoint: "otel:4318"}), 1)
	assert.Len(t, exporterOptions(Options{Endpoint: "otel:4318", Insecure: true}), 2)
}
