package observability

import (
	"context"
	"time"

	"github.com/annel0/voxel-detach/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Options параметры трассировки
type Options struct {
	ServiceName string
	Endpoint    string // host:port OTLP HTTP; пусто: localhost:4318
	Insecure    bool
}

// InitTelemetry настраивает OTLP экспортер и устанавливает глобальный TracerProvider.
// Возвращает функцию shutdown, которую нужно вызвать при завершении приложения.
func InitTelemetry(ctx context.Context, opts Options) (func(context.Context) error, error) {
	exp, err := otlptracehttp.New(ctx, exporterOptions(opts)...)
	if err != nil {
		return nil, err
	}

	tp, err := newTracerProvider(ctx, opts.ServiceName, trace.WithBatcher(exp))
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tp)
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}
	logging.Info("📡 OpenTelemetry инициализирован (OTLP → %s, service=%s)", endpoint, opts.ServiceName)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}
	return shutdown, nil
}

func exporterOptions(opts Options) []otlptracehttp.Option {
	var out []otlptracehttp.Option
	if opts.Endpoint != "" {
		out = append(out, otlptracehttp.WithEndpoint(opts.Endpoint))
	}
	if opts.Insecure || opts.Endpoint == "" {
		out = append(out, otlptracehttp.WithInsecure())
	}
	return out
}

func newTracerProvider(ctx context.Context, serviceName string, extra ...trace.TracerProviderOption) (*trace.TracerProvider, error) {
	if serviceName == "" {
		serviceName = "voxel-detach"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	opts := append([]trace.TracerProviderOption{trace.WithResource(res)}, extra...)
	return trace.NewTracerProvider(opts...), nil
}
