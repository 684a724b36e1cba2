package otelobs

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"trafficlens/pkg/structlog"
)

// Tracer returns the named tracer from the global provider. Until InitTracer
// installs an SDK provider this is a no-op tracer.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// InitTracer sets up an OTLP HTTP exporter and returns a shutdown func.
// An empty endpoint falls back to OTEL_EXPORTER_OTLP_ENDPOINT; when both are
// empty tracing stays disabled.
func InitTracer(ctx context.Context, serviceName, endpoint string, log *structlog.Logger) func(context.Context) error {
	if log == nil {
		log = structlog.Nop()
	}
	noop := func(context.Context) error { return nil }

	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		log.Debug("otel endpoint not set, tracing disabled", structlog.Fields{"service": serviceName})
		return noop
	}
	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		log.Warn("otel exporter init failed", structlog.Fields{"error": err})
		return noop
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		log.Warn("otel resource init failed", structlog.Fields{"error": err})
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	log.Info("otel tracing enabled", structlog.Fields{"endpoint": endpoint})
	return tp.Shutdown
}
