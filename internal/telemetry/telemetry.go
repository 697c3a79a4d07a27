// Package telemetry installs the OpenTelemetry trace provider.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
)

// Config selects where spans are exported
type Config struct {
	// Endpoint is an OTLP/HTTP URL. Empty disables tracing.
	Endpoint    string
	ServiceName string
	// Exporter overrides the OTLP exporter, mainly for tests
	Exporter sdktrace.SpanExporter
}

// Shutdown flushes pending spans
type Shutdown func(context.Context) error

// Setup registers a global tracer provider. With neither an endpoint nor an
// exporter it leaves the no-op provider in place.
func Setup(ctx context.Context, cfg *Config) (Shutdown, error) {
	noop := func(context.Context) error { return nil }
	if cfg == nil {
		return noop, errors.InvalidArgument("config is required")
	}

	exporter := cfg.Exporter
	if exporter == nil {
		if cfg.Endpoint == "" {
			slog.Debug("Tracing disabled")
			return noop, nil
		}
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		if err != nil {
			return noop, errors.Wrap(err, "failed to create trace exporter")
		}
		exporter = exp
	}

	name := cfg.ServiceName
	if name == "" {
		name = "hexhaven-api"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		return noop, errors.Wrap(err, "failed to build trace resource")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	slog.Info("Tracing enabled", "service", name, "endpoint", cfg.Endpoint)
	return tp.Shutdown, nil
}
