// Package otel wires OpenTelemetry tracing for the casemgmt binaries.
package otel

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Environment variables controlling trace export. Tracing stays off
// unless an endpoint is set, and CASEMGMT_OTEL_ENABLED=false forces it
// off regardless.
const (
	envOTelEndpoint = "CASEMGMT_OTEL_ENDPOINT"
	envOTelEnabled  = "CASEMGMT_OTEL_ENABLED"
)

// Setup installs a global tracer provider exporting OTLP/HTTP spans for
// serviceName. When tracing is disabled it registers nothing and the
// returned shutdown is a no-op. Callers defer shutdown to flush pending
// spans on exit.
func Setup(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	endpoint := tracingEndpoint()
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return provider.Shutdown, nil
}

// tracingEndpoint returns the OTLP endpoint URL, or empty when tracing
// is disabled.
func tracingEndpoint() string {
	if strings.EqualFold(os.Getenv(envOTelEnabled), "false") {
		return ""
	}
	return os.Getenv(envOTelEndpoint)
}
