// Package telemetry installs the process-wide OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ServiceName identifies this service in exported spans.
const ServiceName = "vm-remediator"

// Config selects the span exporter.
type Config struct {
	// Exporter is "none", "stdout" or "otlp".
	Exporter string

	// Endpoint is the OTLP gRPC receiver, host:port. Only used for "otlp".
	Endpoint string

	// Writer receives stdout spans. Defaults to the exporter's own stdout.
	Writer io.Writer
}

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

// Init installs a tracer provider for the configured exporter. With "none"
// the global no-op provider is left in place and Shutdown does nothing.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	noop := func(context.Context) error { return nil }

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "", "none":
		return noop, nil

	case "stdout":
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.Writer != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
		}
		exporter, err = stdouttrace.New(opts...)

	case "otlp":
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)

	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	res := resource.NewWithAttributes("", attribute.String("service.name", ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	slog.Info("telemetry_ready", "exporter", cfg.Exporter, "endpoint", cfg.Endpoint)
	return tp.Shutdown, nil
}
