package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/trace"

	otlpjaeger "go.opentelemetry.io/otel/exporters/jaeger"
)

// BuildTraceExporter selects and constructs an OTel span exporter per
// cfg.Exporter ("jaeger" | "zipkin" | "otlp"). The engine never calls this
// directly — it's a helper for the process embedding the engine to wire up
// cfg.Tracing before constructing a trace.TracerProvider.
func BuildTraceExporter(ctx context.Context, cfg TracingConfig) (trace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", "jaeger":
		endpoint := cfg.JaegerEndpoint
		if endpoint == "" {
			endpoint = "http://localhost:14268/api/traces"
		}
		return otlpjaeger.New(otlpjaeger.WithCollectorEndpoint(otlpjaeger.WithEndpoint(endpoint)))
	case "zipkin":
		endpoint := cfg.ZipkinEndpoint
		if endpoint == "" {
			endpoint = "http://localhost:9411/api/v2/spans"
		}
		return zipkin.New(endpoint)
	case "otlp":
		endpoint := cfg.OTLPEndpoint
		if endpoint == "" {
			endpoint = "localhost:4318"
		}
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
}
