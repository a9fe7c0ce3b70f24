package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// BuildMeterProvider bridges OTel metrics onto reg, the same Prometheus
// registry EngineMetrics registers its counters/gauges against, so an
// operator scrapes one /metrics endpoint regardless of which stack recorded
// a given series. Disabled (cfg.Enabled == false) returns a no-op provider.
func BuildMeterProvider(cfg MetricsConfig, reg prometheus.Registerer) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		return sdkmetric.NewMeterProvider(), nil
	}

	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("build otel prometheus exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)), nil
}
