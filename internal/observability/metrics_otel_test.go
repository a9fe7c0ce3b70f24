package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBuildMeterProviderDisabledIsNoOp(t *testing.T) {
	provider, err := BuildMeterProvider(MetricsConfig{Enabled: false}, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider == nil {
		t.Fatal("expected a non-nil no-op provider")
	}
}

func TestBuildMeterProviderRegistersOnReg(t *testing.T) {
	reg := prometheus.NewRegistry()
	provider, err := BuildMeterProvider(MetricsConfig{Enabled: true}, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counter, err := provider.Meter("test").Int64Counter("otel_bridge_test_total")
	if err != nil {
		t.Fatalf("unexpected error building counter: %v", err)
	}
	counter.Add(context.Background(), 1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering: %v", err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "otel_bridge_test_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected otel_bridge_test_total to be registered on reg via the otel-prometheus bridge")
	}
}
