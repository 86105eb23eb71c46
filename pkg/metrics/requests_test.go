package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	t.Fatalf("metric family %q not registered", name)
	return nil
}

func TestObserveDurationRecordsHistogram(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewRequestMetrics(reg)

	m.ObserveDuration("cart.view", 150*time.Millisecond)
	m.ObserveDuration("cart.view", 250*time.Millisecond)

	family := gatherFamily(t, reg, "backend_request_duration_seconds")
	if len(family.Metric) != 1 {
		t.Fatalf("expected one labeled series, got %d", len(family.Metric))
	}
	hist := family.Metric[0].GetHistogram()
	if hist.GetSampleCount() != 2 {
		t.Fatalf("expected 2 observations, got %d", hist.GetSampleCount())
	}
}

func TestIncOutcomeNormalizesLabels(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewRequestMetrics(reg)

	m.IncOutcome("Cart.View ", "OK")
	m.IncOutcome("cart.view", "ok")
	m.IncOutcome("", "error")

	family := gatherFamily(t, reg, "backend_requests_total")

	byLabels := map[string]float64{}
	for _, metric := range family.Metric {
		key := ""
		for _, pair := range metric.GetLabel() {
			key += pair.GetName() + "=" + pair.GetValue() + ";"
		}
		byLabels[key] = metric.GetCounter().GetValue()
	}

	if got := byLabels["operation=cart.view;outcome=ok;"]; got != 2 {
		t.Fatalf("expected the two spellings to share one series, got %v (%v)", got, byLabels)
	}
	if got := byLabels["operation=unknown;outcome=error;"]; got != 1 {
		t.Fatalf("expected blank operation to map to unknown, got %v (%v)", got, byLabels)
	}
}

func TestNilReceiverAndUnregisteredMetricsAreSafe(t *testing.T) {
	t.Parallel()

	var m *RequestMetrics
	m.ObserveDuration("cart.view", time.Second)
	m.IncOutcome("cart.view", "ok")

	unregistered := NewRequestMetrics(nil)
	unregistered.ObserveDuration("cart.view", time.Second)
	unregistered.IncOutcome("cart.view", "ok")
}
