package tierauth

import "testing"

func TestMetricsDisabledIsNoop(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricTokenCreated)
	if m.Value(MetricTokenCreated) != 0 {
		t.Fatal("disabled metrics must not count")
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("disabled metrics snapshot must be empty")
	}
}

func TestMetricsCountAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricTokenCreated)
	m.Inc(MetricTokenCreated)
	m.Inc(MetricFraudDetected)

	if got := m.Value(MetricTokenCreated); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}

	snap := m.Snapshot()
	if snap.Counters[MetricTokenCreated] != 2 || snap.Counters[MetricFraudDetected] != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap.Counters)
	}

	// Out-of-range IDs must be ignored, not panic.
	m.Inc(metricIDCount)
	if m.Value(metricIDCount) != 0 {
		t.Fatal("out-of-range metric must read zero")
	}
}
