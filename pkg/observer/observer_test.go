package observer

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics_RecordCreation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordCreation("success", 1.5)

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, family := range metricFamilies {
		if family.GetName() == "reporoller_creation_requests_total" {
			found = true
			for _, metric := range family.GetMetric() {
				if metric.GetCounter().GetValue() != 1 {
					t.Errorf("counter value = %v, want 1", metric.GetCounter().GetValue())
				}
			}
		}
	}
	if !found {
		t.Error("expected reporoller_creation_requests_total to be registered")
	}
}

func TestNewMetrics_RecordHubCall(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordHubCall("create_repository", "ok", 0.2)
	m.RecordHubCall("create_repository", "error", 0.1)

	families, _ := registry.Gather()
	var total float64
	for _, family := range families {
		if family.GetName() != "reporoller_hub_calls_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	if total != 2 {
		t.Errorf("total hub calls = %v, want 2", total)
	}
}

func TestRecordingObserver(t *testing.T) {
	o := NewRecordingObserver()
	o.Info("config", "resolved %d levels", 5)
	o.Warn("publisher", "skip endpoint: unknown secret reference")
	o.Error("builder", "create_repository failed: %s", "boom")

	if len(o.Infos) != 1 || o.Infos[0].Message != "resolved 5 levels" {
		t.Errorf("Infos = %+v", o.Infos)
	}
	if len(o.Warns) != 1 {
		t.Errorf("Warns = %+v", o.Warns)
	}
	if len(o.Errors) != 1 || o.Errors[0].Namespace != "builder" {
		t.Errorf("Errors = %+v", o.Errors)
	}
}

func TestNoopObserver(t *testing.T) {
	var o Observer = NoopObserver{}
	o.Info("x", "y")
	o.Warn("x", "y")
	o.Error("x", "y")
	if o.Metrics() != nil {
		t.Error("NoopObserver.Metrics() should be nil")
	}
}
