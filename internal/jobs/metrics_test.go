package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if err := m.Track("analytics:warmup").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boom := errors.New("boom")
	if err := m.Track("analytics:warmup").End(boom); !errors.Is(err, boom) {
		t.Fatalf("expected error to be returned untouched, got %v", err)
	}

	if got := testutil.ToFloat64(m.runs.WithLabelValues("analytics:warmup", "success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("analytics:warmup", "failure")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("analytics:warmup")); got != 1 {
		t.Fatalf("expected failure counter 1, got %v", got)
	}
}

func TestAddWarmedIgnoresEmpty(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.AddWarmed("daily_kpis", 0)
	m.AddWarmed("daily_kpis", 3)

	if got := testutil.ToFloat64(m.warmed.WithLabelValues("daily_kpis")); got != 3 {
		t.Fatalf("expected 3 warmed entries, got %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddWarmed("x", 1)
	if err := m.Track("x").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
