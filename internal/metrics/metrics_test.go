package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordsRead.WithLabelValues("Zoom").Add(3)
	c.RecordsDropped.WithLabelValues("Zoom", "malformed").Inc()
	c.AnalysisRuns.Inc()

	if got := testutil.ToFloat64(c.RecordsRead.WithLabelValues("Zoom")); got != 3 {
		t.Errorf("records read = %v", got)
	}
	if got := testutil.ToFloat64(c.AnalysisRuns); got != 1 {
		t.Errorf("runs = %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 3 {
		t.Errorf("expected 3 metric families with samples, got %d", len(families))
	}
}

func TestCollector_NilRegisterer(t *testing.T) {
	c := New(nil)
	c.FlowsIdentified.WithLabelValues("Chrome").Inc()
}
