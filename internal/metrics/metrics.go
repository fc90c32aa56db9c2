package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector groups the counters exported by an analysis run.
type Collector struct {
	RecordsRead        *prometheus.CounterVec
	RecordsNormalized  *prometheus.CounterVec
	RecordsDropped     *prometheus.CounterVec
	FlowsIdentified    *prometheus.CounterVec
	UnkeyedRecords     *prometheus.CounterVec
	MetricsUnavailable *prometheus.CounterVec
	AnalysisRuns       prometheus.Counter
}

// New creates the collector and registers it with reg. A nil reg leaves the
// counters unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		RecordsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netprofile_records_read_total",
			Help: "Raw records read from trace sources",
		}, []string{"application"}),
		RecordsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netprofile_records_normalized_total",
			Help: "Records that survived normalization",
		}, []string{"application"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netprofile_records_dropped_total",
			Help: "Records dropped or degraded during normalization",
		}, []string{"application", "reason"}),
		FlowsIdentified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netprofile_flows_identified_total",
			Help: "Distinct flows found per application",
		}, []string{"application"}),
		UnkeyedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netprofile_unkeyed_records_total",
			Help: "Records without a flow key",
		}, []string{"application"}),
		MetricsUnavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netprofile_metrics_unavailable_total",
			Help: "Per-application metrics reported as unavailable",
		}, []string{"scenario", "metric"}),
		AnalysisRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netprofile_analysis_runs_total",
			Help: "Completed analysis runs",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.RecordsRead,
			c.RecordsNormalized,
			c.RecordsDropped,
			c.FlowsIdentified,
			c.UnkeyedRecords,
			c.MetricsUnavailable,
			c.AnalysisRuns,
		)
	}
	return c
}
