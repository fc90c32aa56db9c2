package model

import "time"

// Metric names one of the computed distributions.
type Metric string

const (
	MetricPacketSize   Metric = "packet_size"
	MetricInterArrival Metric = "inter_arrival"
	MetricFlowSize     Metric = "flow_size"
	MetricTTL          Metric = "ttl"
)

// Metrics lists every metric in reporting order.
var Metrics = []Metric{MetricPacketSize, MetricInterArrival, MetricFlowSize, MetricTTL}

// Scenario names an analysis pass.
const (
	ScenarioFlowAware    = "flow_aware"
	ScenarioFlowAgnostic = "flow_agnostic"
)

// Quantile is a single quantile of a sample, P in [0,1].
type Quantile struct {
	P     float64 `json:"p"`
	Value float64 `json:"value"`
}

// DistributionSummary holds descriptive statistics over a numeric sample.
// When Available is false only Count and Reason are meaningful.
type DistributionSummary struct {
	Count     int        `json:"count"`
	Mean      float64    `json:"mean"`
	Std       float64    `json:"std"`
	Min       float64    `json:"min"`
	Quantiles []Quantile `json:"quantiles,omitempty"`
	Max       float64    `json:"max"`
	Available bool       `json:"available"`
	Reason    string     `json:"reason,omitempty"`
}

// Quantile returns the stored value for p, if it was computed.
func (s DistributionSummary) Quantile(p float64) (float64, bool) {
	for _, q := range s.Quantiles {
		if q.P == p {
			return q.Value, true
		}
	}
	return 0, false
}

// Density is a kernel density estimate evaluated on a grid.
type Density struct {
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
	Bandwidth float64   `json:"bandwidth,omitempty"`
	X         []float64 `json:"x,omitempty"`
	Y         []float64 `json:"y,omitempty"`
}

// ApplicationMetric is one metric computed for one application.
// Sample keeps the values the summary was computed from: packet sizes in
// input order, inter-arrival deltas in temporal order, or packets per flow
// in order of first appearance.
type ApplicationMetric struct {
	Summary DistributionSummary `json:"summary"`
	Density Density             `json:"density"`
	Sample  []float64           `json:"sample"`
}

// MetricResult holds a metric for every application, plus the display bound
// computed over the pooled cross-application sample.
type MetricResult struct {
	Metric         Metric                        `json:"metric"`
	PerApplication map[string]*ApplicationMetric `json:"per_application"`
	ClipBound      Field[float64]                `json:"clip_bound"`
}

// SeriesPoint is one (timestamp, size) observation.
type SeriesPoint struct {
	Time float64 `json:"time"`
	Size int64   `json:"size"`
}

// ApplicationTotals summarises volume for one application within a scenario.
type ApplicationTotals struct {
	Packets int   `json:"packets"`
	Bytes   int64 `json:"bytes"`
	Flows   int   `json:"flows"`
}

// ScenarioResult is the outcome of one analysis pass.
type ScenarioResult struct {
	Name        string                       `json:"name"`
	Metrics     map[Metric]*MetricResult     `json:"metrics"`
	Totals      map[string]ApplicationTotals `json:"totals"`
	FlowGroups  map[string][]*FlowGroup      `json:"flow_groups,omitempty"`
	SizeSeries  map[string][]SeriesPoint     `json:"size_series,omitempty"`
	ProtocolMix map[string]map[string]int    `json:"protocol_mix,omitempty"`
	TCPFlags    map[string]map[string]int    `json:"tcp_flags,omitempty"`
	TLSVersions map[string]map[string]int    `json:"tls_versions,omitempty"`
	MeanWindow  map[string]Field[float64]    `json:"mean_window,omitempty"`
}

// Report is everything an analysis run hands to renderers and writers.
type Report struct {
	RunID        string                 `json:"run_id"`
	GeneratedAt  time.Time              `json:"generated_at"`
	Applications []string               `json:"applications"`
	FlowAware    *ScenarioResult        `json:"flow_aware"`
	FlowAgnostic *ScenarioResult        `json:"flow_agnostic"`
	Ingest       map[string]IngestStats `json:"ingest"`
}

// Scenario returns the result for the given scenario name, or nil.
func (r *Report) Scenario(name string) *ScenarioResult {
	switch name {
	case ScenarioFlowAware:
		return r.FlowAware
	case ScenarioFlowAgnostic:
		return r.FlowAgnostic
	}
	return nil
}

// MetricNames returns the metrics computed by this scenario in reporting order.
func (s *ScenarioResult) MetricNames() []Metric {
	names := make([]Metric, 0, len(s.Metrics))
	for _, m := range Metrics {
		if _, ok := s.Metrics[m]; ok {
			names = append(names, m)
		}
	}
	return names
}

// Scenarios returns both scenario results in reporting order.
func (r *Report) Scenarios() []*ScenarioResult {
	return []*ScenarioResult{r.FlowAware, r.FlowAgnostic}
}
