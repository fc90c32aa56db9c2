// Package scenario runs the flow-aware and flow-agnostic analysis passes over
// one normalized dataset.
package scenario

import (
	"sync"
	"time"

	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/engine/aggregate"
	"Go2NetProfile/internal/flowid"
	"Go2NetProfile/internal/metrics"
	"Go2NetProfile/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Orchestrator derives flow keys once and computes both scenarios from the
// same keyed records.
type Orchestrator struct {
	engine     *aggregate.Engine
	numWorkers int
	log        logrus.FieldLogger
	metrics    *metrics.Collector
}

// NewOrchestrator creates an Orchestrator. m may be nil.
func NewOrchestrator(cfg config.AnalysisConfig, log logrus.FieldLogger, m *metrics.Collector) *Orchestrator {
	if m == nil {
		m = metrics.New(nil)
	}
	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Orchestrator{
		engine: aggregate.NewEngine(aggregate.Options{
			Quantiles:      cfg.Quantiles,
			ClipPercentile: cfg.ClipPercentile,
			DensityPoints:  cfg.DensityPoints,
			NumShards:      cfg.NumShards,
		}),
		numWorkers: numWorkers,
		log:        log,
		metrics:    m,
	}
}

// appResult holds everything computed for one application.
type appResult struct {
	// flow-aware
	awareSizes  *model.ApplicationMetric
	flowSizes   *model.ApplicationMetric
	groups      []*model.FlowGroup
	series      []model.SeriesPoint
	awareTotals model.ApplicationTotals

	// flow-agnostic
	agnosticSizes  *model.ApplicationMetric
	interArrival   *model.ApplicationMetric
	ttl            *model.ApplicationMetric
	protocolMix    map[string]int
	tcpFlags       map[string]int
	tlsVersions    map[string]int
	meanWindow     model.Field[float64]
	agnosticTotals model.ApplicationTotals

	unkeyed int
}

// Run computes the report for ds. It never fails: applications without
// usable records produce unavailable metrics.
func (o *Orchestrator) Run(ds *model.Dataset) *model.Report {
	start := time.Now()
	labels := ds.Labels()
	results := make([]appResult, len(ds.Applications))

	sem := make(chan struct{}, o.numWorkers)
	var wg sync.WaitGroup
	wg.Add(len(ds.Applications))
	for i := range ds.Applications {
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = o.analyzeApplication(ds.Applications[i])
		}(i)
	}
	wg.Wait()

	report := &model.Report{
		RunID:        uuid.New().String(),
		GeneratedAt:  time.Now().UTC(),
		Applications: labels,
		FlowAware:    o.assembleFlowAware(labels, results),
		FlowAgnostic: o.assembleFlowAgnostic(labels, results),
		Ingest:       make(map[string]model.IngestStats, len(labels)),
	}
	for _, app := range ds.Applications {
		report.Ingest[app.Label] = app.Stats
	}

	o.countUnavailable(report.FlowAware)
	o.countUnavailable(report.FlowAgnostic)
	o.metrics.AnalysisRuns.Inc()
	o.log.WithFields(logrus.Fields{
		"run_id":       report.RunID,
		"applications": len(labels),
		"elapsed":      time.Since(start).String(),
	}).Info("Analysis completed.")
	return report
}

// analyzeApplication computes both scenarios for one application. The temporal
// sort and delta computation happen here, on this application's records only.
func (o *Orchestrator) analyzeApplication(app model.ApplicationDataset) appResult {
	keyed := flowid.Annotate(app.Records)

	// records without a timestamp or a size take part in no statistic
	measurable := make([]model.KeyedRecord, 0, len(keyed))
	for _, r := range keyed {
		if r.Measurable() {
			measurable = append(measurable, r)
		}
	}

	flowKeyed := make([]model.KeyedRecord, 0, len(measurable))
	for _, r := range measurable {
		if r.FlowKey.Present {
			flowKeyed = append(flowKeyed, r)
		}
	}

	var res appResult
	res.unkeyed = len(measurable) - len(flowKeyed)

	// Scenario A: flow-aware
	res.groups = o.engine.FlowGroups(app.Label, flowKeyed)
	res.awareSizes = o.engine.Describe(aggregate.SizeSample(flowKeyed))
	res.flowSizes = o.engine.Describe(aggregate.FlowSizes(res.groups))
	res.series = aggregate.SizeSeries(flowKeyed)
	res.awareTotals = aggregate.Totals(flowKeyed)
	res.awareTotals.Flows = len(res.groups)

	// Scenario B: flow-agnostic
	res.agnosticSizes = o.engine.Describe(aggregate.SizeSample(measurable))
	res.interArrival = o.engine.Describe(aggregate.InterArrivals(measurable))
	res.ttl = o.engine.Describe(aggregate.TTLSample(measurable))
	res.protocolMix = aggregate.ProtocolMix(measurable)
	res.tcpFlags = aggregate.TCPFlagMix(measurable)
	res.tlsVersions = aggregate.TLSVersions(measurable)
	res.meanWindow = aggregate.MeanWindow(measurable)
	res.agnosticTotals = aggregate.Totals(measurable)

	o.metrics.FlowsIdentified.WithLabelValues(app.Label).Add(float64(len(res.groups)))
	o.metrics.UnkeyedRecords.WithLabelValues(app.Label).Add(float64(res.unkeyed))
	o.log.WithFields(logrus.Fields{
		"application": app.Label,
		"records":     len(app.Records),
		"measurable":  len(measurable),
		"keyed":       len(flowKeyed),
		"flows":       len(res.groups),
	}).Debug("Application analyzed.")
	return res
}

func (o *Orchestrator) assembleFlowAware(labels []string, results []appResult) *model.ScenarioResult {
	sizes := make([]*model.ApplicationMetric, len(results))
	flows := make([]*model.ApplicationMetric, len(results))
	sr := &model.ScenarioResult{
		Name:       model.ScenarioFlowAware,
		Totals:     make(map[string]model.ApplicationTotals, len(labels)),
		FlowGroups: make(map[string][]*model.FlowGroup, len(labels)),
		SizeSeries: make(map[string][]model.SeriesPoint, len(labels)),
	}
	for i, res := range results {
		sizes[i] = res.awareSizes
		flows[i] = res.flowSizes
		sr.Totals[labels[i]] = res.awareTotals
		sr.FlowGroups[labels[i]] = res.groups
		sr.SizeSeries[labels[i]] = res.series
	}
	sr.Metrics = map[model.Metric]*model.MetricResult{
		model.MetricPacketSize: o.engine.Combine(model.MetricPacketSize, labels, sizes),
		model.MetricFlowSize:   o.engine.Combine(model.MetricFlowSize, labels, flows),
	}
	return sr
}

func (o *Orchestrator) assembleFlowAgnostic(labels []string, results []appResult) *model.ScenarioResult {
	sizes := make([]*model.ApplicationMetric, len(results))
	deltas := make([]*model.ApplicationMetric, len(results))
	ttls := make([]*model.ApplicationMetric, len(results))
	sr := &model.ScenarioResult{
		Name:        model.ScenarioFlowAgnostic,
		Totals:      make(map[string]model.ApplicationTotals, len(labels)),
		ProtocolMix: make(map[string]map[string]int, len(labels)),
		TCPFlags:    make(map[string]map[string]int, len(labels)),
		TLSVersions: make(map[string]map[string]int, len(labels)),
		MeanWindow:  make(map[string]model.Field[float64], len(labels)),
	}
	for i, res := range results {
		sizes[i] = res.agnosticSizes
		deltas[i] = res.interArrival
		ttls[i] = res.ttl
		sr.Totals[labels[i]] = res.agnosticTotals
		sr.ProtocolMix[labels[i]] = res.protocolMix
		sr.TCPFlags[labels[i]] = res.tcpFlags
		sr.TLSVersions[labels[i]] = res.tlsVersions
		sr.MeanWindow[labels[i]] = res.meanWindow
	}
	sr.Metrics = map[model.Metric]*model.MetricResult{
		model.MetricPacketSize:   o.engine.Combine(model.MetricPacketSize, labels, sizes),
		model.MetricInterArrival: o.engine.Combine(model.MetricInterArrival, labels, deltas),
		model.MetricTTL:          o.engine.Combine(model.MetricTTL, labels, ttls),
	}
	return sr
}

func (o *Orchestrator) countUnavailable(sr *model.ScenarioResult) {
	for metric, result := range sr.Metrics {
		for label, am := range result.PerApplication {
			if am.Summary.Available {
				continue
			}
			o.metrics.MetricsUnavailable.WithLabelValues(sr.Name, string(metric)).Inc()
			o.log.WithFields(logrus.Fields{
				"scenario":    sr.Name,
				"metric":      metric,
				"application": label,
				"samples":     am.Summary.Count,
			}).Warn("Metric unavailable: ", am.Summary.Reason)
		}
	}
}
