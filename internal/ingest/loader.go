// Package ingest builds the normalized dataset from the configured traces.
package ingest

import (
	"context"
	"sync"
	"time"

	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/engine/protocol"
	"Go2NetProfile/internal/metrics"
	"Go2NetProfile/internal/model"
	"Go2NetProfile/internal/normalize"
	"Go2NetProfile/pkg/trace"

	"github.com/sirupsen/logrus"
)

// pcapColumns is the column set produced by protocol.ExtractColumns.
var pcapColumns = normalize.Columns{
	Time:       protocol.ColumnTime,
	Length:     protocol.ColumnLength,
	SourceAddr: protocol.ColumnSourceAddr,
	DestAddr:   protocol.ColumnDestAddr,
	SourcePort: protocol.ColumnSourcePort,
	DestPort:   protocol.ColumnDestPort,
	Protocol:   protocol.ColumnProtocol,
	TTL:        protocol.ColumnTTL,
	TCPFlags:   protocol.ColumnTCPFlags,
	WindowSize: protocol.ColumnWindowSize,
}

// OpenFunc opens one trace.
type OpenFunc func(path, format string) (trace.Reader, error)

// Loader reads every configured application source and normalizes it.
type Loader struct {
	sources    []config.ApplicationSource
	csv        *normalize.Normalizer
	pcap       *normalize.Normalizer
	numWorkers int
	open       OpenFunc
	log        logrus.FieldLogger
	metrics    *metrics.Collector
}

// NewLoader creates a Loader for the applications in cfg. m may be nil.
func NewLoader(cfg *config.Config, log logrus.FieldLogger, m *metrics.Collector) *Loader {
	if m == nil {
		m = metrics.New(nil)
	}
	unknown := cfg.Analysis.UnknownMarker
	return &Loader{
		sources:    cfg.Applications,
		csv:        normalize.New(normalize.ColumnsFromConfig(cfg.Analysis.Columns), unknown, log),
		pcap:       normalize.New(pcapColumns, unknown, log),
		numWorkers: max(cfg.Analysis.NumWorkers, 1),
		open:       trace.Open,
		log:        log,
		metrics:    m,
	}
}

// WithOpener replaces the function used to open traces.
func (l *Loader) WithOpener(open OpenFunc) *Loader {
	l.open = open
	return l
}

// Load reads all sources concurrently. A source that cannot be read is
// logged and contributes an empty application; the other applications are
// unaffected. Load only fails when ctx is cancelled.
func (l *Loader) Load(ctx context.Context) (*model.Dataset, error) {
	start := time.Now()
	apps := make([]model.ApplicationDataset, len(l.sources))

	sem := make(chan struct{}, l.numWorkers)
	var wg sync.WaitGroup
	for i, src := range l.sources {
		wg.Add(1)
		go func(i int, src config.ApplicationSource) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				apps[i] = model.ApplicationDataset{Label: src.Label}
				return
			}
			defer func() { <-sem }()
			apps[i] = l.loadSource(src)
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds := &model.Dataset{Applications: apps}
	var total model.IngestStats
	for _, app := range apps {
		total.Add(app.Stats)
	}
	l.log.WithFields(logrus.Fields{
		"applications": len(apps),
		"read":         total.Read,
		"normalized":   total.Normalized,
		"malformed":    total.Malformed,
		"elapsed":      time.Since(start).String(),
	}).Info("Dataset loaded.")
	return ds, nil
}

func (l *Loader) loadSource(src config.ApplicationSource) model.ApplicationDataset {
	app := model.ApplicationDataset{Label: src.Label}
	log := l.log.WithFields(logrus.Fields{"application": src.Label, "path": src.Path})

	r, err := l.open(src.Path, src.Format)
	if err != nil {
		log.WithError(err).Error("Failed to open trace, continuing without it.")
		return app
	}
	defer r.Close()

	raws, err := r.ReadAll()
	if err != nil {
		// keep whatever was read before the failure
		log.WithError(err).Warn("Trace ended with a read error.")
	}

	n := l.csv
	if src.Format == trace.FormatPcap {
		n = l.pcap
	}
	app.Records, app.Stats = n.Normalize(src.Label, raws)

	l.metrics.RecordsRead.WithLabelValues(src.Label).Add(float64(app.Stats.Read))
	l.metrics.RecordsNormalized.WithLabelValues(src.Label).Add(float64(app.Stats.Normalized))
	l.metrics.RecordsDropped.WithLabelValues(src.Label, "malformed").Add(float64(app.Stats.Malformed))
	l.metrics.RecordsDropped.WithLabelValues(src.Label, "invalid_value").Add(float64(app.Stats.InvalidValues))

	log.WithFields(logrus.Fields{
		"read":       app.Stats.Read,
		"normalized": app.Stats.Normalized,
		"malformed":  app.Stats.Malformed,
		"invalid":    app.Stats.InvalidValues,
	}).Info("Trace normalized.")
	return app
}
