// Package manager wires ingestion, analysis and report writers into runs.
package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/engine/scenario"
	"Go2NetProfile/internal/factory"
	"Go2NetProfile/internal/ingest"
	"Go2NetProfile/internal/metrics"
	"Go2NetProfile/internal/model"
	_ "Go2NetProfile/internal/output" // Registers the report writers

	"github.com/sirupsen/logrus"
)

// Manager runs the analysis pipeline and hands each report to its writers.
type Manager struct {
	loader       *ingest.Loader
	orchestrator *scenario.Orchestrator
	writers      []model.Writer
	notifiers    []model.Notifier
	log          logrus.FieldLogger

	runMu  sync.Mutex // one run at a time
	latest atomic.Pointer[model.Report]

	done     chan struct{}
	stopOnce sync.Once
	tickerWg sync.WaitGroup
}

// NewManager creates the loader, the orchestrator and every enabled writer.
func NewManager(cfg *config.Config, log logrus.FieldLogger, m *metrics.Collector) (*Manager, error) {
	writers, err := factory.Create(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Manager{
		loader:       ingest.NewLoader(cfg, log, m),
		orchestrator: scenario.NewOrchestrator(cfg.Analysis, log, m),
		writers:      writers,
		log:          log,
		done:         make(chan struct{}),
	}, nil
}

// AddNotifier registers n to be told about every completed report.
func (m *Manager) AddNotifier(n model.Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Run loads the dataset, computes both scenarios and writes the report.
// Writer failures are logged; the report is still returned and published
// as the latest one.
func (m *Manager) Run(ctx context.Context) (*model.Report, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	ds, err := m.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	report := m.orchestrator.Run(ds)
	m.latest.Store(report)

	if err := factory.WriteAll(m.writers, report, m.log); err != nil {
		m.log.WithError(err).Warn("Some writers failed.")
	}
	for _, n := range m.notifiers {
		n.Notify(report)
	}
	return report, nil
}

// Latest returns the most recent report, or nil before the first run.
func (m *Manager) Latest() *model.Report {
	return m.latest.Load()
}

// Start re-runs the analysis every interval until Stop is called.
func (m *Manager) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	m.tickerWg.Add(1)
	go m.runTicker(interval)
	m.log.WithField("interval", interval.String()).Info("Started periodic refresh.")
}

func (m *Manager) runTicker(interval time.Duration) {
	defer m.tickerWg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				select {
				case <-m.done:
					cancel()
				case <-ctx.Done():
				}
			}()
			if _, err := m.Run(ctx); err != nil {
				m.log.WithError(err).Error("Periodic refresh failed.")
			}
			cancel()
		case <-m.done:
			return
		}
	}
}

// Stop ends the periodic refresh and closes every writer. Later calls do nothing.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.log.Info("Manager stopping...")
		close(m.done)
		m.tickerWg.Wait()
		factory.CloseAll(m.writers, m.log)
		m.log.Info("Manager stopped.")
	})
}
