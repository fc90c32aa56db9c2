package output

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"Go2NetProfile/internal/model"
)

// SnapshotTimeFormat is the time prefix of the per-run snapshot directory.
const SnapshotTimeFormat = "2006-01-02_15-04-05"

// SnapshotDir returns the directory name of report's snapshot:
// <timestamp>_<run id>.
func SnapshotDir(report *model.Report) string {
	return report.GeneratedAt.Format(SnapshotTimeFormat) + "_" + report.RunID
}

// SeriesSnapshot is the gob payload for one scenario: the raw samples and
// densities a plotting tool needs to redraw the figures.
type SeriesSnapshot struct {
	RunID        string
	Scenario     string
	Applications []string
	Samples      map[model.Metric]map[string][]float64
	Densities    map[model.Metric]map[string]model.Density
	ClipBounds   map[model.Metric]model.Field[float64]
	SizeSeries   map[string][]model.SeriesPoint
}

// SummaryData holds the metadata written next to each snapshot.
type SummaryData struct {
	RunID        string `json:"run_id"`
	Scenario     string `json:"scenario"`
	Applications int    `json:"applications"`
	TotalPackets int    `json:"total_packets"`
	TotalBytes   int64  `json:"total_bytes"`
	TotalFlows   int    `json:"total_flows"`
	Timestamp    string `json:"timestamp"`
}

// GobWriter writes per-scenario series snapshots to disk in gob format.
type GobWriter struct {
	rootPath string
}

// NewGobWriter creates a writer storing snapshots below rootPath.
func NewGobWriter(rootPath string) *GobWriter {
	return &GobWriter{rootPath: rootPath}
}

func (w *GobWriter) Name() string { return "gob" }

func (w *GobWriter) Close() error { return nil }

// Write stores one series.dat and summary.json per scenario under
// <root>/<timestamp>_<run id>/<scenario>/.
func (w *GobWriter) Write(report *model.Report) error {
	snapshotDir := filepath.Join(w.rootPath, SnapshotDir(report))

	for _, sr := range report.Scenarios() {
		if sr == nil {
			continue
		}
		scenarioDir := filepath.Join(snapshotDir, sr.Name)
		if err := os.MkdirAll(scenarioDir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}

		if err := writeGob(filepath.Join(scenarioDir, "series.dat"), newSeriesSnapshot(report, sr)); err != nil {
			return err
		}

		summary := SummaryData{
			RunID:        report.RunID,
			Scenario:     sr.Name,
			Applications: len(report.Applications),
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		}
		for _, t := range sr.Totals {
			summary.TotalPackets += t.Packets
			summary.TotalBytes += t.Bytes
			summary.TotalFlows += t.Flows
		}
		if err := writeSummary(filepath.Join(scenarioDir, "summary.json"), summary); err != nil {
			return err
		}
	}
	return nil
}

func newSeriesSnapshot(report *model.Report, sr *model.ScenarioResult) SeriesSnapshot {
	snap := SeriesSnapshot{
		RunID:        report.RunID,
		Scenario:     sr.Name,
		Applications: report.Applications,
		Samples:      make(map[model.Metric]map[string][]float64, len(sr.Metrics)),
		Densities:    make(map[model.Metric]map[string]model.Density, len(sr.Metrics)),
		ClipBounds:   make(map[model.Metric]model.Field[float64], len(sr.Metrics)),
		SizeSeries:   sr.SizeSeries,
	}
	for metric, mr := range sr.Metrics {
		samples := make(map[string][]float64, len(mr.PerApplication))
		densities := make(map[string]model.Density, len(mr.PerApplication))
		for label, am := range mr.PerApplication {
			samples[label] = am.Sample
			densities[label] = am.Density
		}
		snap.Samples[metric] = samples
		snap.Densities[metric] = densities
		snap.ClipBounds[metric] = mr.ClipBound
	}
	return snap
}

func writeGob(path string, snap SeriesSnapshot) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", path, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		return fmt.Errorf("failed to encode series to gob for file '%s': %w", path, err)
	}
	return nil
}

func writeSummary(path string, summary SummaryData) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	jsonEncoder := json.NewEncoder(file)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	return nil
}

// ReadSeries loads a snapshot written by GobWriter.
func ReadSeries(path string) (*SeriesSnapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file '%s': %w", path, err)
	}
	defer file.Close()

	var snap SeriesSnapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot '%s': %w", path, err)
	}
	return &snap, nil
}
