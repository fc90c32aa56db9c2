package output

import (
	"context"
	"fmt"
	"time"

	"Go2NetProfile/internal/config"
	"Go2NetProfile/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

const createSummariesStatement = `
CREATE TABLE IF NOT EXISTS distribution_summaries (
    RunID          String,
    GeneratedAt    DateTime,
    Scenario       LowCardinality(String),
    Metric         LowCardinality(String),
    Application    String,
    Count          UInt64,
    Available      UInt8,
    Reason         String,
    Mean           Float64,
    Std            Float64,
    Min            Float64,
    QuantileLevels Array(Float64),
    QuantileValues Array(Float64),
    Max            Float64,
    ClipBound      Nullable(Float64)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(GeneratedAt)
ORDER BY (Scenario, Metric, Application, GeneratedAt);
`

const createFlowSizesStatement = `
CREATE TABLE IF NOT EXISTS flow_sizes (
    RunID       String,
    GeneratedAt DateTime,
    Application String,
    FlowKey     FixedString(32),
    Packets     UInt64,
    Bytes       UInt64,
    FirstSeen   Float64,
    LastSeen    Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(GeneratedAt)
ORDER BY (Application, GeneratedAt);
`

// ClickHouseWriter stores distribution summaries and flow sizes in ClickHouse.
type ClickHouseWriter struct {
	conn driver.Conn
	log  logrus.FieldLogger
}

// NewClickHouseWriter connects to ClickHouse and ensures both tables exist.
func NewClickHouseWriter(cfg config.ClickHouseConfig, log logrus.FieldLogger) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range []string{createSummariesStatement, createFlowSizesStatement} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Info("Successfully connected to ClickHouse and ensured tables exist.")

	return &ClickHouseWriter{conn: conn, log: log}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

func (w *ClickHouseWriter) Name() string { return "clickhouse" }

func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

// Write inserts one row per (scenario, metric, application) and one row per
// flow of the flow-aware scenario.
func (w *ClickHouseWriter) Write(report *model.Report) error {
	ctx := context.Background()

	rows := summaryRows(report)
	if len(rows) > 0 {
		batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO distribution_summaries")
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		for _, r := range rows {
			if err := batch.Append(r.values()...); err != nil {
				return fmt.Errorf("failed to append summary to batch: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}

	flows := 0
	if sr := report.FlowAware; sr != nil {
		batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO flow_sizes")
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		for _, label := range report.Applications {
			for _, g := range sr.FlowGroups[label] {
				flows++
				err = batch.Append(
					report.RunID,
					report.GeneratedAt,
					label,
					g.Key.String(),
					uint64(g.Packets),
					uint64(g.Bytes),
					g.FirstSeen,
					g.LastSeen,
				)
				if err != nil {
					return fmt.Errorf("failed to append flow to batch: %w", err)
				}
			}
		}
		if flows > 0 {
			if err := batch.Send(); err != nil {
				return fmt.Errorf("failed to send batch: %w", err)
			}
		} else if err := batch.Abort(); err != nil {
			return fmt.Errorf("failed to abort empty batch: %w", err)
		}
	}

	w.log.WithFields(logrus.Fields{"summaries": len(rows), "flows": flows}).Info("Wrote report to ClickHouse.")
	return nil
}

// summaryRow mirrors one row of distribution_summaries.
type summaryRow struct {
	RunID       string
	Scenario    string
	Metric      model.Metric
	Application string
	Summary     model.DistributionSummary
	ClipBound   model.Field[float64]
	GeneratedAt time.Time
}

func (r summaryRow) values() []any {
	levels := make([]float64, len(r.Summary.Quantiles))
	values := make([]float64, len(r.Summary.Quantiles))
	for i, q := range r.Summary.Quantiles {
		levels[i] = q.P
		values[i] = q.Value
	}
	var available uint8
	if r.Summary.Available {
		available = 1
	}
	var clip *float64
	if v, ok := r.ClipBound.Get(); ok {
		clip = &v
	}
	return []any{
		r.RunID,
		r.GeneratedAt,
		r.Scenario,
		string(r.Metric),
		r.Application,
		uint64(r.Summary.Count),
		available,
		r.Summary.Reason,
		r.Summary.Mean,
		r.Summary.Std,
		r.Summary.Min,
		levels,
		values,
		r.Summary.Max,
		clip,
	}
}

func summaryRows(report *model.Report) []summaryRow {
	var rows []summaryRow
	for _, sr := range report.Scenarios() {
		if sr == nil {
			continue
		}
		for _, metric := range sr.MetricNames() {
			mr := sr.Metrics[metric]
			for _, label := range report.Applications {
				am, ok := mr.PerApplication[label]
				if !ok {
					continue
				}
				rows = append(rows, summaryRow{
					RunID:       report.RunID,
					Scenario:    sr.Name,
					Metric:      metric,
					Application: label,
					Summary:     am.Summary,
					ClipBound:   mr.ClipBound,
					GeneratedAt: report.GeneratedAt,
				})
			}
		}
	}
	return rows
}
