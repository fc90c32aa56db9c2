// Package query reads past analysis runs back from ClickHouse.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Go2NetProfile/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Querier defines the interface for querying stored reports.
type Querier interface {
	SummaryHistory(ctx context.Context, req HistoryRequest) ([]HistoryPoint, error)
	TraceFlow(ctx context.Context, req TraceFlowRequest) (*FlowLifecycle, error)
	Close() error
}

// HistoryRequest selects the summaries of one metric across runs.
type HistoryRequest struct {
	Scenario    string
	Metric      string
	Application string
	Since       time.Time
	Until       time.Time
	Limit       int
}

// HistoryPoint is one stored summary.
type HistoryPoint struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Application string    `json:"application"`
	Count       uint64    `json:"count"`
	Available   bool      `json:"available"`
	Mean        float64   `json:"mean"`
	Std         float64   `json:"std"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	ClipBound   *float64  `json:"clip_bound"`
}

// TraceFlowRequest identifies one flow of one application.
type TraceFlowRequest struct {
	Application string
	FlowKey     string
	Until       time.Time
}

// FlowLifecycle summarises a flow over every run it was seen in.
type FlowLifecycle struct {
	Runs         uint64  `json:"runs"`
	FirstSeen    float64 `json:"first_seen"`
	LastSeen     float64 `json:"last_seen"`
	TotalPackets uint64  `json:"total_packets"`
	TotalBytes   uint64  `json:"total_bytes"`
}

const defaultHistoryLimit = 100

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn clickhouse.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (clickhouse.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
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

func (q *clickhouseQuerier) Close() error {
	return q.conn.Close()
}

// buildHistoryQuery renders the summary history query and its arguments.
func buildHistoryQuery(req HistoryRequest) (string, []any, error) {
	if req.Scenario == "" || req.Metric == "" {
		return "", nil, fmt.Errorf("scenario and metric are required")
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT RunID, GeneratedAt, Application, Count, Available, Mean, Std, Min, Max, ClipBound
		FROM distribution_summaries
	`)

	whereClauses := []string{"Scenario = ?", "Metric = ?"}
	args := []any{req.Scenario, req.Metric}

	if req.Application != "" {
		whereClauses = append(whereClauses, "Application = ?")
		args = append(args, req.Application)
	}
	if !req.Since.IsZero() {
		whereClauses = append(whereClauses, "GeneratedAt >= ?")
		args = append(args, req.Since)
	}
	if !req.Until.IsZero() {
		whereClauses = append(whereClauses, "GeneratedAt <= ?")
		args = append(args, req.Until)
	}
	queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))

	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY GeneratedAt DESC, Application LIMIT %d", limit))

	return queryBuilder.String(), args, nil
}

// SummaryHistory returns stored summaries, newest first.
func (q *clickhouseQuerier) SummaryHistory(ctx context.Context, req HistoryRequest) ([]HistoryPoint, error) {
	stmt, args, err := buildHistoryQuery(req)
	if err != nil {
		return nil, err
	}

	rows, err := q.conn.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var points []HistoryPoint
	for rows.Next() {
		var (
			p         HistoryPoint
			available uint8
		)
		if err := rows.Scan(&p.RunID, &p.GeneratedAt, &p.Application, &p.Count, &available, &p.Mean, &p.Std, &p.Min, &p.Max, &p.ClipBound); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		p.Available = available == 1
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read summaries: %w", err)
	}
	return points, nil
}

// buildTraceQuery renders the flow lifecycle query and its arguments.
func buildTraceQuery(req TraceFlowRequest) (string, []any, error) {
	if req.Application == "" || len(req.FlowKey) != 32 {
		return "", nil, fmt.Errorf("application and a 32 character flow key are required")
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT
			count() AS Runs,
			min(FirstSeen) AS FirstSeen,
			max(LastSeen) AS LastSeen,
			sum(Packets) AS TotalPackets,
			sum(Bytes) AS TotalBytes
		FROM flow_sizes
	`)

	whereClauses := []string{"Application = ?", "FlowKey = ?"}
	args := []any{req.Application, req.FlowKey}
	if !req.Until.IsZero() {
		whereClauses = append(whereClauses, "GeneratedAt <= ?")
		args = append(args, req.Until)
	}
	queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))

	return queryBuilder.String(), args, nil
}

// TraceFlow aggregates one flow over every stored run.
func (q *clickhouseQuerier) TraceFlow(ctx context.Context, req TraceFlowRequest) (*FlowLifecycle, error) {
	stmt, args, err := buildTraceQuery(req)
	if err != nil {
		return nil, err
	}

	var result FlowLifecycle
	row := q.conn.QueryRow(ctx, stmt, args...)
	if err := row.Scan(&result.Runs, &result.FirstSeen, &result.LastSeen, &result.TotalPackets, &result.TotalBytes); err != nil {
		return nil, fmt.Errorf("failed to scan flow lifecycle result: %w", err)
	}
	return &result, nil
}
