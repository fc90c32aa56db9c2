// Package api serves analysis reports over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"Go2NetProfile/internal/model"
	"Go2NetProfile/internal/notification"
	"Go2NetProfile/internal/query"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Analyzer produces reports on demand and remembers the latest one.
type Analyzer interface {
	Run(ctx context.Context) (*model.Report, error)
	Latest() *model.Report
}

// Handler holds the dependencies for API handlers.
type Handler struct {
	analyzer Analyzer
	querier  query.Querier // nil when no ClickHouse store is configured
	hub      *notification.Hub
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// NewHandler creates a Handler. querier and hub may be nil.
func NewHandler(analyzer Analyzer, querier query.Querier, hub *notification.Hub, log logrus.FieldLogger) *Handler {
	return &Handler{
		analyzer: analyzer,
		querier:  querier,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log,
	}
}

// Router defines the API routes. gatherer backs the /metrics endpoint.
func (h *Handler) Router(gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/report", h.reportHandler).Methods("GET")
	v1.HandleFunc("/scenarios/{scenario}", h.scenarioHandler).Methods("GET")
	v1.HandleFunc("/scenarios/{scenario}/metrics/{metric}/applications/{application}", h.metricHandler).Methods("GET")
	v1.HandleFunc("/refresh", h.refreshHandler).Methods("POST")
	v1.HandleFunc("/history", h.historyHandler).Methods("GET")
	v1.HandleFunc("/flows/{key}", h.traceFlowHandler).Methods("GET")
	v1.HandleFunc("/stream", h.streamHandler).Methods("GET")

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	return r
}

// reportHandler returns the full latest report.
func (h *Handler) reportHandler(w http.ResponseWriter, r *http.Request) {
	report, ok := h.latest(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// scenarioHandler returns one scenario of the latest report.
func (h *Handler) scenarioHandler(w http.ResponseWriter, r *http.Request) {
	report, ok := h.latest(w)
	if !ok {
		return
	}
	name := mux.Vars(r)["scenario"]
	sr := report.Scenario(name)
	if sr == nil {
		http.Error(w, fmt.Sprintf("unknown scenario '%s'", name), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sr)
}

// metricResponse is one metric of one application, with the shared clip bound.
type metricResponse struct {
	Scenario    string                   `json:"scenario"`
	Metric      model.Metric             `json:"metric"`
	Application string                   `json:"application"`
	ClipBound   model.Field[float64]     `json:"clip_bound"`
	Result      *model.ApplicationMetric `json:"result"`
}

// metricHandler returns a single (scenario, metric, application) result.
func (h *Handler) metricHandler(w http.ResponseWriter, r *http.Request) {
	report, ok := h.latest(w)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	sr := report.Scenario(vars["scenario"])
	if sr == nil {
		http.Error(w, fmt.Sprintf("unknown scenario '%s'", vars["scenario"]), http.StatusNotFound)
		return
	}
	mr, ok := sr.Metrics[model.Metric(vars["metric"])]
	if !ok {
		http.Error(w, fmt.Sprintf("metric '%s' is not computed in scenario '%s'", vars["metric"], sr.Name), http.StatusNotFound)
		return
	}
	am, ok := mr.PerApplication[vars["application"]]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown application '%s'", vars["application"]), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, metricResponse{
		Scenario:    sr.Name,
		Metric:      mr.Metric,
		Application: vars["application"],
		ClipBound:   mr.ClipBound,
		Result:      am,
	})
}

// refreshHandler re-runs ingestion and analysis.
func (h *Handler) refreshHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.analyzer.Run(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Refresh failed.")
		http.Error(w, fmt.Sprintf("failed to refresh report: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":       report.RunID,
		"generated_at": report.GeneratedAt,
		"applications": report.Applications,
	})
}

// historyHandler returns stored summaries of past runs.
func (h *Handler) historyHandler(w http.ResponseWriter, r *http.Request) {
	if h.querier == nil {
		http.Error(w, "no report store configured", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	req := query.HistoryRequest{
		Scenario:    q.Get("scenario"),
		Metric:      q.Get("metric"),
		Application: q.Get("application"),
	}
	var err error
	if req.Since, err = parseTime(q.Get("since")); err != nil {
		http.Error(w, fmt.Sprintf("invalid since: %v", err), http.StatusBadRequest)
		return
	}
	if req.Until, err = parseTime(q.Get("until")); err != nil {
		http.Error(w, fmt.Sprintf("invalid until: %v", err), http.StatusBadRequest)
		return
	}
	if s := q.Get("limit"); s != "" {
		if req.Limit, err = strconv.Atoi(s); err != nil {
			http.Error(w, fmt.Sprintf("invalid limit: %v", err), http.StatusBadRequest)
			return
		}
	}
	if req.Scenario == "" || req.Metric == "" {
		http.Error(w, "scenario and metric are required", http.StatusBadRequest)
		return
	}

	points, err := h.querier.SummaryHistory(r.Context(), req)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query history: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// traceFlowHandler returns the stored lifecycle of one flow.
func (h *Handler) traceFlowHandler(w http.ResponseWriter, r *http.Request) {
	if h.querier == nil {
		http.Error(w, "no report store configured", http.StatusServiceUnavailable)
		return
	}
	req := query.TraceFlowRequest{
		Application: r.URL.Query().Get("application"),
		FlowKey:     mux.Vars(r)["key"],
	}
	if req.Application == "" {
		http.Error(w, "application is required", http.StatusBadRequest)
		return
	}
	var key model.FlowKey
	if err := key.UnmarshalText([]byte(req.FlowKey)); err != nil {
		http.Error(w, fmt.Sprintf("invalid flow key: %v", err), http.StatusBadRequest)
		return
	}
	req.FlowKey = key.String()

	lifecycle, err := h.querier.TraceFlow(r.Context(), req)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to trace flow: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, lifecycle)
}

func (h *Handler) latest(w http.ResponseWriter) (*model.Report, bool) {
	report := h.analyzer.Latest()
	if report == nil {
		http.Error(w, "no report available yet", http.StatusServiceUnavailable)
		return nil, false
	}
	return report, true
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonBytes)
}
