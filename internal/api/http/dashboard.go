package http

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/visaboard/visaboard/internal/aggregate"
	"github.com/visaboard/visaboard/internal/config"
	verrors "github.com/visaboard/visaboard/internal/errors"
	"github.com/visaboard/visaboard/internal/observability"
	"github.com/visaboard/visaboard/internal/view"
	"github.com/visaboard/visaboard/pkg/types"
)

// EmployersResponse is the body of GET /v1/employers/{metric}.
type EmployersResponse struct {
	Metric    aggregate.Metric              `json:"metric"`
	Threshold float64                       `json:"threshold"`
	Count     int                           `json:"count"`
	Rows      []aggregate.EmployerAggregate `json:"rows"`
	RequestID string                        `json:"request_id,omitempty"`
}

// SlidersResponse is the body of GET /v1/sliders.
type SlidersResponse struct {
	Approval config.SliderConfig `json:"approval"`
	Denial   config.SliderConfig `json:"denial"`
}

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	Metrics    []observability.MetricStats               `json:"metrics"`
	Thresholds map[string][]observability.ThresholdCount `json:"top_thresholds"`
}

const topThresholds = 10

// DashboardHandler serves the dashboard panels. Every request re-runs the
// aggregation on the memoized dataset with the request's thresholds.
type DashboardHandler struct {
	engine *aggregate.Engine
	view   config.ViewConfig
	stats  *observability.ThresholdStats
	logger *zap.Logger
}

// NewDashboardHandler creates the dashboard handler. stats may be nil.
func NewDashboardHandler(engine *aggregate.Engine, viewCfg config.ViewConfig, stats *observability.ThresholdStats, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{
		engine: engine,
		view:   viewCfg,
		stats:  stats,
		logger: logger.Named("dashboard"),
	}
}

// Register mounts the dashboard routes on mux behind middleware.
func (h *DashboardHandler) Register(mux *http.ServeMux, middleware func(http.Handler) http.Handler) {
	routes := map[string]http.HandlerFunc{
		"GET /v1/view":               h.handleView,
		"GET /v1/overview":           h.handleOverview,
		"GET /v1/dataset":            h.handleDataset,
		"GET /v1/employers/{metric}": h.handleEmployers,
		"GET /v1/zips":               h.handleZips,
		"GET /v1/charts/{chart}":     h.handleChart,
		"GET /v1/sliders":            h.handleSliders,
		"GET /v1/stats":              h.handleStats,
	}
	for pattern, fn := range routes {
		mux.Handle(pattern, middleware(fn))
	}
}

func (h *DashboardHandler) options() view.Options {
	return view.Options{
		PreviewRows: h.view.PreviewRows,
		MaxBars:     h.view.MaxBars,
	}
}

func (h *DashboardHandler) slider(metric aggregate.Metric) config.SliderConfig {
	if metric == aggregate.MetricDenial {
		return h.view.Denial
	}
	return h.view.Approval
}

func (h *DashboardHandler) record(metric aggregate.Metric, threshold float64) {
	if h.stats != nil {
		h.stats.Record(string(metric), threshold)
	}
}

// handleView handles GET /v1/view?approval=&denial=.
func (h *DashboardHandler) handleView(w http.ResponseWriter, r *http.Request) {
	approval, err := parseThreshold(r, "approval", h.view.Approval)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	denial, err := parseThreshold(r, "denial", h.view.Denial)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	h.record(aggregate.MetricApproval, approval)
	h.record(aggregate.MetricDenial, denial)

	if notModified(w, r, ds, "view", formatFloat(approval), formatFloat(denial)) {
		return
	}

	vm, err := view.Render(ds, view.Thresholds{Approval: approval, Denial: denial}, h.options())
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	h.respond(w, r, vm)
}

// handleOverview handles GET /v1/overview.
func (h *DashboardHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	if notModified(w, r, ds, "overview") {
		return
	}
	h.respond(w, r, view.RenderOverview(ds, h.options()))
}

// handleDataset handles GET /v1/dataset?limit=.
func (h *DashboardHandler) handleDataset(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, h.view.PreviewRows, h.view.MaxPreviewRows)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	if notModified(w, r, ds, "dataset", strconv.Itoa(limit)) {
		return
	}
	h.respond(w, r, view.RenderPreview(ds, limit))
}

// handleEmployers handles GET /v1/employers/{metric}?threshold=.
func (h *DashboardHandler) handleEmployers(w http.ResponseWriter, r *http.Request) {
	metric, err := aggregate.ParseMetric(r.PathValue("metric"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	threshold, err := parseThreshold(r, "threshold", h.slider(metric))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	h.record(metric, threshold)
	if notModified(w, r, ds, "employers", string(metric), formatFloat(threshold)) {
		return
	}

	rows, err := h.engine.AggregateAndFilter(r.Context(), metric, threshold)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	aggregate.SortByValueDesc(rows)

	h.respond(w, r, EmployersResponse{
		Metric:    metric,
		Threshold: threshold,
		Count:     len(rows),
		Rows:      rows,
		RequestID: GetRequestID(r.Context()),
	})
}

// handleZips handles GET /v1/zips.
func (h *DashboardHandler) handleZips(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	if notModified(w, r, ds, "zips") {
		return
	}

	zips, err := h.engine.AggregateByZip(r.Context())
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	h.respond(w, r, view.RenderMap(zips))
}

// handleChart handles GET /v1/charts/{metric}.svg?threshold=.
func (h *DashboardHandler) handleChart(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("chart"), ".svg")
	if !ok {
		writeError(w, http.StatusNotFound, ErrorResponse{
			Error:     "charts are served as .svg",
			RequestID: GetRequestID(r.Context()),
		})
		return
	}
	metric, err := aggregate.ParseMetric(name)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	threshold, err := parseThreshold(r, "threshold", h.slider(metric))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	h.record(metric, threshold)
	if notModified(w, r, ds, "chart", string(metric), formatFloat(threshold)) {
		return
	}

	panel, err := view.RenderPanel(ds, metric, threshold, h.view.MaxBars)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	var buf bytes.Buffer
	opts := view.ChartOptions{Width: h.view.ChartWidth, Height: h.view.ChartHeight}
	if err := view.RenderBarChart(&buf, panel, opts); err != nil {
		h.logger.Error("chart rendering failed", zap.String("metric", string(metric)), zap.Error(err))
		writeAPIError(w, r, verrors.NewInternalError("chart rendering failed", err))
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// handleSliders handles GET /v1/sliders.
func (h *DashboardHandler) handleSliders(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, SlidersResponse{
		Approval: h.view.Approval,
		Denial:   h.view.Denial,
	})
}

// handleStats handles GET /v1/stats.
func (h *DashboardHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Metrics:    []observability.MetricStats{},
		Thresholds: make(map[string][]observability.ThresholdCount),
	}
	if h.stats != nil {
		resp.Metrics = h.stats.TopMetrics(len(aggregate.Metrics))
		for _, m := range aggregate.Metrics {
			resp.Thresholds[string(m)] = h.stats.TopThresholds(string(m), topThresholds)
		}
	}
	h.respond(w, r, resp)
}

// respond writes a 200 JSON body, logging encoding failures.
func (h *DashboardHandler) respond(w http.ResponseWriter, r *http.Request, data interface{}) {
	if err := writeJSON(w, http.StatusOK, data); err != nil {
		h.logger.Error("failed to write response",
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))
	}
}

// dataset loads the memoized dataset, writing an error response on failure.
func (h *DashboardHandler) dataset(w http.ResponseWriter, r *http.Request) (*types.Dataset, bool) {
	ds, err := h.engine.Dataset(r.Context())
	if err != nil {
		h.logger.Warn("dataset unavailable", zap.Error(err), zap.String("request_id", GetRequestID(r.Context())))
		writeAPIError(w, r, err)
		return nil, false
	}
	return ds, true
}

// parseThreshold reads a slider value from the query string. A missing
// value takes the slider default.
func parseThreshold(r *http.Request, name string, slider config.SliderConfig) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return slider.Default, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, verrors.NewValidationError(verrors.CodeInvalidThreshold,
			fmt.Sprintf("%s must be a number, got %q", name, raw))
	}
	if !slider.Contains(v) {
		return 0, verrors.NewValidationError(verrors.CodeInvalidThreshold,
			fmt.Sprintf("%s must be between %v and %v, got %v", name, slider.Min, slider.Max, v)).
			WithDetails(map[string]interface{}{"min": slider.Min, "max": slider.Max, "value": v})
	}
	return v, nil
}

// parseLimit reads the preview row limit.
func parseLimit(r *http.Request, def, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, verrors.NewValidationError(verrors.CodeInvalidLimit,
			fmt.Sprintf("limit must be an integer between 1 and %d, got %q", max, raw))
	}
	return n, nil
}

// notModified sets the ETag for a dataset-derived response and reports
// whether the client already holds it.
func notModified(w http.ResponseWriter, r *http.Request, ds *types.Dataset, parts ...string) bool {
	etag := `"` + strings.Join(append([]string{ds.Fingerprint()}, parts...), "-") + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	for _, candidate := range strings.Split(r.Header.Get("If-None-Match"), ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag || candidate == "*" {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	}
	return false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
