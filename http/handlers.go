package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"cropadvisor/advisor"
	"cropadvisor/dataset"
	"cropadvisor/db"
	"cropadvisor/explore"
	"cropadvisor/ml"
	"cropadvisor/monitoring"
	"cropadvisor/practices"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Service is the read-only API the handlers expose.
type Service interface {
	Recommend(ctx context.Context, f dataset.Features, requestID string) (advisor.Recommendation, error)
	Explore(ctx context.Context, s explore.State) (*explore.View, error)
	Filter(p dataset.Predicate) (advisor.FilterResult, error)
	Ranges(labels []string) (map[dataset.Column]dataset.Bounds, error)
	Labels() []string
	LabelCounts() map[string]int
	Practice(label string) practices.Result
	Practices() advisor.PracticeListing
	ModelInfo() ml.Summary
	History(ctx context.Context, limit int) ([]db.PredictionRecord, error)
}

type Handlers struct {
	svc     Service
	logger  *zap.Logger
	metrics *monitoring.Metrics
	hub     *monitoring.ExploreHub
	started time.Time
}

func NewHandlers(svc Service, hub *monitoring.ExploreHub, logger *zap.Logger, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{svc: svc, hub: hub, logger: logger, metrics: metrics, started: time.Now()}
}

func (h *Handlers) Register(mux *http.ServeMux) {
	h.route(mux, "GET /api/health", h.handleHealth)
	h.route(mux, "GET /api/crops", h.handleCrops)
	h.route(mux, "POST /api/recommend", h.handleRecommend)
	h.route(mux, "GET /api/dataset/ranges", h.handleRanges)
	h.route(mux, "POST /api/dataset/filter", h.handleFilter)
	h.route(mux, "POST /api/explore", h.handleExplore)
	h.route(mux, "GET /api/practices", h.handlePractices)
	h.route(mux, "GET /api/practices/{label}", h.handlePractice)
	h.route(mux, "GET /api/model", h.handleModel)
	h.route(mux, "GET /api/history", h.handleHistory)
	if h.hub != nil {
		mux.HandleFunc("GET /api/ws/explore", h.hub.HandleWebSocket)
	}
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
}

// route registers fn and records its latency under the route pattern.
func (h *Handlers) route(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	endpoint := pattern
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		endpoint = pattern[i+1:]
	}
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		fn(rw, r)
		h.metrics.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(rw.statusCode), time.Since(start))
	})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

type cropsResponse struct {
	Labels []string       `json:"labels"`
	Count  int            `json:"count"`
	Counts map[string]int `json:"counts"`
}

func (h *Handlers) handleCrops(w http.ResponseWriter, r *http.Request) {
	labels := h.svc.Labels()
	respondJSON(w, http.StatusOK, cropsResponse{Labels: labels, Count: len(labels), Counts: h.svc.LabelCounts()})
}

type recommendResponse struct {
	advisor.Recommendation
	Input     map[string]float64 `json:"input"`
	RequestID string             `json:"request_id"`
}

func (h *Handlers) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		respondError(w, statusForDecode(err), "invalid request body: "+err.Error())
		return
	}

	f, err := ml.FeaturesFromValues(values)
	if err != nil {
		respondPredictionError(w, err)
		return
	}
	if err := dataset.ValidateInput(f); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	requestID := GetRequestID(r.Context())
	rec, err := h.svc.Recommend(r.Context(), f, requestID)
	if err != nil {
		var predErr *ml.PredictionError
		if errors.As(err, &predErr) {
			respondPredictionError(w, err)
			return
		}
		h.logger.Error("recommend failed", zap.String("request_id", requestID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "prediction failed")
		return
	}
	respondJSON(w, http.StatusOK, recommendResponse{
		Recommendation: rec,
		Input:          f.Map(),
		RequestID:      requestID,
	})
}

func respondPredictionError(w http.ResponseWriter, err error) {
	var predErr *ml.PredictionError
	if errors.As(err, &predErr) {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": predErr.Error(),
			"field": predErr.Field,
		})
		return
	}
	respondError(w, http.StatusBadRequest, err.Error())
}

type rangesResponse struct {
	Labels []string                          `json:"labels,omitempty"`
	Bounds map[dataset.Column]dataset.Bounds `json:"bounds"`
}

func (h *Handlers) handleRanges(w http.ResponseWriter, r *http.Request) {
	labels := splitLabels(r.URL.Query().Get("labels"))
	bounds, err := h.svc.Ranges(labels)
	if errors.Is(err, dataset.ErrEmptyTable) {
		respondError(w, http.StatusNotFound, "no records match the requested labels")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rangesResponse{Labels: labels, Bounds: bounds})
}

func (h *Handlers) handleFilter(w http.ResponseWriter, r *http.Request) {
	var p dataset.Predicate
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, statusForDecode(err), "invalid predicate: "+err.Error())
		return
	}
	res, err := h.svc.Filter(p)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type exploreResponse struct {
	*explore.View
	Warning string `json:"warning,omitempty"`
}

func (h *Handlers) handleExplore(w http.ResponseWriter, r *http.Request) {
	var s explore.State
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		h.metrics.RecordExplore("http", "invalid")
		respondError(w, statusForDecode(err), "invalid state: "+err.Error())
		return
	}
	view, err := h.svc.Explore(r.Context(), s)
	switch {
	case errors.Is(err, explore.ErrNoSelection):
		h.metrics.RecordExplore("http", "empty")
		respondJSON(w, http.StatusOK, exploreResponse{Warning: explore.NoSelectionWarning})
	case err != nil:
		h.metrics.RecordExplore("http", "invalid")
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.metrics.RecordExplore("http", "ok")
		respondJSON(w, http.StatusOK, exploreResponse{View: view})
	}
}

func (h *Handlers) handlePractices(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Practices())
}

func (h *Handlers) handlePractice(w http.ResponseWriter, r *http.Request) {
	label := strings.TrimSpace(r.PathValue("label"))
	if label == "" {
		respondError(w, http.StatusBadRequest, "label is required")
		return
	}
	respondJSON(w, http.StatusOK, h.svc.Practice(label))
}

func (h *Handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.ModelInfo())
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.svc.History(r.Context(), limit)
	if errors.Is(err, advisor.ErrHistoryDisabled) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("load history failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"count": len(records), "predictions": records})
}

func splitLabels(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func statusForDecode(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
